package engine

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
)

var ErrLobbyFull = errors.New("lobby is full")
var ErrGameStarted = errors.New("game already started")
var ErrGameNotStarted = errors.New("game has not started")
var ErrGameOver = errors.New("game is over")
var ErrUnknownPlayer = errors.New("unknown player")
var ErrCategoryTaken = errors.New("category already claimed")
var ErrInvalidCategory = errors.New("invalid category")
var ErrAlreadySubmitted = errors.New("already submitted this round")
var ErrUnsupportedCommand = errors.New("unsupported command")

const MaxRounds = 13

// PlayerID is assigned by the lobby, starting at 1.
type PlayerID int

// NotTaken marks an unclaimed board entry. It doubles as "no winner".
const NotTaken PlayerID = 0

type Phase string

const (
	PhaseWaiting Phase = "waiting"
	PhasePlaying Phase = "playing"
	PhaseOver    Phase = "over"
)

type Entry struct {
	ClaimedBy PlayerID
	Value     int
}

func (e Entry) Claimed() bool { return e.ClaimedBy != NotTaken }

type State struct {
	Phase     Phase
	Players   int // seats to fill before play starts
	Round     int
	Board     [scoring.CategoryCount]Entry
	Active    map[PlayerID]bool
	Submitted map[PlayerID]bool
	Winner    PlayerID
}

type CommandType string

const (
	CmdJoin   CommandType = "Join"
	CmdSubmit CommandType = "Submit"
	CmdLeave  CommandType = "Leave"
)

/*
	CmdJoin   -> EvtPlayerJoined -> EvtGameStarted (when the last seat fills)
	CmdSubmit -> EvtClaimAccepted | EvtForfeited -> EvtGameOver (board full)
	                                             -> EvtRoundStarted -> EvtGameOver (round 13 done)
	CmdLeave  -> EvtPlayerLeft -> EvtRoundStarted ... (a departure can fill the quota)
*/

type Command struct {
	Type   CommandType
	Player PlayerID
	Claim  Claim
}

type Claim struct {
	Part  scoring.Part
	Index int
	Value int
}

func (c Claim) Forfeit() bool { return c.Part == scoring.PartNone }

func (c Claim) Category() scoring.Category {
	return scoring.Category{Part: c.Part, Index: c.Index}
}

type EventType string

const (
	EvtPlayerJoined  EventType = "PlayerJoined"
	EvtGameStarted   EventType = "GameStarted"
	EvtClaimAccepted EventType = "ClaimAccepted"
	EvtForfeited     EventType = "Forfeited"
	EvtPlayerLeft    EventType = "PlayerLeft"
	EvtRoundStarted  EventType = "RoundStarted"
	EvtGameOver      EventType = "GameOver"
)

type Event struct {
	Type   EventType
	Player PlayerID
	Claim  Claim
	Round  int
}

type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeConflict  Outcome = "conflict"
	OutcomeForfeited Outcome = "forfeited"
	OutcomeRejected  Outcome = "rejected"
)

// Apply never mutates s; the returned state is a copy.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if s.Phase == PhaseOver {
		return nil, s, ErrGameOver
	}

	switch cmd.Type {
	case CmdJoin:
		return join(s, cmd.Player)
	case CmdSubmit:
		return submit(s, cmd.Player, cmd.Claim)
	case CmdLeave:
		return leave(s, cmd.Player)
	default:
		return nil, s, ErrUnsupportedCommand
	}
}

// SubmitClaim arbitrates one claim. Conflicts leave the state untouched and do
// not count toward the round quota.
func SubmitClaim(s State, player PlayerID, claim Claim) (Outcome, []Event, State, error) {
	events, next, err := Apply(s, Command{Type: CmdSubmit, Player: player, Claim: claim})
	switch {
	case errors.Is(err, ErrCategoryTaken):
		return OutcomeConflict, nil, s, err
	case err != nil:
		return OutcomeRejected, nil, s, err
	case claim.Forfeit():
		return OutcomeForfeited, events, next, nil
	default:
		return OutcomeAccepted, events, next, nil
	}
}

func join(s State, player PlayerID) ([]Event, State, error) {
	if s.Phase != PhaseWaiting {
		return nil, s, ErrGameStarted
	}
	if s.Active[player] {
		return nil, s, nil
	}
	if len(s.Active) >= s.Players {
		return nil, s, ErrLobbyFull
	}

	newState := s.Clone()
	newState.Active[player] = true
	events := []Event{{Type: EvtPlayerJoined, Player: player}}

	if len(newState.Active) == newState.Players {
		newState.Phase = PhasePlaying
		newState.Round = 1
		events = append(events, Event{Type: EvtGameStarted, Round: 1})
	}
	return events, newState, nil
}

func submit(s State, player PlayerID, claim Claim) ([]Event, State, error) {
	if s.Phase != PhasePlaying {
		return nil, s, ErrGameNotStarted
	}
	if !s.Active[player] {
		return nil, s, ErrUnknownPlayer
	}
	if s.Submitted[player] {
		return nil, s, ErrAlreadySubmitted
	}

	newState := s.Clone()
	var events []Event

	if claim.Forfeit() {
		claim = Claim{Part: scoring.PartNone}
		events = append(events, Event{Type: EvtForfeited, Player: player, Claim: claim, Round: s.Round})
	} else {
		cat := claim.Category()
		if !cat.Valid() || claim.Value < 0 || claim.Value > scoring.MaxValue {
			return nil, s, fmt.Errorf("%v: %w", cat, ErrInvalidCategory)
		}
		// Occupancy is tracked by ClaimedBy only; zero is a legal score.
		if s.Board[cat.Slot()].Claimed() {
			return nil, s, ErrCategoryTaken
		}
		newState.Board[cat.Slot()] = Entry{ClaimedBy: player, Value: claim.Value}
		events = append(events, Event{Type: EvtClaimAccepted, Player: player, Claim: claim, Round: s.Round})
	}
	newState.Submitted[player] = true

	if BoardFull(newState) {
		return append(events, newState.finish()), newState, nil
	}

	events = append(events, newState.advanceRound()...)
	return events, newState, nil
}

func leave(s State, player PlayerID) ([]Event, State, error) {
	if !s.Active[player] {
		return nil, s, nil
	}

	newState := s.Clone()
	delete(newState.Active, player)
	delete(newState.Submitted, player)
	events := []Event{{Type: EvtPlayerLeft, Player: player, Round: s.Round}}

	if newState.Phase != PhasePlaying {
		return events, newState, nil
	}
	if len(newState.Active) == 0 {
		return append(events, newState.finish()), newState, nil
	}

	events = append(events, newState.advanceRound()...)
	return events, newState, nil
}
