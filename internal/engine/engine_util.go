package engine

import (
	"maps"
	"slices"

	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
)

func NewState(players int) State {
	return State{
		Phase:     PhaseWaiting,
		Players:   players,
		Round:     0,
		Active:    map[PlayerID]bool{},
		Submitted: map[PlayerID]bool{},
	}
}

// Clone copies the maps so reducers never share them with their input.
func (s State) Clone() State {
	out := s
	out.Active = maps.Clone(s.Active)
	out.Submitted = maps.Clone(s.Submitted)
	if out.Active == nil {
		out.Active = map[PlayerID]bool{}
	}
	if out.Submitted == nil {
		out.Submitted = map[PlayerID]bool{}
	}
	return out
}

// ActivePlayers returns the seated players in ascending id order.
func (s State) ActivePlayers() []PlayerID {
	return slices.Sorted(maps.Keys(s.Active))
}

func (s State) Entry(cat scoring.Category) Entry {
	if !cat.Valid() {
		return Entry{}
	}
	return s.Board[cat.Slot()]
}

// Open reports whether nobody has claimed cat yet.
func (s State) Open(cat scoring.Category) bool {
	return cat.Valid() && !s.Board[cat.Slot()].Claimed()
}

// Score is the player's running total over the entries it claimed.
func Score(s State, player PlayerID) int {
	total := 0
	for _, e := range s.Board {
		if e.ClaimedBy == player && player != NotTaken {
			total += e.Value
		}
	}
	return total
}

func BoardFull(s State) bool {
	for _, e := range s.Board {
		if !e.Claimed() {
			return false
		}
	}
	return true
}

// DetermineWinner picks the highest total among active players. Ties go to
// the lowest player id. NotTaken is returned when nobody is left.
func DetermineWinner(s State) PlayerID {
	winner := NotTaken
	best := -1
	for _, id := range s.ActivePlayers() {
		if total := Score(s, id); total > best {
			winner, best = id, total
		}
	}
	return winner
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
