// Package protocol encodes and decodes the line-oriented game protocol.
//
// Every message is one newline-terminated line. Fields are separated by '_':
//
//	server -> client   start
//	server -> client   WELCOME_<playerId>
//	client -> server   SUBMIT_<part>_<category>_<value>   (part -1 forfeits)
//	server -> client   UPDATE_<playerId>_<part>_<category>_<value>
//	server -> client   RETRY_<playerId>
//	client -> server   SCORE_<playerId>
//	server -> client   SCORE_<playerId>_<value>
//	server -> client   ROUND_START
//	server -> client   OVER_<winnerPlayerId>              (0 when nobody is left)
//	either             quit
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
)

var ErrMalformed = errors.New("malformed message")
var ErrOutOfRange = errors.New("field out of range")

const (
	verbStart      = "start"
	verbQuit       = "quit"
	verbWelcome    = "WELCOME"
	verbSubmit     = "SUBMIT"
	verbUpdate     = "UPDATE"
	verbRetry      = "RETRY"
	verbScore      = "SCORE"
	verbRoundStart = "ROUND_START"
	verbOver       = "OVER"
)

type Message interface{ isMessage() }

type Start struct{}

func (Start) isMessage() {}

type Quit struct{}

func (Quit) isMessage() {}

type Welcome struct{ PlayerID int }

func (Welcome) isMessage() {}

type Submit struct {
	Part     scoring.Part
	Category int
	Value    int
}

func (Submit) isMessage() {}

func (s Submit) Forfeit() bool { return s.Part == scoring.PartNone }

type Update struct {
	PlayerID int
	Part     scoring.Part
	Category int
	Value    int
}

func (Update) isMessage() {}

type Retry struct{ PlayerID int }

func (Retry) isMessage() {}

type ScoreRequest struct{ PlayerID int }

func (ScoreRequest) isMessage() {}

type ScoreResponse struct {
	PlayerID int
	Score    int
}

func (ScoreResponse) isMessage() {}

type RoundStart struct{}

func (RoundStart) isMessage() {}

type Over struct{ WinnerID int }

func (Over) isMessage() {}

// Encode renders m without the trailing newline.
func Encode(m Message) string {
	switch msg := m.(type) {
	case Start:
		return verbStart
	case Quit:
		return verbQuit
	case RoundStart:
		return verbRoundStart
	case Welcome:
		return join(verbWelcome, msg.PlayerID)
	case Submit:
		return join(verbSubmit, int(msg.Part), msg.Category, msg.Value)
	case Update:
		return join(verbUpdate, msg.PlayerID, int(msg.Part), msg.Category, msg.Value)
	case Retry:
		return join(verbRetry, msg.PlayerID)
	case ScoreRequest:
		return join(verbScore, msg.PlayerID)
	case ScoreResponse:
		return join(verbScore, msg.PlayerID, msg.Score)
	case Over:
		return join(verbOver, msg.WinnerID)
	default:
		panic(fmt.Sprintf("protocol: cannot encode %T", m))
	}
}

func join(verb string, fields ...int) string {
	var b strings.Builder
	b.WriteString(verb)
	for _, f := range fields {
		b.WriteByte('_')
		b.WriteString(strconv.Itoa(f))
	}
	return b.String()
}

// Decode parses one line. Errors wrap ErrMalformed or ErrOutOfRange.
func Decode(line string) (Message, error) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil, fmt.Errorf("empty line: %w", ErrMalformed)
	case verbStart:
		return Start{}, nil
	case verbQuit:
		return Quit{}, nil
	case verbRoundStart:
		return RoundStart{}, nil
	}

	verb, rest, _ := strings.Cut(line, "_")
	var fields []string
	if rest != "" {
		fields = strings.Split(rest, "_")
	}
	nums, err := parseInts(fields)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", line, err)
	}

	switch verb {
	case verbWelcome:
		if err := arity(nums, 1); err != nil {
			return nil, err
		}
		if err := playerID(nums[0]); err != nil {
			return nil, err
		}
		return Welcome{PlayerID: nums[0]}, nil

	case verbSubmit:
		if err := arity(nums, 3); err != nil {
			return nil, err
		}
		return decodeSubmit(nums[0], nums[1], nums[2])

	case verbUpdate:
		if err := arity(nums, 4); err != nil {
			return nil, err
		}
		if err := playerID(nums[0]); err != nil {
			return nil, err
		}
		sub, err := decodeSubmit(nums[1], nums[2], nums[3])
		if err != nil {
			return nil, err
		}
		return Update{PlayerID: nums[0], Part: sub.Part, Category: sub.Category, Value: sub.Value}, nil

	case verbRetry:
		if err := arity(nums, 1); err != nil {
			return nil, err
		}
		if err := playerID(nums[0]); err != nil {
			return nil, err
		}
		return Retry{PlayerID: nums[0]}, nil

	case verbScore:
		switch len(nums) {
		case 1:
			if err := playerID(nums[0]); err != nil {
				return nil, err
			}
			return ScoreRequest{PlayerID: nums[0]}, nil
		case 2:
			if err := playerID(nums[0]); err != nil {
				return nil, err
			}
			return ScoreResponse{PlayerID: nums[0], Score: nums[1]}, nil
		default:
			return nil, fmt.Errorf("SCORE takes 1 or 2 fields, got %d: %w", len(nums), ErrMalformed)
		}

	case verbOver:
		if err := arity(nums, 1); err != nil {
			return nil, err
		}
		if err := playerID(nums[0]); err != nil {
			return nil, err
		}
		return Over{WinnerID: nums[0]}, nil
	}

	return nil, fmt.Errorf("unknown verb %q: %w", verb, ErrMalformed)
}

func decodeSubmit(part, category, value int) (Submit, error) {
	p := scoring.Part(part)
	if p == scoring.PartNone {
		return Submit{Part: scoring.PartNone}, nil
	}
	if p != scoring.PartUpper && p != scoring.PartLower {
		return Submit{}, fmt.Errorf("part %d: %w", part, ErrOutOfRange)
	}
	if !(scoring.Category{Part: p, Index: category}).Valid() {
		return Submit{}, fmt.Errorf("category %d for part %d: %w", category, part, ErrOutOfRange)
	}
	if value < 0 || value > scoring.MaxValue {
		return Submit{}, fmt.Errorf("value %d: %w", value, ErrOutOfRange)
	}
	return Submit{Part: p, Category: category, Value: value}, nil
}

func parseInts(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("field %d (%q) is not an integer: %w", i, f, ErrMalformed)
		}
		out[i] = n
	}
	return out, nil
}

func arity(nums []int, want int) error {
	if len(nums) != want {
		return fmt.Errorf("want %d fields, got %d: %w", want, len(nums), ErrMalformed)
	}
	return nil
}

func playerID(id int) error {
	if id < 0 {
		return fmt.Errorf("player id %d: %w", id, ErrOutOfRange)
	}
	return nil
}
