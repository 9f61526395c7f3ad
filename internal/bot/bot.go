// Package bot is a headless player. It rolls its own dice, claims the best
// open category each round and forfeits when nothing scores.
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/protocol"
	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
	"github.com/DoyleJ11/yahtzee-backend/internal/transport"
)

// ErrQuit means the server ended the session before the game finished.
var ErrQuit = errors.New("server said quit")

// Rolls per round, the first one included.
const Rolls = 3

type Result struct {
	PlayerID int
	Winner   int // 0 when nobody was left
	Score    int // last total the server reported
	Rounds   int
}

func (r Result) Won() bool { return r.Winner != 0 && r.Winner == r.PlayerID }

type Bot struct {
	conn    transport.Conn
	rng     *rand.Rand
	log     *zap.Logger
	id      int
	claimed [scoring.CategoryCount]bool
	dice    scoring.Dice
	result  Result
}

// New builds a bot on conn. A zero seed picks a random one.
func New(conn transport.Conn, seed uint64, log *zap.Logger) *Bot {
	if seed == 0 {
		seed = rand.Uint64()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		conn: conn,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		log:  log.Named("bot"),
	}
}

// Run plays until the server announces a winner.
func (b *Bot) Run(ctx context.Context) (Result, error) {
	for {
		line, err := b.conn.ReadLine(ctx)
		if err != nil {
			return b.result, fmt.Errorf("read: %w", err)
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			b.log.Warn("ignoring line", zap.String("line", line), zap.Error(err))
			continue
		}

		switch m := msg.(type) {
		case protocol.Welcome:
			b.id = m.PlayerID
			b.result.PlayerID = m.PlayerID
			b.log = b.log.With(zap.Int("player", m.PlayerID))
			b.log.Info("seated")

		case protocol.Start, protocol.RoundStart:
			b.result.Rounds++
			b.roll()
			b.submit(ctx)

		case protocol.Update:
			if m.Part != scoring.PartNone {
				b.claimed[scoring.Category{Part: m.Part, Index: m.Category}.Slot()] = true
			}

		case protocol.Retry:
			// The category went to someone else; its UPDATE has already arrived.
			b.log.Debug("retrying", zap.Ints("dice", b.dice[:]))
			b.submit(ctx)

		case protocol.ScoreResponse:
			b.result.Score = m.Score

		case protocol.Over:
			b.result.Winner = m.WinnerID
			b.log.Info("game over", zap.Int("winner", m.WinnerID), zap.Int("score", b.result.Score))
			return b.result, nil

		case protocol.Quit:
			return b.result, ErrQuit
		}
	}
}

func (b *Bot) open(c scoring.Category) bool { return !b.claimed[c.Slot()] }

// roll throws all dice, then rerolls everything that does not show the most
// common face.
func (b *Bot) roll() {
	for i := range b.dice {
		b.dice[i] = b.die()
	}
	for range Rolls - 1 {
		keep := mostCommon(b.dice)
		for i, face := range b.dice {
			if face != keep {
				b.dice[i] = b.die()
			}
		}
	}
}

func (b *Bot) die() int { return b.rng.IntN(6) + 1 }

// submit sends the claim and a score request. A failed write is only logged:
// the server may already have ended the game, and OVER is still to be read.
func (b *Bot) submit(ctx context.Context) {
	cands := scoring.Score(b.dice)

	sub := protocol.Submit{Part: scoring.PartNone}
	if !scoring.NoLegalMove(cands, b.open) {
		cat, _ := scoring.Best(cands, b.open)
		sub = protocol.Submit{Part: cat.Part, Category: cat.Index, Value: cands.Value(cat)}
	}
	b.log.Debug("submitting", zap.Ints("dice", b.dice[:]), zap.String("claim", protocol.Encode(sub)))

	for _, line := range []string{protocol.Encode(sub), protocol.Encode(protocol.ScoreRequest{PlayerID: b.id})} {
		if err := b.conn.WriteLine(ctx, line); err != nil {
			b.log.Warn("write failed", zap.String("line", line), zap.Error(err))
			return
		}
	}
}

// mostCommon returns the face shown most often, preferring the higher face on a tie.
func mostCommon(d scoring.Dice) int {
	var counts [7]int
	for _, face := range d {
		counts[face]++
	}
	best := 1
	for face := 2; face <= 6; face++ {
		if counts[face] >= counts[best] {
			best = face
		}
	}
	return best
}
