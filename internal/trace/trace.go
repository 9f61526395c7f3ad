// Package trace records the life of each game for later inspection. A Tracer
// is built once by the server and handed to every table; each game gets its
// own Game handle which is closed by End when the game is over.
package trace

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
)

type Tracer interface {
	StartGame(ctx context.Context, code string, players int) (Game, error)
}

// Game methods other than End are fire-and-forget and must not block on the
// sink; implementations log their own failures. End may wait for pending
// writes but should bound that wait.
type Game interface {
	Score(round, player int, cat scoring.Category, value int)
	Forfeit(round, player int)
	PlayerDropped(player int)
	PlayerTotal(player, total int)
	End(winner int) error
}

type Nop struct{}

func (Nop) StartGame(context.Context, string, int) (Game, error) { return nopGame{}, nil }

type nopGame struct{}

func (nopGame) Score(int, int, scoring.Category, int) {}
func (nopGame) Forfeit(int, int)                      {}
func (nopGame) PlayerDropped(int)                     {}
func (nopGame) PlayerTotal(int, int)                  {}
func (nopGame) End(int) error                         { return nil }

// Logger writes every trace point as a structured log line.
type Logger struct {
	Log *zap.Logger
}

func NewLogger(log *zap.Logger) Logger {
	return Logger{Log: log.Named("trace")}
}

func (l Logger) StartGame(_ context.Context, code string, players int) (Game, error) {
	g := logGame{log: l.Log.With(zap.String("table", code))}
	g.log.Info("new game", zap.Int("players", players))
	return g, nil
}

type logGame struct{ log *zap.Logger }

func (g logGame) Score(round, player int, cat scoring.Category, value int) {
	g.log.Info("score",
		zap.Int("round", round),
		zap.Int("player", player),
		zap.String("category", cat.Name()),
		zap.Int("value", value),
	)
}

func (g logGame) Forfeit(round, player int) {
	g.log.Info("no score this round", zap.Int("round", round), zap.Int("player", player))
}

func (g logGame) PlayerDropped(player int) {
	g.log.Info("player dropped", zap.Int("player", player))
}

func (g logGame) PlayerTotal(player, total int) {
	g.log.Info("player total", zap.Int("player", player), zap.Int("total", total))
}

func (g logGame) End(winner int) error {
	g.log.Info("end game", zap.Int("winner", winner))
	return nil
}

// Multi fans every call out to all tracers.
type Multi []Tracer

func (m Multi) StartGame(ctx context.Context, code string, players int) (Game, error) {
	games := make(multiGame, 0, len(m))
	var errs error
	for _, t := range m {
		g, err := t.StartGame(ctx, code, players)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		games = append(games, g)
	}
	return games, errs
}

type multiGame []Game

func (m multiGame) Score(round, player int, cat scoring.Category, value int) {
	for _, g := range m {
		g.Score(round, player, cat, value)
	}
}

func (m multiGame) Forfeit(round, player int) {
	for _, g := range m {
		g.Forfeit(round, player)
	}
}

func (m multiGame) PlayerDropped(player int) {
	for _, g := range m {
		g.PlayerDropped(player)
	}
}

func (m multiGame) PlayerTotal(player, total int) {
	for _, g := range m {
		g.PlayerTotal(player, total)
	}
}

func (m multiGame) End(winner int) error {
	var errs error
	for _, g := range m {
		errs = multierr.Append(errs, g.End(winner))
	}
	return errs
}
