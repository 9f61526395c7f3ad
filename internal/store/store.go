// Package store keeps an append-only audit log of games: who scored what, who
// dropped, final totals and the winner. Nothing is ever read back into a live
// table.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/yahtzee-backend/internal/scoring"
	"github.com/DoyleJ11/yahtzee-backend/internal/trace"
)

var ErrUnsupportedDSN = errors.New("unsupported trace dsn")

const writeTimeout = 2 * time.Second

// eventQueue is how many trace points a game buffers ahead of the database.
const eventQueue = 256

var errQueueFull = errors.New("event queue full")

const (
	KindScore   = "score"
	KindForfeit = "forfeit"
	KindDrop    = "drop"
	KindTotal   = "total"
)

type GameRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Code      string `gorm:"index"`
	Players   int
	Winner    *int
	StartedAt time.Time
	EndedAt   *time.Time
}

func (GameRecord) TableName() string { return "games" }

type EventRecord struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	GameID    int64 `gorm:"index"`
	Kind      string
	Round     int
	Player    int
	Part      int
	Category  int
	Value     int
	CreatedAt time.Time
}

func (EventRecord) TableName() string { return "game_events" }

type backend interface {
	createGame(ctx context.Context, g *GameRecord) error
	insertEvent(ctx context.Context, e EventRecord) error
	endGame(ctx context.Context, id int64, winner int, at time.Time) error
	recentGames(ctx context.Context, limit int) ([]GameRecord, error)
	events(ctx context.Context, gameID int64) ([]EventRecord, error)
	close() error
}

// Store implements trace.Tracer on top of a SQL database.
type Store struct {
	db      backend
	log     *zap.Logger
	now     func() time.Time
	timeout time.Duration // per database call, and for End to drain a game
}

var _ trace.Tracer = (*Store)(nil)

// Open picks the backend from the DSN: postgres:// or postgresql:// use
// Postgres, sqlite:<path> or a plain file path use SQLite.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	var (
		db  backend
		err error
	)
	switch {
	case dsn == "":
		return nil, fmt.Errorf("empty dsn: %w", ErrUnsupportedDSN)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err = openPostgres(dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		db, err = openSQLite(strings.TrimPrefix(dsn, "sqlite:"))
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("%q: %w", dsn, ErrUnsupportedDSN)
	default:
		db, err = openSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: log.Named("store"), now: time.Now, timeout: writeTimeout}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.close()
}

func (s *Store) StartGame(ctx context.Context, code string, players int) (trace.Game, error) {
	rec := &GameRecord{Code: code, Players: players, StartedAt: s.now().UTC()}
	if err := s.db.createGame(ctx, rec); err != nil {
		return nil, fmt.Errorf("record game %s: %w", code, err)
	}
	g := &game{
		store:  s,
		id:     rec.ID,
		log:    s.log.With(zap.String("table", code), zap.Int64("game_id", rec.ID)),
		events: make(chan EventRecord, eventQueue),
		done:   make(chan struct{}),
	}
	go g.drain()
	return g, nil
}

func (s *Store) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.db.recentGames(ctx, limit)
}

func (s *Store) Events(ctx context.Context, gameID int64) ([]EventRecord, error) {
	return s.db.events(ctx, gameID)
}

// game writes its events from its own goroutine, so the table calling it
// never waits on the database. Only End blocks, and no longer than the
// store's timeout.
type game struct {
	store  *Store
	id     int64
	log    *zap.Logger
	events chan EventRecord
	done   chan struct{}

	dropped int   // owned by the caller
	errs    error // owned by drain until done is closed
}

func (g *game) drain() {
	defer close(g.done)
	for e := range g.events {
		ctx, cancel := context.WithTimeout(context.Background(), g.store.timeout)
		err := g.store.db.insertEvent(ctx, e)
		cancel()
		if err != nil {
			g.log.Warn("trace write failed", zap.String("kind", e.Kind), zap.Error(err))
			g.errs = multierr.Append(g.errs, err)
		}
	}
}

func (g *game) write(e EventRecord) {
	e.GameID = g.id
	e.CreatedAt = g.store.now().UTC()
	select {
	case g.events <- e:
	default:
		g.dropped++
		g.log.Warn("trace event dropped", zap.String("kind", e.Kind), zap.Error(errQueueFull))
	}
}

func (g *game) Score(round, player int, cat scoring.Category, value int) {
	g.write(EventRecord{Kind: KindScore, Round: round, Player: player, Part: int(cat.Part), Category: cat.Index, Value: value})
}

func (g *game) Forfeit(round, player int) {
	g.write(EventRecord{Kind: KindForfeit, Round: round, Player: player, Part: int(scoring.PartNone)})
}

func (g *game) PlayerDropped(player int) {
	g.write(EventRecord{Kind: KindDrop, Player: player})
}

func (g *game) PlayerTotal(player, total int) {
	g.write(EventRecord{Kind: KindTotal, Player: player, Value: total})
}

// End stamps the winner and reports every write that failed during the game.
func (g *game) End(winner int) error {
	close(g.events)

	var err error
	if g.dropped > 0 {
		err = fmt.Errorf("%d events: %w", g.dropped, errQueueFull)
	}
	select {
	case <-g.done:
		err = multierr.Append(err, g.errs)
	case <-time.After(g.store.timeout):
		err = multierr.Append(err, errors.New("gave up waiting for pending events"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.store.timeout)
	defer cancel()
	return multierr.Append(err, g.store.db.endGame(ctx, g.id, winner, g.store.now().UTC()))
}
