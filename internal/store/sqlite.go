package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		players INTEGER NOT NULL,
		winner INTEGER,
		started_at INTEGER NOT NULL,
		ended_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS game_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		round INTEGER NOT NULL DEFAULT 0,
		player INTEGER NOT NULL DEFAULT 0,
		part INTEGER NOT NULL DEFAULT 0,
		category INTEGER NOT NULL DEFAULT 0,
		value INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY(game_id) REFERENCES games(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_games_code ON games(code);`,
	`CREATE INDEX IF NOT EXISTS idx_game_events_game ON game_events(game_id);`,
}

type sqliteBackend struct {
	db *sql.DB
}

func toMillis(t time.Time) int64   { return t.UTC().UnixMilli() }
func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func openSQLite(path string) (*sqliteBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	memory := path == ":memory:"
	if !memory {
		path = filepath.Clean(path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	pragmas := []string{"PRAGMA foreign_keys=ON;", "PRAGMA busy_timeout=5000;"}
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL;")
	}
	for _, p := range append(pragmas, sqliteSchema...) {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite db: %w", err)
		}
	}
	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) createGame(ctx context.Context, g *GameRecord) error {
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO games (code, players, started_at) VALUES (?, ?, ?)`,
		g.Code, g.Players, toMillis(g.StartedAt))
	if err != nil {
		return err
	}
	g.ID, err = res.LastInsertId()
	return err
}

func (b *sqliteBackend) insertEvent(ctx context.Context, e EventRecord) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO game_events (game_id, kind, round, player, part, category, value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.GameID, e.Kind, e.Round, e.Player, e.Part, e.Category, e.Value, toMillis(e.CreatedAt))
	return err
}

func (b *sqliteBackend) endGame(ctx context.Context, id int64, winner int, at time.Time) error {
	res, err := b.db.ExecContext(ctx,
		`UPDATE games SET winner = ?, ended_at = ? WHERE id = ?`, winner, toMillis(at), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("game %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

func (b *sqliteBackend) recentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, code, players, winner, started_at, ended_at FROM games ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var (
			g       GameRecord
			winner  sql.NullInt64
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&g.ID, &g.Code, &g.Players, &winner, &started, &ended); err != nil {
			return nil, err
		}
		g.StartedAt = fromMillis(started)
		if winner.Valid {
			w := int(winner.Int64)
			g.Winner = &w
		}
		if ended.Valid {
			at := fromMillis(ended.Int64)
			g.EndedAt = &at
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) events(ctx context.Context, gameID int64) ([]EventRecord, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, game_id, kind, round, player, part, category, value, created_at
		 FROM game_events WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			e  EventRecord
			at int64
		)
		if err := rows.Scan(&e.ID, &e.GameID, &e.Kind, &e.Round, &e.Player, &e.Part, &e.Category, &e.Value, &at); err != nil {
			return nil, err
		}
		e.CreatedAt = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *sqliteBackend) close() error { return b.db.Close() }
