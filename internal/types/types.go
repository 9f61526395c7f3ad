package types

import "time"

type CreateTableRequest struct {
	Code string `json:"code,omitempty"` // empty lets the server pick one
}

type CreateTableResponse struct {
	Code string `json:"code"`
}

type TableSummary struct {
	Code    string `json:"code"`
	Phase   string `json:"phase"`
	Round   int    `json:"round"`
	Seated  int    `json:"seated"`
	Seats   int    `json:"seats"`
	Version int    `json:"version"`
}

type GameResult struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Players   int        `json:"players"`
	Winner    *int       `json:"winner,omitempty"` // nil while the game is still running
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
