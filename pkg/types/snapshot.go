// Package types holds the JSON shapes served by the HTTP status endpoints.
package types

// TableSnapshot:
//
//	code: string
//	version: number           // bumps on every state change
//	phase: "waiting" | "playing" | "over"
//	round: number             // 1..13, 0 while waiting
//	seats: number             // players needed to start
//	winner: number            // set once phase is "over"; 0 means nobody
//	players: PlayerTotal[]    // active players in id order
//	board: BoardEntry[]       // 13 entries, upper section first
type TableSnapshot struct {
	Code    string        `json:"code"`
	Version int           `json:"version"`
	Phase   string        `json:"phase"`
	Round   int           `json:"round"`
	Seats   int           `json:"seats"`
	Winner  int           `json:"winner,omitempty"`
	Players []PlayerTotal `json:"players"`
	Board   []BoardEntry  `json:"board"`
}

type PlayerTotal struct {
	ID        int  `json:"id"`
	Total     int  `json:"total"`
	Submitted bool `json:"submitted"` // already claimed or forfeited this round
}

type BoardEntry struct {
	Part      int    `json:"part"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ClaimedBy int    `json:"claimed_by,omitempty"`
	Value     int    `json:"value"`
}
