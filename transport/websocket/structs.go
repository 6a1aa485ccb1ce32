package websocket

import "github.com/ticktak/backend/internal/entity"

const (
	messageTypeUserID           = "user_id"
	messageTypeInitialMatchData = "initial_match_data"
	messageTypeMove             = "move"
)

// UserIDMessage is the first frame on every connection, carrying the
// identity generated for it.
type UserIDMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// InitialMatchDataMessage is sent once the connection's match is resolved.
type InitialMatchDataMessage struct {
	Type  string       `json:"type"`
	Board entity.Board `json:"board"`
	Turn  entity.Mark  `json:"turn"`
	Mark  entity.Mark  `json:"mark"`
}

// GridRef names a sub-board by its intra-grid coordinates. In a move
// broadcast it echoes the played cell's position, which is the sub-board
// the next move is directed to.
type GridRef struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MoveMessage is broadcast to every connection on the match after an
// accepted move.
type MoveMessage struct {
	Type       string       `json:"type"`
	Board      entity.Board `json:"board"`
	Turn       entity.Mark  `json:"turn"`
	ActiveGrid GridRef      `json:"activeGrid"`
}

// MoveRequest is the only inbound frame the broker acts on. Grid selects
// the sub-board (0-8); x and y are 0-2 coordinates inside it, flattened
// server-side as cell = y*3 + x.
type MoveRequest struct {
	Type string `json:"type"`
	Grid int    `json:"grid"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}
