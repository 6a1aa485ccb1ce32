package entity

import (
	"fmt"

	"github.com/ticktak/backend/internal/apperror"
)

// Mark is a cell value and also a player's side.
type Mark string

const (
	MarkCross  Mark = "cross"
	MarkCircle Mark = "circle"
	MarkEmpty  Mark = ""
)

const (
	// GridCount is the number of 3x3 sub-boards on the board.
	GridCount = 9
	// CellCount is the number of cells inside one sub-board.
	CellCount = 9
	// GridSide is the side length of one sub-board.
	GridSide = 3
)

// Opposite - returns the opposing mark; Empty stays Empty.
func (that Mark) Opposite() Mark {
	switch that {
	case MarkCross:
		return MarkCircle
	case MarkCircle:
		return MarkCross
	default:
		return MarkEmpty
	}
}

// Board is addressed as Board[grid][cell], where grid selects the 3x3
// sub-board (0-8) and cell = y*3 + x addresses the position inside it.
// This bijection is part of the wire contract and must match the client.
type Board [GridCount][CellCount]Mark

// CellIndex - flattens intra-grid coordinates to a cell index.
func CellIndex(x, y int) int {
	return y*GridSide + x
}

// CellCoords - inverse of CellIndex.
func CellCoords(cell int) (int, int) {
	return cell % GridSide, cell / GridSide
}

type Match struct {
	ID        string `json:"id"`
	PlayerOne string `json:"player_one"`
	PlayerTwo string `json:"player_two,omitempty"`
	Turn      Mark   `json:"turn"`
	Board     Board  `json:"board"`
}

// NewMatch - creates a fresh match; the first connecting identity plays Cross.
func NewMatch(id, playerOne string) *Match {
	return &Match{
		ID:        id,
		PlayerOne: playerOne,
		Turn:      MarkCross,
	}
}

// ApplyMove - places mark on the addressed cell and advances the turn.
// The caller derives mark from the match's current turn; occupancy is the
// only legality rule enforced here.
func (that *Match) ApplyMove(mark Mark, grid, cell int) error {
	if grid < 0 || grid >= GridCount || cell < 0 || cell >= CellCount {
		return fmt.Errorf("%w: grid %d, cell %d", apperror.ErrInvalidCell, grid, cell)
	}

	if that.Board[grid][cell] != MarkEmpty {
		return apperror.ErrCellOccupied
	}

	that.Board[grid][cell] = mark
	that.Turn = mark.Opposite()

	return nil
}

// MarkFor - resolves which side a connection plays: the identity that
// created the match is Cross, everyone else is Circle.
func (that *Match) MarkFor(connectionID string) Mark {
	if that.PlayerOne == connectionID {
		return MarkCross
	}
	return MarkCircle
}
