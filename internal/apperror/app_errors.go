package apperror

import "errors"

var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrCellOccupied   = errors.New("cell is already occupied")
	ErrInvalidCell    = errors.New("invalid cell index")
	ErrCorruptedMatch = errors.New("corrupted match state")
)
