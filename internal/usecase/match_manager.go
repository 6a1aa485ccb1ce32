package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ticktak/backend/internal/apperror"
	"github.com/ticktak/backend/internal/entity"
)

type matchRepo interface {
	Create(ctx context.Context, match *entity.Match) error
	Update(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
}

// MatchManager owns all load/modify/persist sequences against match state.
// Every sequence for a given match id runs under that match's lock, so two
// connections can never interleave a load-then-write and lose an update.
type MatchManager struct {
	logger    *slog.Logger
	matchRepo matchRepo

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMatchManager(logger *slog.Logger, matchRepo matchRepo) *MatchManager {
	return &MatchManager{
		logger:    logger,
		matchRepo: matchRepo,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor - returns the serialization lock for a match, creating it on
// first use. Lock entries live for the process lifetime; the store's TTL
// bounds how many matches a process ever sees.
func (that *MatchManager) lockFor(matchID string) *sync.Mutex {
	that.mu.Lock()
	defer that.mu.Unlock()

	lock, ok := that.locks[matchID]
	if !ok {
		lock = &sync.Mutex{}
		that.locks[matchID] = lock
	}

	return lock
}

// GetOrCreateMatch - loads the match, creating it with connectionID as
// player one if the id is unknown. A second distinct identity is recorded
// as player two the first time it is observed.
func (that *MatchManager) GetOrCreateMatch(ctx context.Context, matchID, connectionID string) (*entity.Match, error) {
	lock := that.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, err := that.matchRepo.GetByID(ctx, matchID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		match = entity.NewMatch(matchID, connectionID)
		if err = that.matchRepo.Create(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to create match: %w", err)
		}

		return match, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if match.PlayerTwo == "" && match.PlayerOne != connectionID {
		match.PlayerTwo = connectionID
		if err = that.matchRepo.Update(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to record second player: %w", err)
		}
	}

	return match, nil
}

func (that *MatchManager) GetMatch(ctx context.Context, matchID string) (*entity.Match, error) {
	match, err := that.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return match, nil
}

// ApplyMove - loads the match, derives the mark to place from the stored
// turn, applies the move and persists the result. The whole sequence holds
// the match's lock so concurrent moves on one match are serialized.
func (that *MatchManager) ApplyMove(ctx context.Context, matchID string, grid, x, y int) (*entity.Match, error) {
	lock := that.lockFor(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, err := that.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	cell := entity.CellIndex(x, y)

	if err = match.ApplyMove(match.Turn, grid, cell); err != nil {
		return nil, fmt.Errorf("failed to make move: %w", err)
	}

	if err = that.matchRepo.Update(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	return match, nil
}
