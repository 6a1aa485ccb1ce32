package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticktak/backend/internal/apperror"
	"github.com/ticktak/backend/internal/entity"
)

// memoryRepo is an in-memory stand-in for the Redis repository. It stores
// matches serialized, like the real one, so tests observe persisted state
// rather than shared pointers.
type memoryRepo struct {
	mu      sync.Mutex
	data    map[string][]byte
	failSet error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{data: make(map[string][]byte)}
}

func (that *memoryRepo) Create(_ context.Context, match *entity.Match) error {
	return that.set(match)
}

func (that *memoryRepo) Update(_ context.Context, match *entity.Match) error {
	return that.set(match)
}

func (that *memoryRepo) set(match *entity.Match) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.failSet != nil {
		return that.failSet
	}

	raw, err := json.Marshal(match)
	if err != nil {
		return err
	}

	that.data[match.ID] = raw

	return nil
}

func (that *memoryRepo) GetByID(_ context.Context, id string) (*entity.Match, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, ok := that.data[id]
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	var match entity.Match
	if err := json.Unmarshal(raw, &match); err != nil {
		return nil, apperror.ErrCorruptedMatch
	}

	return &match, nil
}

func newTestManager(t *testing.T) (*MatchManager, *memoryRepo) {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	repo := newMemoryRepo()

	return NewMatchManager(logger, repo), repo
}

func TestMatchManager_GetOrCreateMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a fresh match on unknown id", func(t *testing.T) {
		manager, _ := newTestManager(t)

		// When: the first connection resolves an unseen match id
		match, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")

		// Then: a match is created with that identity as player one
		require.NoError(t, err)
		assert.Equal(t, "u-one", match.PlayerOne)
		assert.Empty(t, match.PlayerTwo)
		assert.Equal(t, entity.MarkCross, match.Turn)
		assert.Equal(t, entity.MarkCross, match.MarkFor("u-one"))
	})

	t.Run("Second identity becomes player two", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		// When: a second identity resolves the same match
		match, err := manager.GetOrCreateMatch(ctx, "abc", "u-two")

		// Then: it is recorded as player two and assigned Circle
		require.NoError(t, err)
		assert.Equal(t, "u-one", match.PlayerOne)
		assert.Equal(t, "u-two", match.PlayerTwo)
		assert.Equal(t, entity.MarkCircle, match.MarkFor("u-two"))

		// And: the assignment is persisted
		stored, err := manager.GetMatch(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "u-two", stored.PlayerTwo)
	})

	t.Run("Reconnecting first identity keeps Cross", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		match, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		assert.Empty(t, match.PlayerTwo)
		assert.Equal(t, entity.MarkCross, match.MarkFor("u-one"))
	})

	t.Run("Returns error when the store write fails", func(t *testing.T) {
		manager, repo := newTestManager(t)
		repo.failSet = errors.New("redis down")

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.Error(t, err)
	})
}

func TestMatchManager_GetMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Idempotent without intervening moves", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		first, err := manager.GetMatch(ctx, "abc")
		require.NoError(t, err)
		second, err := manager.GetMatch(ctx, "abc")
		require.NoError(t, err)

		require.Equal(t, first, second)
	})

	t.Run("NotFound for unknown id", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetMatch(ctx, "never-created")
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})
}

func TestMatchManager_ApplyMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies the stored turn's mark and flips it", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		// When: the first move targets grid 0, x 0, y 0
		match, err := manager.ApplyMove(ctx, "abc", 0, 0, 0)

		// Then: the cell holds Cross and Circle is to move
		require.NoError(t, err)
		assert.Equal(t, entity.MarkCross, match.Board[0][0])
		assert.Equal(t, entity.MarkCircle, match.Turn)

		// And: the result is persisted
		stored, err := manager.GetMatch(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, match, stored)
	})

	t.Run("Flattens intra-grid coordinates as y*3+x", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		match, err := manager.ApplyMove(ctx, "abc", 2, 1, 2)
		require.NoError(t, err)

		assert.Equal(t, entity.MarkCross, match.Board[2][7])
	})

	t.Run("Occupied cell leaves persisted state unchanged", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		_, err = manager.ApplyMove(ctx, "abc", 0, 0, 0)
		require.NoError(t, err)

		before, err := manager.GetMatch(ctx, "abc")
		require.NoError(t, err)

		// When: the same cell is played again
		_, err = manager.ApplyMove(ctx, "abc", 0, 0, 0)

		// Then: the move is rejected and the stored state is untouched
		require.ErrorIs(t, err, apperror.ErrCellOccupied)

		after, err := manager.GetMatch(ctx, "abc")
		require.NoError(t, err)
		require.Equal(t, before, after)
	})

	t.Run("NotFound for unknown match", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.ApplyMove(ctx, "never-created", 0, 0, 0)
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Concurrent moves on one match lose no updates", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "abc", "u-one")
		require.NoError(t, err)

		// When: nine goroutines move on distinct cells of the same match
		var wg sync.WaitGroup
		for grid := 0; grid < 9; grid++ {
			wg.Add(1)
			go func(grid int) {
				defer wg.Done()
				_, applyErr := manager.ApplyMove(ctx, "abc", grid, 0, 0)
				assert.NoError(t, applyErr)
			}(grid)
		}
		wg.Wait()

		// Then: every move survives in the persisted board
		stored, err := manager.GetMatch(ctx, "abc")
		require.NoError(t, err)

		placed := 0
		for grid := range stored.Board {
			for cell := range stored.Board[grid] {
				if stored.Board[grid][cell] != entity.MarkEmpty {
					placed++
				}
			}
		}
		require.Equal(t, 9, placed)
	})

	t.Run("Moves on different matches stay isolated", func(t *testing.T) {
		manager, _ := newTestManager(t)

		_, err := manager.GetOrCreateMatch(ctx, "aaa", "u-one")
		require.NoError(t, err)
		_, err = manager.GetOrCreateMatch(ctx, "bbb", "u-two")
		require.NoError(t, err)

		_, err = manager.ApplyMove(ctx, "aaa", 0, 0, 0)
		require.NoError(t, err)

		other, err := manager.GetMatch(ctx, "bbb")
		require.NoError(t, err)

		for grid := range other.Board {
			for cell := range other.Board[grid] {
				require.Equal(t, entity.MarkEmpty, other.Board[grid][cell])
			}
		}
		require.Equal(t, entity.MarkCross, other.Turn)
	})
}
