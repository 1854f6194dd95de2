package ratings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animeranker/pkg/database"
	"animeranker/pkg/models"
)

// every Store implementation must pass the same behaviour checks
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store { return newTestSQLStore(t) },
	}
}

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.Open(database.Config{DSN: database.MemoryDSN("")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))
	return NewSQLStore(db)
}

func TestStore_CreateValidatesRange(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			for _, bad := range []int{0, 11, -3} {
				_, err := s.Create(ctx, 1, "u1", bad)
				assert.True(t, errors.Is(err, ErrInvalidValue), "value %d", bad)
			}

			low, err := s.Create(ctx, 1, "u1", 1)
			require.NoError(t, err)
			assert.Equal(t, 1, low.Rating)

			high, err := s.Create(ctx, 2, "u1", 10)
			require.NoError(t, err)
			assert.Equal(t, 10, high.Rating)
		})
	}
}

func TestStore_CreateSetsIdentityAndTimestamps(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			r, err := s.Create(ctx, 5114, "", 8)
			require.NoError(t, err)

			assert.NotEmpty(t, r.ID)
			assert.Equal(t, 5114, r.AnimeID)
			assert.Equal(t, models.DefaultUserID, r.UserID)
			assert.False(t, r.CreatedAt.IsZero())
			assert.True(t, r.CreatedAt.Equal(r.UpdatedAt))

			other, err := s.Create(ctx, 9253, "", 7)
			require.NoError(t, err)
			assert.NotEqual(t, r.ID, other.ID)
		})
	}
}

func TestStore_CreateRejectsDuplicatePair(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			_, err := s.Create(ctx, 1, "u1", 5)
			require.NoError(t, err)
			_, err = s.Create(ctx, 1, "u1", 6)
			assert.True(t, errors.Is(err, ErrDuplicate))

			list, err := s.ListBySubject(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStore_UpdatePreservesIDAndCreatedAt(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			created, err := s.Create(ctx, 1, "u1", 5)
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond)

			updated, err := s.Update(ctx, 1, "u1", 9)
			require.NoError(t, err)

			assert.Equal(t, created.ID, updated.ID)
			assert.Equal(t, 9, updated.Rating)
			assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
			assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
		})
	}
}

func TestStore_UpdateErrors(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			_, err := s.Update(ctx, 1, "u1", 5)
			assert.True(t, errors.Is(err, ErrNotFound))

			_, err = s.Create(ctx, 1, "u1", 5)
			require.NoError(t, err)
			_, err = s.Update(ctx, 1, "u1", 11)
			assert.True(t, errors.Is(err, ErrInvalidValue))
		})
	}
}

func TestStore_UpsertKeepsOneRatingPerPair(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			first, created, err := s.Upsert(ctx, 2, "u1", 6)
			require.NoError(t, err)
			assert.True(t, created)

			second, created, err := s.Upsert(ctx, 2, "u1", 9)
			require.NoError(t, err)
			assert.False(t, created)

			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, 9, second.Rating)
			assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

			byUser, err := s.ListByUser(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, byUser, 1)
			assert.Equal(t, 9, byUser[0].Rating)

			got, err := s.Get(ctx, 2, "u1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, first.ID, got.ID)

			_, _, err = s.Upsert(ctx, 2, "u1", 0)
			assert.True(t, errors.Is(err, ErrInvalidValue))
		})
	}
}

func TestStore_Listings(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore()

			_, _, _ = s.Upsert(ctx, 1, "u1", 7)
			_, _, _ = s.Upsert(ctx, 2, "u1", 8)
			_, _, _ = s.Upsert(ctx, 1, "u2", 3)

			byUser, err := s.ListByUser(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, byUser, 2)
			assert.Equal(t, 1, byUser[0].AnimeID)
			assert.Equal(t, 2, byUser[1].AnimeID)

			bySubject, err := s.ListBySubject(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, bySubject, 2)

			none, err := s.ListByUser(ctx, "nobody")
			require.NoError(t, err)
			assert.Empty(t, none)

			missing, err := s.Get(ctx, 3, "u1")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestMemoryStore_ConcurrentUpsertsKeepPairUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			_, _, _ = s.Upsert(ctx, 7, "u1", v%10+1)
		}(i)
	}
	wg.Wait()

	list, err := s.ListBySubject(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
