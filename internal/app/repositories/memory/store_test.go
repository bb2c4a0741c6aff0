package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kapwanet/exchange/internal/app/models"
	"github.com/kapwanet/exchange/internal/app/repositories"
	"github.com/kapwanet/exchange/internal/app/repositories/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.RunStoreContract(t, NewStore())
}

func TestFailOnInjectsErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("disk full")
	store.FailOn("posts.Create", boom)

	err := store.Posts().Create(ctx, &models.Post{OrgID: uuid.New()})
	assert.ErrorIs(t, err, boom)

	store.ClearFailures()
	assert.NoError(t, store.Posts().Create(ctx, &models.Post{OrgID: uuid.New()}))
}

func TestReturnedRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	p := &models.Post{OrgID: uuid.New(), Title: "Bike", Safety: models.FoodSafety{Allergens: []string{"none"}}}
	require.NoError(t, store.Posts().Create(ctx, p))

	p.Title = "mutated after create"
	loaded, err := store.Posts().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bike", loaded.Title)

	loaded.Safety.Allergens[0] = "mutated"
	again, err := store.Posts().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"none"}, again.Safety.Allergens)
}

func TestWithinTxIsolatesUncommittedWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	p := &models.Post{OrgID: uuid.New(), Variant: models.VariantHelp, Status: models.PostOpen}
	require.NoError(t, store.Posts().Create(ctx, p))

	err := store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if err := repos.Posts().UpdateStatus(ctx, p.ID, models.PostMatched, p.CreatedAt); err != nil {
			return err
		}
		inside, err := repos.Posts().GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PostMatched, inside.Status, "reads inside the tx see its writes")
		return repos.Threads().Create(ctx, &models.Thread{ID: uuid.New()})
	})
	require.NoError(t, err)

	store.FailOn("threads.Create", errors.New("unavailable"))
	err = store.WithinTx(ctx, func(ctx context.Context, repos repositories.Repositories) error {
		if err := repos.Posts().UpdateStatus(ctx, p.ID, models.PostCompleted, p.CreatedAt); err != nil {
			return err
		}
		return repos.Threads().Create(ctx, &models.Thread{ID: uuid.New()})
	})
	require.Error(t, err)

	loaded, err := store.Posts().GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostMatched, loaded.Status)
}

func TestWithinTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewStore().WithinTx(ctx, func(context.Context, repositories.Repositories) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
