package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertIsIdempotentPerUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	projectID := uuid.New()

	first, err := store.Upsert(ctx, projectID, 42, 42, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingPayment, first.Status)

	second, err := store.Upsert(ctx, projectID, 42, 42, "alice_new")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice_new", second.Username)
	assert.Equal(t, 1, store.Writes())

	other, err := store.Upsert(ctx, uuid.New(), 42, 42, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCompareAndSwapRejectsStaleWrites(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sub, err := store.Upsert(ctx, uuid.New(), 1, 1, "bob")
	require.NoError(t, err)

	next := sub.Clone()
	next.Status = domain.StatusAwaitingProof
	stored, err := store.CompareAndSwap(ctx, next, domain.StatusPendingPayment)
	require.NoError(t, err)
	assert.Equal(t, sub.Version+1, stored.Version)

	// повтор с той же версией
	_, err = store.CompareAndSwap(ctx, next, domain.StatusPendingPayment)
	assert.ErrorIs(t, err, repository.ErrStale)
}

func TestCompareAndSwapConcurrentWritersOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	sub, err := store.Upsert(ctx, uuid.New(), 1, 1, "carol")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := sub.Clone()
			next.Status = domain.StatusAwaitingProof
			if _, err := store.CompareAndSwap(ctx, next, domain.StatusPendingPayment); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestListQueries(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	soon := now.Add(48 * time.Hour)

	store.PutSubscriber(&domain.Subscriber{ID: uuid.New(), Status: domain.StatusActive, ExpiryDate: &past})
	store.PutSubscriber(&domain.Subscriber{ID: uuid.New(), Status: domain.StatusExpired, ExpiryDate: &past})
	store.PutSubscriber(&domain.Subscriber{ID: uuid.New(), Status: domain.StatusSuspended, ExpiryDate: &past})
	store.PutSubscriber(&domain.Subscriber{ID: uuid.New(), Status: domain.StatusActive, ExpiryDate: &soon})
	store.PutSubscriber(&domain.Subscriber{ID: uuid.New(), Status: domain.StatusActive, ExpiryDate: &soon, Reminder3dSent: true})
	store.PutSubscriber(&domain.Subscriber{ID: uuid.New(), Status: domain.StatusPendingApproval, StartDate: &past, ExpiryDate: &soon})
	store.PutSubscriber(&domain.Subscriber{ID: uuid.New(), Status: domain.StatusAwaitingProof, ExpiryDate: &soon})

	expired, err := store.ListExpired(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, expired, 1)

	// active без флага и продление с живым грантом; флаг 3d или отсутствие гранта исключают
	due, err := store.ListRemindersDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func TestPlansAreScopedAndSorted(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	projectID := uuid.New()
	store.PutPlan(domain.Plan{ID: uuid.New(), ProjectID: projectID, Name: "year", PriceMinor: 9000, Active: true})
	store.PutPlan(domain.Plan{ID: uuid.New(), ProjectID: projectID, Name: "month", PriceMinor: 1000, Active: true})
	store.PutPlan(domain.Plan{ID: uuid.New(), ProjectID: projectID, Name: "old", PriceMinor: 500, Active: false})
	store.PutPlan(domain.Plan{ID: uuid.New(), ProjectID: uuid.New(), Name: "foreign", PriceMinor: 1, Active: true})

	plans, err := store.Plans().ListActiveByProject(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "month", plans[0].Name)
}
