package mongo

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/storage"
)

// newTestStore connects to MONGO_URI using a throwaway database.
func newTestStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := New(ctx, uri, "spendwise_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Drop(context.Background())
		store.Close()
	})
	return store
}

func TestMongoGroupLedger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := models.NewUser("alice@example.com", "Alice", "hash")
	bob := models.NewUser("bob@example.com", "Bob", "hash")
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, bob))
	assert.ErrorIs(t, store.CreateUser(ctx, models.NewUser("bob@example.com", "B", "h")), storage.ErrDuplicate)

	now := time.Now().UTC().Truncate(time.Millisecond)
	group := &models.Group{
		ID:    uuid.NewString(),
		Title: "Trip",
		Members: []models.Member{
			{UserID: alice.ID, Name: "Alice", Email: alice.Email, Role: models.RoleAdmin},
			{UserID: bob.ID, Name: "Bob", Email: bob.Email, Role: models.RoleMember},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateGroup(ctx, group))

	tx := &models.GroupTransaction{
		ID:           uuid.NewString(),
		Description:  "Fuel",
		Amount:       4000,
		Date:         now,
		SplitType:    models.SplitEqually,
		InitiatedBy:  alice.ID,
		Status:       models.StatusPending,
		SplitDetails: []models.SplitDetail{{Member: bob.ID, Share: 4000}},
	}
	v, err := store.AppendTransaction(ctx, group.ID, tx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	_, err = store.AppendTransaction(ctx, "missing", tx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.MarkSharePaid(ctx, group.ID, 0, tx.ID, bob.ID, models.StatusCompleted)
	assert.ErrorIs(t, err, storage.ErrConflict)

	v, err = store.MarkSharePaid(ctx, group.ID, 1, tx.ID, bob.ID, models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = store.MarkSharePaid(ctx, group.ID, 2, tx.ID, "stranger", models.StatusCompleted)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, models.StatusCompleted, got.Transactions[0].Status)
	assert.True(t, got.Transactions[0].SplitDetails[0].Paid)
	assert.Equal(t, []string{alice.ID, bob.ID}, got.MemberIDs())

	groups, err := store.ListGroupsByMember(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Transactions, 1)
}

func TestMongoConcurrentAppendsAllLand(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := &models.Group{ID: uuid.NewString(), Title: "Race", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateGroup(ctx, group))

	const writers = 16
	var wg sync.WaitGroup
	versions := make(chan int64, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := store.AppendTransaction(ctx, group.ID, &models.GroupTransaction{ID: uuid.NewString()})
			assert.NoError(t, err)
			versions <- v
		}()
	}
	wg.Wait()
	close(versions)

	seen := make(map[int64]bool)
	for v := range versions {
		assert.False(t, seen[v], "version %d returned twice", v)
		seen[v] = true
	}
	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), got.Version)
	assert.Len(t, got.Transactions, writers)
}

func TestMongoFriendsAndTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := models.NewUser("alice@example.com", "Alice", "hash")
	bob := models.NewUser("bob@example.com", "Bob", "hash")
	require.NoError(t, store.CreateUser(ctx, alice))
	require.NoError(t, store.CreateUser(ctx, bob))

	require.NoError(t, store.AddFriendship(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, store.AddFriendship(ctx, alice.ID, bob.ID), storage.ErrDuplicate)
	friends, err := store.ListFriends(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, alice.ID, friends[0].ID)

	now := time.Now().UTC().Truncate(time.Millisecond)
	tx := &models.Transaction{
		ID: uuid.NewString(), UserID: alice.ID, Type: models.TypeExpense,
		Amount: 999, Description: "Snacks", Date: now, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateTransaction(ctx, tx))
	_, err = store.GetTransaction(ctx, bob.ID, tx.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tx.Amount = 1099
	require.NoError(t, store.UpdateTransaction(ctx, tx))
	list, err := store.ListTransactions(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.EqualValues(t, 1099, list[0].Amount)

	require.NoError(t, store.DeleteTransaction(ctx, alice.ID, tx.ID))
	assert.ErrorIs(t, store.DeleteTransaction(ctx, alice.ID, tx.ID), storage.ErrNotFound)
}
