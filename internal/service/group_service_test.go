package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendwise/internal/calculator"
	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/storage"
	"github.com/mmynk/spendwise/internal/storage/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore opens a SQLite store in a temp directory.
func newTestStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store storage.Store, email, name string) *models.User {
	t.Helper()
	u := models.NewUser(email, name, "hash")
	require.NoError(t, store.CreateUser(context.Background(), u))
	return u
}

type countingObserver struct {
	appended, conflicts, settled atomic.Int64
}

func (c *countingObserver) LedgerAppended() { c.appended.Add(1) }
func (c *countingObserver) LedgerConflict() { c.conflicts.Add(1) }
func (c *countingObserver) ShareSettled()   { c.settled.Add(1) }

type groupFixture struct {
	svc   *GroupService
	store *sqlite.SQLiteStore
	obs   *countingObserver
	alice *models.User
	bob   *models.User
	carol *models.User
}

func setupGroupService(t *testing.T) *groupFixture {
	t.Helper()
	store := newTestStore(t)
	obs := &countingObserver{}
	return &groupFixture{
		svc:   NewGroupService(store, discardLogger()).WithObserver(obs),
		store: store,
		obs:   obs,
		alice: createUser(t, store, "alice@example.com", "Alice"),
		bob:   createUser(t, store, "bob@example.com", "Bob"),
		carol: createUser(t, store, "carol@example.com", "Carol"),
	}
}

func (f *groupFixture) createGroup(t *testing.T, creator *models.User, members ...string) *GroupView {
	t.Helper()
	g, err := f.svc.CreateGroup(context.Background(), creator.ID, CreateGroupInput{
		Title:       "Trip",
		Description: "Goa weekend",
		Members:     members,
	})
	require.NoError(t, err)
	return g
}

func memberIDs(g *GroupView) []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.UserID
	}
	return ids
}

func TestCreateGroup(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()

	t.Run("creator is prepended as admin", func(t *testing.T) {
		g := f.createGroup(t, f.alice, "bob@example.com", f.carol.ID)
		assert.Equal(t, []string{f.alice.ID, f.bob.ID, f.carol.ID}, memberIDs(g))
		assert.Equal(t, models.RoleAdmin, g.Members[0].Role)
		assert.Equal(t, models.RoleMember, g.Members[1].Role)
		assert.Equal(t, "Bob", g.Members[1].Name)
		assert.Zero(t, g.Version)
	})

	t.Run("listed creator is promoted in place", func(t *testing.T) {
		g := f.createGroup(t, f.bob, "alice@example.com", "BOB@example.com")
		assert.Equal(t, []string{f.alice.ID, f.bob.ID}, memberIDs(g))
		assert.Equal(t, models.RoleMember, g.Members[0].Role)
		assert.Equal(t, models.RoleAdmin, g.Members[1].Role)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		g := f.createGroup(t, f.alice, "bob@example.com", " Bob@Example.com ", f.bob.ID)
		assert.Equal(t, []string{f.alice.ID, f.bob.ID}, memberIDs(g))
	})

	t.Run("unknown members are reported together", func(t *testing.T) {
		_, err := f.svc.CreateGroup(ctx, f.alice.ID, CreateGroupInput{
			Title:       "Trip",
			Description: "Goa",
			Members:     []string{"missing@x.com", "bob@example.com", "no-such-id"},
		})
		var unknown *UnknownMembersError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, []string{"missing@x.com", "no-such-id"}, unknown.Missing)
	})

	t.Run("single unknown email", func(t *testing.T) {
		_, err := f.svc.CreateGroup(ctx, f.alice.ID, CreateGroupInput{
			Title:       "Trip",
			Description: "Goa",
			Members:     []string{"missing@x.com"},
		})
		var unknown *UnknownMembersError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, []string{"missing@x.com"}, unknown.Missing)
	})

	t.Run("required fields", func(t *testing.T) {
		for _, in := range []CreateGroupInput{
			{Description: "d", Members: []string{"bob@example.com"}},
			{Title: "t", Members: []string{"bob@example.com"}},
			{Title: "t", Description: "d"},
			{Title: "t", Description: "d", Members: []string{"  "}},
		} {
			_, err := f.svc.CreateGroup(ctx, f.alice.ID, in)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		}
	})
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	f := setupGroupService(t)
	created := f.createGroup(t, f.alice, "bob@example.com", "carol@example.com")

	got, err := f.svc.GetGroup(context.Background(), created.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trip", got.Title)
	assert.Equal(t, "Goa weekend", got.Description)
	assert.ElementsMatch(t, memberIDs(created), memberIDs(got))
	assert.Empty(t, got.Transactions)
}

func TestGetGroupErrors(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	g := f.createGroup(t, f.alice, "bob@example.com")

	_, err := f.svc.GetGroup(ctx, "missing", f.alice.ID)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	_, err = f.svc.GetGroup(ctx, g.ID, f.carol.ID)
	assert.ErrorIs(t, err, ErrNotGroupMember)
}

func TestAddTransaction(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	g := f.createGroup(t, f.alice, "bob@example.com", "carol@example.com")

	tests := []struct {
		name       string
		in         AddTransactionInput
		wantShares []money.Amount
		wantErr    error
	}{
		{
			name:       "equally",
			in:         AddTransactionInput{Description: "Dinner", Amount: 1001, SplitType: models.SplitEqually},
			wantShares: []money.Amount{501, 500},
		},
		{
			name: "unequally",
			in: AddTransactionInput{
				Description: "Cab",
				Amount:      1000,
				SplitType:   models.SplitUnequally,
				Shares: map[string]decimal.Decimal{
					f.bob.ID:   decimal.RequireFromString("7.5"),
					f.carol.ID: decimal.RequireFromString("2.5"),
				},
			},
			wantShares: []money.Amount{750, 250},
		},
		{
			name: "percentage",
			in: AddTransactionInput{
				Description: "Hotel",
				Amount:      1000,
				SplitType:   models.SplitPercentage,
				Shares: map[string]decimal.Decimal{
					f.bob.ID:   decimal.NewFromInt(60),
					f.carol.ID: decimal.NewFromInt(40),
				},
			},
			wantShares: []money.Amount{600, 400},
		},
		{
			name:    "unknown split type",
			in:      AddTransactionInput{Description: "x", Amount: 100, SplitType: "thirds"},
			wantErr: calculator.ErrInvalidSplitType,
		},
		{
			name: "shares do not add up",
			in: AddTransactionInput{
				Description: "x",
				Amount:      1000,
				SplitType:   models.SplitUnequally,
				Shares:      map[string]decimal.Decimal{f.bob.ID: decimal.NewFromInt(1)},
			},
			wantErr: calculator.ErrInvalidSplitInput,
		},
		{
			name:    "non-positive amount",
			in:      AddTransactionInput{Description: "x", Amount: 0, SplitType: models.SplitEqually},
			wantErr: ErrInvalidArgument,
		},
		{
			name:    "blank description",
			in:      AddTransactionInput{Description: " ", Amount: 100, SplitType: models.SplitEqually},
			wantErr: ErrInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := f.svc.AddTransaction(ctx, g.ID, f.alice.ID, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.alice.ID, tx.InitiatedBy.UserID)
			assert.Equal(t, models.StatusPending, tx.Status)
			require.Len(t, tx.SplitDetails, len(tt.wantShares))
			var sum money.Amount
			for i, d := range tx.SplitDetails {
				assert.Equal(t, tt.wantShares[i], d.Share)
				assert.False(t, d.Paid)
				sum += d.Share
			}
			assert.Equal(t, tt.in.Amount, sum)
			assert.Equal(t, f.bob.ID, tx.SplitDetails[0].Member.UserID)
			assert.Equal(t, "Bob", tx.SplitDetails[0].Member.Name)
		})
	}

	assert.EqualValues(t, 3, f.obs.appended.Load())
}

func TestAddTransactionErrors(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	in := AddTransactionInput{Description: "Fuel", Amount: 100, SplitType: models.SplitEqually}

	_, err := f.svc.AddTransaction(ctx, "missing", f.alice.ID, in)
	assert.ErrorIs(t, err, ErrGroupNotFound)

	g := f.createGroup(t, f.alice, "bob@example.com")
	_, err = f.svc.AddTransaction(ctx, g.ID, f.carol.ID, in)
	assert.ErrorIs(t, err, ErrInitiatorNotMember)

	solo := f.createGroup(t, f.carol, "carol@example.com")
	_, err = f.svc.AddTransaction(ctx, solo.ID, f.carol.ID, in)
	assert.ErrorIs(t, err, calculator.ErrInsufficientMembers)
}

func TestLedgerKeepsInsertionOrder(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	g := f.createGroup(t, f.alice, "bob@example.com", "carol@example.com")

	for _, desc := range []string{"first", "second"} {
		_, err := f.svc.AddTransaction(ctx, g.ID, f.alice.ID, AddTransactionInput{
			Description: desc,
			Amount:      money.MustParse("100"),
			SplitType:   models.SplitEqually,
		})
		require.NoError(t, err)
	}

	got, err := f.svc.GetGroup(ctx, g.ID, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "first", got.Transactions[0].Description)
	assert.Equal(t, "second", got.Transactions[1].Description)
	for _, tx := range got.Transactions {
		require.Len(t, tx.SplitDetails, 2)
		assert.Equal(t, money.MustParse("50"), tx.SplitDetails[0].Share)
		assert.Equal(t, money.MustParse("50"), tx.SplitDetails[1].Share)
	}
	assert.Equal(t, int64(2), got.Version)
}

func TestConcurrentAppendsAllLand(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	g := f.createGroup(t, f.alice, "bob@example.com", "carol@example.com")

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddTransaction(ctx, g.ID, f.bob.ID, AddTransactionInput{
				Description: "Round",
				Amount:      300,
				SplitType:   models.SplitEqually,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := f.svc.GetGroup(ctx, g.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, got.Transactions, writers)
	assert.Equal(t, int64(writers), got.Version)
	assert.EqualValues(t, writers, f.obs.appended.Load())
	assert.Zero(t, f.obs.conflicts.Load())
}

// conflictStore fails every settlement with a version conflict.
type conflictStore struct {
	storage.Store
}

func (conflictStore) MarkSharePaid(context.Context, string, int64, string, string, models.TransactionStatus) (int64, error) {
	return 0, storage.ErrConflict
}

func TestSettleShareGivesUpAfterRetries(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	g := f.createGroup(t, f.alice, "bob@example.com")

	obs := &countingObserver{}
	svc := NewGroupService(conflictStore{f.store}, discardLogger()).WithObserver(obs)
	tx, err := svc.AddTransaction(ctx, g.ID, f.alice.ID, AddTransactionInput{
		Description: "Fuel",
		Amount:      100,
		SplitType:   models.SplitEqually,
	})
	require.NoError(t, err)

	_, err = svc.SettleShare(ctx, g.ID, tx.ID, f.bob.ID)
	assert.ErrorIs(t, err, storage.ErrConflict)
	assert.EqualValues(t, maxLedgerAttempts, obs.conflicts.Load())
	assert.Zero(t, obs.settled.Load())
}

func TestListGroups(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	g := f.createGroup(t, f.alice, "bob@example.com")
	f.createGroup(t, f.carol, "carol@example.com")

	_, err := f.svc.AddTransaction(ctx, g.ID, f.alice.ID, AddTransactionInput{
		Description: "Fuel", Amount: 100, SplitType: models.SplitEqually,
	})
	require.NoError(t, err)

	groups, err := f.svc.ListGroups(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, g.ID, groups[0].ID)
	assert.Equal(t, 2, groups[0].MemberCount)
	assert.Equal(t, 1, groups[0].TransactionCount)

	groups, err = f.svc.ListGroups(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestSettleShareAndBalances(t *testing.T) {
	f := setupGroupService(t)
	ctx := context.Background()
	g := f.createGroup(t, f.alice, "bob@example.com", "carol@example.com")

	tx, err := f.svc.AddTransaction(ctx, g.ID, f.alice.ID, AddTransactionInput{
		Description: "Groceries", Amount: 900, SplitType: models.SplitEqually,
	})
	require.NoError(t, err)

	balances, err := f.svc.GetGroupBalances(ctx, g.ID, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, balances.Balances, 3)
	assert.Equal(t, money.Amount(900), balances.Balances[0].Net)
	assert.Equal(t, "Alice", balances.Balances[0].Name)
	assert.Equal(t, money.Amount(-450), balances.Balances[1].Net)
	assert.Len(t, balances.Debts, 2)

	settled, err := f.svc.SettleShare(ctx, g.ID, tx.ID, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, settled.Status)
	assert.True(t, settled.SplitDetails[0].Paid)

	_, err = f.svc.SettleShare(ctx, g.ID, tx.ID, f.bob.ID)
	assert.ErrorIs(t, err, ErrAlreadySettled)

	_, err = f.svc.SettleShare(ctx, g.ID, tx.ID, f.alice.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = f.svc.SettleShare(ctx, g.ID, "missing", f.carol.ID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	settled, err = f.svc.SettleShare(ctx, g.ID, tx.ID, f.carol.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, settled.Status)
	assert.EqualValues(t, 2, f.obs.settled.Load())

	balances, err = f.svc.GetGroupBalances(ctx, g.ID, f.alice.ID)
	require.NoError(t, err)
	for _, b := range balances.Balances {
		assert.Zero(t, b.Net, b.Name)
	}
	assert.Empty(t, balances.Debts)

	_, err = f.svc.GetGroupBalances(ctx, g.ID, "outsider")
	assert.True(t, errors.Is(err, ErrNotGroupMember))
}
