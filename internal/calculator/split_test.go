package calculator

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
)

func sumShares(details []models.SplitDetail) money.Amount {
	var total money.Amount
	for _, d := range details {
		total += d.Share
	}
	return total
}

func pct(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEqualSplit(t *testing.T) {
	tests := []struct {
		name         string
		amount       money.Amount
		members      []string
		initiator    string
		wantErr      error
		validateFunc func(t *testing.T, details []models.SplitDetail)
	}{
		{
			name:      "two members, initiator excluded",
			amount:    10000,
			members:   []string{"alice", "bob"},
			initiator: "alice",
			validateFunc: func(t *testing.T, details []models.SplitDetail) {
				if len(details) != 1 {
					t.Fatalf("got %d details, want 1", len(details))
				}
				if details[0].Member != "bob" || details[0].Share != 10000 {
					t.Errorf("got %+v, want bob owing 100.00", details[0])
				}
			},
		},
		{
			name:      "three members share evenly",
			amount:    10000,
			members:   []string{"alice", "bob", "carol"},
			initiator: "alice",
			validateFunc: func(t *testing.T, details []models.SplitDetail) {
				for _, d := range details {
					if d.Share != 5000 {
						t.Errorf("%s share = %s, want 50.00", d.Member, d.Share)
					}
					if d.Paid {
						t.Errorf("%s should start unpaid", d.Member)
					}
				}
			},
		},
		{
			name:      "remainder cents go to earliest members",
			amount:    1000,
			members:   []string{"alice", "bob", "carol", "dave"},
			initiator: "alice",
			validateFunc: func(t *testing.T, details []models.SplitDetail) {
				// 10.00 / 3 = 3.33 remainder 1 cent
				want := []money.Amount{334, 333, 333}
				for i, d := range details {
					if d.Share != want[i] {
						t.Errorf("%s share = %v, want %v", d.Member, d.Share, want[i])
					}
				}
			},
		},
		{
			name:      "initiator in the middle keeps member order",
			amount:    500,
			members:   []string{"alice", "bob", "carol"},
			initiator: "bob",
			validateFunc: func(t *testing.T, details []models.SplitDetail) {
				if details[0].Member != "alice" || details[1].Member != "carol" {
					t.Errorf("got order %s, %s", details[0].Member, details[1].Member)
				}
			},
		},
		{
			name:      "single member group",
			amount:    1000,
			members:   []string{"alice"},
			initiator: "alice",
			wantErr:   ErrInsufficientMembers,
		},
		{
			name:      "zero amount",
			amount:    0,
			members:   []string{"alice", "bob"},
			initiator: "alice",
			wantErr:   ErrInvalidSplitInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := Equal{}.Split(tt.amount, tt.members, tt.initiator)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Split() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split() unexpected error: %v", err)
			}
			if len(details) != len(tt.members)-1 {
				t.Errorf("got %d details, want %d", len(details), len(tt.members)-1)
			}
			if got := sumShares(details); got != tt.amount {
				t.Errorf("shares sum to %s, want %s", got, tt.amount)
			}
			for _, d := range details {
				if d.Member == tt.initiator {
					t.Errorf("initiator %s must not owe a share", d.Member)
				}
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, details)
			}
		})
	}
}

func TestUnequalSplit(t *testing.T) {
	members := []string{"alice", "bob", "carol"}

	tests := []struct {
		name    string
		amounts map[string]money.Amount
		amount  money.Amount
		wantErr error
		want    []models.SplitDetail
	}{
		{
			name:    "exact amounts",
			amounts: map[string]money.Amount{"carol": 2500, "bob": 7500},
			amount:  10000,
			want: []models.SplitDetail{
				{Member: "bob", Share: 7500},
				{Member: "carol", Share: 2500},
			},
		},
		{
			name:    "zero share is dropped",
			amounts: map[string]money.Amount{"bob": 10000, "carol": 0},
			amount:  10000,
			want:    []models.SplitDetail{{Member: "bob", Share: 10000}},
		},
		{
			name:    "sum mismatch",
			amounts: map[string]money.Amount{"bob": 4000, "carol": 4000},
			amount:  10000,
			wantErr: ErrInvalidSplitInput,
		},
		{
			name:    "initiator share rejected",
			amounts: map[string]money.Amount{"alice": 5000, "bob": 5000},
			amount:  10000,
			wantErr: ErrInvalidSplitInput,
		},
		{
			name:    "non-member rejected",
			amounts: map[string]money.Amount{"mallory": 10000},
			amount:  10000,
			wantErr: ErrInvalidSplitInput,
		},
		{
			name:    "negative share rejected",
			amounts: map[string]money.Amount{"bob": 11000, "carol": -1000},
			amount:  10000,
			wantErr: ErrInvalidSplitInput,
		},
		{
			name:    "no shares",
			amounts: map[string]money.Amount{},
			amount:  10000,
			wantErr: ErrInvalidSplitInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := Unequal{Amounts: tt.amounts}.Split(tt.amount, members, "alice")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Split() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split() unexpected error: %v", err)
			}
			if len(details) != len(tt.want) {
				t.Fatalf("got %d details, want %d", len(details), len(tt.want))
			}
			for i := range tt.want {
				if details[i] != tt.want[i] {
					t.Errorf("detail[%d] = %+v, want %+v", i, details[i], tt.want[i])
				}
			}
		})
	}
}

func TestPercentageSplit(t *testing.T) {
	members := []string{"alice", "bob", "carol", "dave"}

	tests := []struct {
		name     string
		percents map[string]decimal.Decimal
		amount   money.Amount
		wantErr  error
		want     map[string]money.Amount
	}{
		{
			name:     "even halves",
			percents: map[string]decimal.Decimal{"bob": pct("50"), "carol": pct("50")},
			amount:   10000,
			want:     map[string]money.Amount{"bob": 5000, "carol": 5000},
		},
		{
			name: "thirds reconcile to the amount",
			percents: map[string]decimal.Decimal{
				"bob": pct("33.3333"), "carol": pct("33.3333"), "dave": pct("33.3334"),
			},
			amount: 10000,
			// 3333.33, 3333.33, 3333.34 floor to 3333 each, the leftover cent
			// goes to the largest fraction (dave).
			want: map[string]money.Amount{"bob": 3333, "carol": 3333, "dave": 3334},
		},
		{
			name:     "uneven percentages",
			percents: map[string]decimal.Decimal{"bob": pct("70"), "carol": pct("30")},
			amount:   999,
			// 699.3 and 299.7: floors 699 + 299 = 998, carol has the larger fraction.
			want: map[string]money.Amount{"bob": 699, "carol": 300},
		},
		{
			name:     "does not sum to 100",
			percents: map[string]decimal.Decimal{"bob": pct("50"), "carol": pct("40")},
			amount:   10000,
			wantErr:  ErrInvalidSplitInput,
		},
		{
			name:     "initiator percentage rejected",
			percents: map[string]decimal.Decimal{"alice": pct("50"), "bob": pct("50")},
			amount:   10000,
			wantErr:  ErrInvalidSplitInput,
		},
		{
			name:     "negative percentage rejected",
			percents: map[string]decimal.Decimal{"bob": pct("110"), "carol": pct("-10")},
			amount:   10000,
			wantErr:  ErrInvalidSplitInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details, err := Percentage{Percents: tt.percents}.Split(tt.amount, members, "alice")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Split() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Split() unexpected error: %v", err)
			}
			if got := sumShares(details); got != tt.amount {
				t.Errorf("shares sum to %s, want %s", got, tt.amount)
			}
			for _, d := range details {
				if d.Share != tt.want[d.Member] {
					t.Errorf("%s share = %v, want %v", d.Member, d.Share, tt.want[d.Member])
				}
			}
		})
	}
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(models.SplitEqually, nil)
	if err != nil || s.Type() != models.SplitEqually {
		t.Fatalf("NewStrategy(equally) = %v, %v", s, err)
	}

	s, err = NewStrategy(models.SplitUnequally, map[string]decimal.Decimal{"bob": pct("12.34")})
	if err != nil {
		t.Fatalf("NewStrategy(unequally) error: %v", err)
	}
	if got := s.(Unequal).Amounts["bob"]; got != 1234 {
		t.Errorf("unequal share = %v, want 1234 cents", got)
	}

	s, err = NewStrategy(models.SplitPercentage, map[string]decimal.Decimal{"bob": pct("100")})
	if err != nil || s.Type() != models.SplitPercentage {
		t.Fatalf("NewStrategy(percentage) = %v, %v", s, err)
	}

	if _, err := NewStrategy("byweight", nil); !errors.Is(err, ErrInvalidSplitType) {
		t.Errorf("NewStrategy(byweight) error = %v, want ErrInvalidSplitType", err)
	}
}

func TestNewStrategyRejectsUnrepresentableShares(t *testing.T) {
	tests := map[string]string{
		"sub-cent share":        "33.335",
		"trailing fraction":     "10.001",
		"beyond cents range":    "200000000000000000",
		"huge exponent":         "1e30",
		"negative out of range": "-1e30",
	}
	for name, share := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewStrategy(models.SplitUnequally, map[string]decimal.Decimal{"bob": pct(share)})
			assert.ErrorIs(t, err, ErrInvalidSplitInput)
		})
	}
}

func TestNewStrategyAcceptsTrailingZeros(t *testing.T) {
	s, err := NewStrategy(models.SplitUnequally, map[string]decimal.Decimal{"bob": pct("33.330")})
	require.NoError(t, err)
	assert.Equal(t, money.Amount(3333), s.(Unequal).Amounts["bob"])
}

func TestUnequalSplitRejectsOverflowingShares(t *testing.T) {
	u := Unequal{Amounts: map[string]money.Amount{
		"bob":   math.MaxInt64,
		"carol": math.MaxInt64,
	}}
	_, err := u.Split(1000, []string{"alice", "bob", "carol"}, "alice")
	assert.ErrorIs(t, err, ErrInvalidSplitInput)
}
