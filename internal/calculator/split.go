package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
)

var (
	// ErrInsufficientMembers is returned when no member other than the initiator can share a transaction.
	ErrInsufficientMembers = errors.New("there must be at least one other member to split the expense")
	// ErrInvalidSplitInput is returned when explicit shares or percentages don't reconcile.
	ErrInvalidSplitInput = errors.New("invalid split input")
	// ErrInvalidSplitType is returned for split policies other than equally, unequally and percentage.
	ErrInvalidSplitType = errors.New("invalid splitType: allowed values are 'equally', 'unequally', 'percentage'")
)

// percentEpsilon is how far percentages may drift from 100 before they are rejected.
var percentEpsilon = decimal.New(1, -4)

var hundred = decimal.NewFromInt(100)

// Strategy computes per-member shares of a transaction amount.
// members is the group's member list (user IDs) in insertion order.
type Strategy interface {
	Type() models.SplitType
	Split(amount money.Amount, members []string, initiator string) ([]models.SplitDetail, error)
}

// NewStrategy builds the strategy for a split type. shares holds per-member
// amounts for unequally and per-member percentages for percentage; it is
// ignored for equally.
func NewStrategy(splitType models.SplitType, shares map[string]decimal.Decimal) (Strategy, error) {
	switch splitType {
	case models.SplitEqually:
		return Equal{}, nil
	case models.SplitUnequally:
		amounts := make(map[string]money.Amount, len(shares))
		for member, d := range shares {
			if !money.HasCents(d) {
				return nil, fmt.Errorf("%w: share for %s has more than 2 decimal places", ErrInvalidSplitInput, member)
			}
			a, err := money.FromDecimal(d)
			if err != nil {
				return nil, fmt.Errorf("%w: share for %s: %v", ErrInvalidSplitInput, member, err)
			}
			amounts[member] = a
		}
		return Unequal{Amounts: amounts}, nil
	case models.SplitPercentage:
		return Percentage{Percents: shares}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSplitType, splitType)
	}
}

// Equal divides the amount evenly among every member except the initiator.
// Leftover cents go one each to the first members in member order.
type Equal struct{}

func (Equal) Type() models.SplitType { return models.SplitEqually }

func (Equal) Split(amount money.Amount, members []string, initiator string) ([]models.SplitDetail, error) {
	if !amount.Positive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidSplitInput)
	}

	others := nonInitiators(members, initiator)
	if len(others) == 0 {
		return nil, ErrInsufficientMembers
	}

	n := money.Amount(len(others))
	base, remainder := amount/n, amount%n

	details := make([]models.SplitDetail, len(others))
	for i, member := range others {
		share := base
		if money.Amount(i) < remainder {
			share++
		}
		details[i] = models.SplitDetail{Member: member, Share: share}
	}
	return details, nil
}

// Unequal assigns explicit amounts per member. The amounts must cover
// non-initiator members only and sum exactly to the transaction amount.
type Unequal struct {
	Amounts map[string]money.Amount
}

func (Unequal) Type() models.SplitType { return models.SplitUnequally }

func (u Unequal) Split(amount money.Amount, members []string, initiator string) ([]models.SplitDetail, error) {
	if !amount.Positive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidSplitInput)
	}
	if err := checkShareKeys(keysOf(u.Amounts), members, initiator); err != nil {
		return nil, err
	}

	var total money.Amount
	for member, share := range u.Amounts {
		if share < 0 {
			return nil, fmt.Errorf("%w: share for %s is negative", ErrInvalidSplitInput, member)
		}
		sum, err := money.Add(total, share)
		if err != nil {
			return nil, fmt.Errorf("%w: shares overflow", ErrInvalidSplitInput)
		}
		total = sum
	}
	if total != amount {
		return nil, fmt.Errorf("%w: shares sum to %s, want %s", ErrInvalidSplitInput, total, amount)
	}

	var details []models.SplitDetail
	for _, member := range members {
		if share, ok := u.Amounts[member]; ok && share > 0 {
			details = append(details, models.SplitDetail{Member: member, Share: share})
		}
	}
	if len(details) == 0 {
		return nil, ErrInsufficientMembers
	}
	return details, nil
}

// Percentage assigns a percentage of the amount per member. Percentages must
// cover non-initiator members only and sum to 100. Shares are rounded down to
// cents and the leftover cents go to the largest fractional parts, so shares
// always sum exactly to the amount.
type Percentage struct {
	Percents map[string]decimal.Decimal
}

func (Percentage) Type() models.SplitType { return models.SplitPercentage }

func (p Percentage) Split(amount money.Amount, members []string, initiator string) ([]models.SplitDetail, error) {
	if !amount.Positive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidSplitInput)
	}
	if err := checkShareKeys(keysOf(p.Percents), members, initiator); err != nil {
		return nil, err
	}

	total := decimal.Zero
	for member, pct := range p.Percents {
		if pct.IsNegative() {
			return nil, fmt.Errorf("%w: percentage for %s is negative", ErrInvalidSplitInput, member)
		}
		total = total.Add(pct)
	}
	if total.Sub(hundred).Abs().GreaterThan(percentEpsilon) {
		return nil, fmt.Errorf("%w: percentages sum to %s, want 100", ErrInvalidSplitInput, total.String())
	}

	type portion struct {
		member string
		share  money.Amount
		frac   decimal.Decimal
	}

	var portions []portion
	var assigned money.Amount
	whole := decimal.NewFromInt(int64(amount))
	for _, member := range members {
		pct, ok := p.Percents[member]
		if !ok || pct.IsZero() {
			continue
		}
		// Scale by the actual total so rounding drift inside the epsilon can't
		// push the floors past the amount.
		exact := whole.Mul(pct).Div(total)
		floor := exact.Floor()
		portions = append(portions, portion{
			member: member,
			share:  money.Amount(floor.IntPart()),
			frac:   exact.Sub(floor),
		})
		assigned += money.Amount(floor.IntPart())
	}
	if len(portions) == 0 {
		return nil, ErrInsufficientMembers
	}

	byFraction := make([]int, len(portions))
	for i := range byFraction {
		byFraction[i] = i
	}
	sort.SliceStable(byFraction, func(a, b int) bool {
		return portions[byFraction[a]].frac.GreaterThan(portions[byFraction[b]].frac)
	})
	for i := 0; assigned < amount; i++ {
		portions[byFraction[i%len(portions)]].share++
		assigned++
	}

	details := make([]models.SplitDetail, len(portions))
	for i, pt := range portions {
		details[i] = models.SplitDetail{Member: pt.member, Share: pt.share}
	}
	return details, nil
}

// nonInitiators returns members other than the initiator, preserving order.
func nonInitiators(members []string, initiator string) []string {
	others := make([]string, 0, len(members))
	for _, m := range members {
		if m != initiator {
			others = append(others, m)
		}
	}
	return others
}

// checkShareKeys verifies explicit shares name only non-initiator members.
func checkShareKeys(keys []string, members []string, initiator string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%w: shares are required", ErrInvalidSplitInput)
	}
	known := make(map[string]bool, len(members))
	for _, m := range members {
		known[m] = true
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == initiator {
			return fmt.Errorf("%w: the initiator cannot owe a share", ErrInvalidSplitInput)
		}
		if !known[k] {
			return fmt.Errorf("%w: %s is not a member of the group", ErrInvalidSplitInput, k)
		}
	}
	return nil
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
