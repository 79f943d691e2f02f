package models

import "github.com/mmynk/spendwise/internal/money"

// SplitType is the policy governing how a transaction amount is divided.
type SplitType string

const (
	// SplitEqually divides the amount evenly among every member except the initiator.
	SplitEqually SplitType = "equally"
	// SplitUnequally takes explicit per-member amounts summing to the total.
	SplitUnequally SplitType = "unequally"
	// SplitPercentage takes explicit per-member percentages summing to 100.
	SplitPercentage SplitType = "percentage"
)

// SplitTypes lists the recognized split policies.
var SplitTypes = []SplitType{SplitEqually, SplitUnequally, SplitPercentage}

// Valid reports whether t is one of the recognized split policies.
func (t SplitType) Valid() bool {
	for _, known := range SplitTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SplitDetail is one member's share of a group transaction.
type SplitDetail struct {
	// Member is the user ID of the member who owes the share.
	Member string `bson:"member"`

	// Share is the amount this member owes the initiator.
	Share money.Amount `bson:"share"`

	// Paid is set once the member has settled the share.
	Paid bool `bson:"paid"`
}
