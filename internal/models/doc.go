// Package models defines the core domain models for spendwise.
//
// # Identity
//
// Users are referenced everywhere by their opaque ID. Group members carry a
// denormalized name and email for presentation only; the user record is the
// authority for both.
//
// # Money
//
// Every amount is a money.Amount (integer cents). Split shares are computed
// at append time and frozen on the ledger entry; they are never recomputed
// when membership changes.
//
// # Ledger
//
// A Group owns its ledger of GroupTransactions. The ledger is append-only:
// the only mutation of an existing entry is flipping a split detail to paid,
// which may complete the transaction. Every ledger mutation bumps the group's
// Version so concurrent writers can detect each other.
package models
