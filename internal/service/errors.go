package service

import (
	"errors"
	"strings"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrGroupNotFound       = errors.New("group not found")
	ErrInitiatorNotMember  = errors.New("initiator is not a member of the group")
	ErrNotGroupMember      = errors.New("you are not a member of this group")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotParticipant      = errors.New("you do not owe a share of this transaction")
	ErrAlreadySettled      = errors.New("share already settled")
	ErrUserNotFound        = errors.New("user not found")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrNoExpenses          = errors.New("no expense transactions found for prediction")
	ErrSelfFriend          = errors.New("you cannot add yourself as a friend")
	ErrAlreadyFriends      = errors.New("you are already friends")
)

// UnknownMembersError lists every member identifier that could not be
// resolved to a user, in input order.
type UnknownMembersError struct {
	Missing []string
}

func (e *UnknownMembersError) Error() string {
	return "the following members were not found: " + strings.Join(e.Missing, ", ")
}

// AuthError is a user-facing failure of an auth flow. Code is the numeric
// errorCode clients switch on (0 when the flow has none), Status the HTTP
// status, and Kind the underlying cause.
type AuthError struct {
	Code    int
	Status  int
	Kind    error
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Kind }

func authErr(code, status int, kind error, msg string) *AuthError {
	return &AuthError{Code: code, Status: status, Kind: kind, Message: msg}
}

// invalid wraps ErrInvalidArgument with a user-facing message.
func invalid(msg string) error {
	return &validationError{msg: msg}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Is(target error) bool { return target == ErrInvalidArgument }
