package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/spendwise/internal/storage"
)

// FriendService manages mutual friendships between users.
type FriendService struct {
	store  storage.Store
	logger *slog.Logger
}

func NewFriendService(store storage.Store, logger *slog.Logger) *FriendService {
	return &FriendService{store: store, logger: logger}
}

// AddFriend befriends the user with friendEmail, in both directions.
func (s *FriendService) AddFriend(ctx context.Context, userID, friendEmail string) (*MemberRef, error) {
	friendEmail = normalizeEmail(friendEmail)
	s.logger.Info("AddFriend request received", "user_id", userID, "friend_email", friendEmail)

	if friendEmail == "" {
		return nil, invalid("Provide an email to add a friend.")
	}

	friend, err := s.store.GetUserByEmail(ctx, friendEmail)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up friend: %w", err)
	}
	if friend.ID == userID {
		return nil, ErrSelfFriend
	}

	err = s.store.AddFriendship(ctx, userID, friend.ID)
	if errors.Is(err, storage.ErrDuplicate) {
		return nil, ErrAlreadyFriends
	}
	if err != nil {
		s.logger.Error("AddFriend failed", "error", err)
		return nil, fmt.Errorf("failed to add friend: %w", err)
	}

	s.logger.Info("Friend added", "user_id", userID, "friend_id", friend.ID)
	return &MemberRef{UserID: friend.ID, Name: friend.Name, Email: friend.Email}, nil
}

// ListFriends returns the user's friends ordered by name.
func (s *FriendService) ListFriends(ctx context.Context, userID string) ([]MemberRef, error) {
	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		s.logger.Error("ListFriends failed", "error", err)
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	refs := make([]MemberRef, len(friends))
	for i, f := range friends {
		refs[i] = MemberRef{UserID: f.ID, Name: f.Name, Email: f.Email}
	}
	return refs, nil
}
