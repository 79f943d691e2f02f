package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/storage"
)

// AddFriendship records the friendship in both directions.
func (s *SQLiteStore) AddFriendship(ctx context.Context, userID, friendID string) error {
	now := toMillis(time.Now())
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO friendships (user_id, friend_id, created_at) VALUES (?, ?, ?)`,
				pair[0], pair[1], now,
			)
			if isUniqueViolation(err) {
				return fmt.Errorf("friendship %s-%s: %w", userID, friendID, storage.ErrDuplicate)
			}
			if err != nil {
				return fmt.Errorf("failed to insert friendship: %w", err)
			}
		}
		return nil
	})
}

// AreFriends reports whether friendID is in userID's friend list.
func (s *SQLiteStore) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM friendships WHERE user_id = ? AND friend_id = ?`,
		userID, friendID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return n > 0, nil
}

// ListFriends returns the user's friends ordered by name.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID string) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.name, u.password_hash, u.verified, u.account_balance, u.created_at, u.updated_at
		 FROM friendships f
		 JOIN users u ON u.id = f.friend_id
		 WHERE f.user_id = ?
		 ORDER BY u.name, u.email`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	friends := []*models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate friends: %w", err)
	}
	return friends, nil
}
