package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/storage"
)

// CreateGroup persists a new group and its member list.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO groups (id, title, description, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			group.ID, group.Title, group.Description, group.Version,
			toMillis(group.CreatedAt), toMillis(group.UpdatedAt),
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("group %s: %w", group.ID, storage.ErrDuplicate)
		}
		if err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}

		for i, m := range group.Members {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, user_id, name, email, role, position)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				group.ID, m.UserID, m.Name, m.Email, m.Role, i,
			)
			if err != nil {
				return fmt.Errorf("failed to insert group member: %w", err)
			}
		}

		for i := range group.Transactions {
			if err := insertGroupTransaction(ctx, tx, group.ID, int64(i), &group.Transactions[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetGroup retrieves a group by ID with members and its full ledger.
// Each result set is drained before the next query; the pool has a single
// connection.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, version, created_at, updated_at FROM groups WHERE id = ?`,
		groupID,
	).Scan(&group.ID, &group.Title, &group.Description, &group.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.CreatedAt = fromMillis(createdAt)
	group.UpdatedAt = fromMillis(updatedAt)

	if group.Members, err = s.listMembers(ctx, groupID); err != nil {
		return nil, err
	}
	if group.Transactions, err = s.listGroupTransactions(ctx, groupID); err != nil {
		return nil, err
	}
	return group, nil
}

func (s *SQLiteStore) listMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, name, email, role FROM group_members WHERE group_id = ? ORDER BY position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &m.Role); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}
	return members, nil
}

// listGroupTransactions loads the ledger in one pass over a join of
// transactions and their split details.
func (s *SQLiteStore) listGroupTransactions(ctx context.Context, groupID string) ([]models.GroupTransaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.description, t.amount, t.date, t.split_type, t.initiated_by, t.status,
		        d.member_id, d.share, d.paid
		 FROM group_transactions t
		 LEFT JOIN split_details d ON d.transaction_id = t.id
		 WHERE t.group_id = ?
		 ORDER BY t.seq, d.position`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group transactions: %w", err)
	}
	defer rows.Close()

	var txns []models.GroupTransaction
	for rows.Next() {
		var (
			t        models.GroupTransaction
			date     int64
			memberID sql.NullString
			share    sql.NullInt64
			paid     sql.NullBool
		)
		if err := rows.Scan(&t.ID, &t.Description, &t.Amount, &date, &t.SplitType, &t.InitiatedBy, &t.Status,
			&memberID, &share, &paid); err != nil {
			return nil, fmt.Errorf("failed to scan group transaction: %w", err)
		}

		if n := len(txns); n == 0 || txns[n-1].ID != t.ID {
			t.Date = fromMillis(date)
			txns = append(txns, t)
		}
		if memberID.Valid {
			last := &txns[len(txns)-1]
			last.SplitDetails = append(last.SplitDetails, models.SplitDetail{
				Member: memberID.String,
				Share:  moneyFromNull(share),
				Paid:   paid.Bool,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group transactions: %w", err)
	}
	return txns, nil
}

// ListGroupsByMember returns the groups a user belongs to, newest first.
func (s *SQLiteStore) ListGroupsByMember(ctx context.Context, userID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.title, g.description, g.version, g.created_at, g.updated_at
		 FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.user_id = ?
		 ORDER BY g.created_at DESC, g.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var groups []*models.Group
	for rows.Next() {
		g := &models.Group{}
		var createdAt, updatedAt int64
		if err := rows.Scan(&g.ID, &g.Title, &g.Description, &g.Version, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.CreatedAt = fromMillis(createdAt)
		g.UpdatedAt = fromMillis(updatedAt)
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	for _, g := range groups {
		if g.Members, err = s.listMembers(ctx, g.ID); err != nil {
			return nil, err
		}
		if g.Transactions, err = s.listGroupTransactions(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// AppendTransaction appends tx at the end of the group's ledger and bumps the
// version inside one transaction.
func (s *SQLiteStore) AppendTransaction(ctx context.Context, groupID string, gtx *models.GroupTransaction) (int64, error) {
	var version int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`UPDATE groups SET version = version + 1, updated_at = ? WHERE id = ? RETURNING version`,
			toMillis(time.Now()), groupID,
		).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to update group version: %w", err)
		}

		var seq int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq) + 1, 0) FROM group_transactions WHERE group_id = ?`,
			groupID,
		).Scan(&seq); err != nil {
			return fmt.Errorf("failed to get ledger position: %w", err)
		}

		return insertGroupTransaction(ctx, tx, groupID, seq, gtx)
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// bumpVersion increments the group's version if it still equals expected.
func bumpVersion(ctx context.Context, tx *sql.Tx, groupID string, expected int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE groups SET version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		toMillis(time.Now()), groupID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update group version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	// Distinguish a missing group from a stale version.
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE id = ?`, groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check group existence: %w", err)
	}
	return fmt.Errorf("group %s at version %d: %w", groupID, expected, storage.ErrConflict)
}

func insertGroupTransaction(ctx context.Context, tx *sql.Tx, groupID string, seq int64, gtx *models.GroupTransaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO group_transactions (id, group_id, seq, description, amount, date, split_type, initiated_by, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gtx.ID, groupID, seq, gtx.Description, gtx.Amount, toMillis(gtx.Date),
		gtx.SplitType, gtx.InitiatedBy, gtx.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group transaction: %w", err)
	}

	for i, d := range gtx.SplitDetails {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO split_details (transaction_id, member_id, share, paid, position)
			 VALUES (?, ?, ?, ?, ?)`,
			gtx.ID, d.Member, d.Share, d.Paid, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split detail: %w", err)
		}
	}
	return nil
}
