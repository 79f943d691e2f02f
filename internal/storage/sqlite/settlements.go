package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmynk/spendwise/internal/models"
	"github.com/mmynk/spendwise/internal/money"
	"github.com/mmynk/spendwise/internal/storage"
)

// MarkSharePaid settles one member's share of a ledger entry.
func (s *SQLiteStore) MarkSharePaid(ctx context.Context, groupID string, expectedVersion int64, txID, memberID string, status models.TransactionStatus) (int64, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, groupID, expectedVersion); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE split_details SET paid = 1
			 WHERE member_id = ? AND transaction_id = (
			     SELECT id FROM group_transactions WHERE id = ? AND group_id = ?
			 )`,
			memberID, txID, groupID,
		)
		if err != nil {
			return fmt.Errorf("failed to mark share paid: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("share of %s on transaction %s: %w", memberID, txID, storage.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE group_transactions SET status = ? WHERE id = ?`,
			status, txID,
		); err != nil {
			return fmt.Errorf("failed to update transaction status: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expectedVersion + 1, nil
}

func moneyFromNull(v sql.NullInt64) money.Amount {
	return money.Amount(v.Int64)
}
