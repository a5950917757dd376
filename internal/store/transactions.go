package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ospreyintel/awardflow/models"
)

const upsertTransactionSQL = `
INSERT INTO award_transactions (id, award_external_id, action_date, amount, mod_number, description, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
ON CONFLICT (id) DO UPDATE SET
  action_date = EXCLUDED.action_date,
  amount = EXCLUDED.amount,
  mod_number = EXCLUDED.mod_number,
  description = EXCLUDED.description;
`

// UpsertTransaction appends or refreshes one obligation action, keyed by the
// upstream transaction id.
func (s *Store) UpsertTransaction(ctx context.Context, tx models.Transaction) error {
	if tx.ID == "" {
		return fmt.Errorf("transaction for award %s has no id", tx.AwardExternal)
	}
	_, err := s.DB.ExecContext(ctx, upsertTransactionSQL,
		tx.ID, tx.AwardExternal, tx.ActionDate, tx.Amount, nullStr(tx.ModNumber), nullStr(tx.Description))
	if err != nil {
		return fmt.Errorf("upserting transaction %s: %w", tx.ID, err)
	}
	return nil
}

// ListTransactions returns an award's obligation history, newest first.
func (s *Store) ListTransactions(ctx context.Context, awardExternal string) ([]models.Transaction, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, award_external_id, action_date, amount, mod_number, description
FROM award_transactions WHERE award_external_id = $1 ORDER BY action_date DESC NULLS LAST`, awardExternal)
	if err != nil {
		return nil, fmt.Errorf("listing transactions for %s: %w", awardExternal, err)
	}
	defer rows.Close()
	var out []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var actionDate sql.NullTime
		var mod, desc sql.NullString
		if err := rows.Scan(&tx.ID, &tx.AwardExternal, &actionDate, &tx.Amount, &mod, &desc); err != nil {
			return nil, err
		}
		if actionDate.Valid {
			t := actionDate.Time
			tx.ActionDate = &t
		}
		tx.ModNumber = mod.String
		tx.Description = desc.String
		out = append(out, tx)
	}
	return out, rows.Err()
}
