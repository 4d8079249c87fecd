package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/intercity-tours/booking/internal/domain"
)

// PostgresLedgerRepository appends and reads ledger entries. The table
// is append-only: the repository exposes no update or delete and the
// schema grants none.
type PostgresLedgerRepository struct {
	tx pgx.Tx
}

// Append inserts one immutable ledger entry.
func (r *PostgresLedgerRepository) Append(ctx context.Context, entry *domain.LedgerEntry) error {
	const query = `
		INSERT INTO ledger_entries (id, purchase_id, category, amount, actor, method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.tx.Exec(ctx, query,
		entry.ID,
		entry.PurchaseID,
		string(entry.Category),
		entry.Amount,
		entry.Actor,
		entry.Method,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ListByPurchase returns a purchase's ledger trail chronologically.
func (r *PostgresLedgerRepository) ListByPurchase(ctx context.Context, purchaseID string) ([]*domain.LedgerEntry, error) {
	const query = `
		SELECT id, purchase_id, category, amount, actor, method, created_at
		FROM ledger_entries
		WHERE purchase_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.tx.Query(ctx, query, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		e := &domain.LedgerEntry{}
		var category string
		if err := rows.Scan(&e.ID, &e.PurchaseID, &category, &e.Amount, &e.Actor, &e.Method, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Category = domain.LedgerCategory(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}
	return entries, nil
}
