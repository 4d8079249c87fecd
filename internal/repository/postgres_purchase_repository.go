package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/intercity-tours/booking/internal/domain"
)

// PostgresPurchaseRepository stores purchases within a transaction.
type PostgresPurchaseRepository struct {
	tx pgx.Tx
}

const purchaseColumns = `id, customer_name, customer_email, customer_phone, amount_due, status, deadline, payment_method, created_at, updated_at`

func scanPurchase(row pgx.Row) (*domain.Purchase, error) {
	p := &domain.Purchase{}
	var status string
	var deadline *time.Time
	err := row.Scan(
		&p.ID,
		&p.CustomerName,
		&p.CustomerEmail,
		&p.CustomerPhone,
		&p.AmountDue,
		&status,
		&deadline,
		&p.PaymentMethod,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("failed to scan purchase: %w", err)
	}
	p.Status = domain.PurchaseStatus(status)
	if deadline != nil {
		p.Deadline = *deadline
	}
	return p, nil
}

// Get returns a purchase without locking it.
func (r *PostgresPurchaseRepository) Get(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`
	return scanPurchase(r.tx.QueryRow(ctx, query, purchaseID))
}

// GetForUpdate locks the purchase row for the rest of the transaction.
// Every status or balance change re-reads through here to avoid lost
// updates from concurrent pay/cancel requests.
func (r *PostgresPurchaseRepository) GetForUpdate(ctx context.Context, purchaseID string) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1 FOR UPDATE`
	return scanPurchase(r.tx.QueryRow(ctx, query, purchaseID))
}

// Create inserts a new purchase.
func (r *PostgresPurchaseRepository) Create(ctx context.Context, purchase *domain.Purchase) error {
	const query = `
		INSERT INTO purchases (id, customer_name, customer_email, customer_phone, amount_due, status, deadline, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var deadline *time.Time
	if !purchase.Deadline.IsZero() {
		deadline = &purchase.Deadline
	}
	_, err := r.tx.Exec(ctx, query,
		purchase.ID,
		purchase.CustomerName,
		purchase.CustomerEmail,
		purchase.CustomerPhone,
		purchase.AmountDue,
		purchase.Status.String(),
		deadline,
		purchase.PaymentMethod,
		purchase.CreatedAt,
		purchase.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

// Update writes a purchase's balance, status and deadline.
func (r *PostgresPurchaseRepository) Update(ctx context.Context, purchase *domain.Purchase) error {
	const query = `
		UPDATE purchases SET amount_due = $2, status = $3, deadline = $4, payment_method = $5, updated_at = $6
		WHERE id = $1
	`
	var deadline *time.Time
	if !purchase.Deadline.IsZero() {
		deadline = &purchase.Deadline
	}
	tag, err := r.tx.Exec(ctx, query,
		purchase.ID,
		purchase.AmountDue,
		purchase.Status.String(),
		deadline,
		purchase.PaymentMethod,
		purchase.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPurchaseNotFound
	}
	return nil
}

// ListExpired returns reserved purchases past their deadline. Rows are
// locked with SKIP LOCKED so overlapping sweep cycles never wait on
// each other.
func (r *PostgresPurchaseRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*domain.Purchase, error) {
	query := `
		SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE status = 'reserved' AND deadline IS NOT NULL AND deadline < $1
		ORDER BY deadline ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.tx.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*domain.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read expired purchases: %w", err)
	}
	return purchases, nil
}
