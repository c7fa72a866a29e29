package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `
		SELECT id, customer_id, payable_total, deposit_credit, created_at
		FROM orders
		WHERE id = $1
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get order: %v", ErrInternal, err)
	}
	return &o, nil
}

func (r *PostgresRepository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *PostgresRepository) lockOrder(ctx context.Context, tx *sqlx.Tx, orderID string) (*Order, error) {
	var o Order
	err := tx.GetContext(ctx, &o, `
		SELECT id, customer_id, payable_total, deposit_credit, created_at
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return &o, err
}

func (r *PostgresRepository) creditByRef(ctx context.Context, q sqlx.QueryerContext, referenceID string) (*Credit, error) {
	var c Credit
	err := sqlx.GetContext(ctx, q, &c, `
		SELECT id, order_id, reference_id, amount, final_amount, created_at
		FROM deposit_credits
		WHERE reference_id = $1
	`, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &c, err
}

// replayCredit resolves a reference that was already used.
func replayCredit(existing *Credit, orderID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if existing.OrderID != orderID || !existing.Amount.Equal(amount) {
		return decimal.Zero, ErrReferenceConflict
	}
	return existing.FinalAmount, nil
}

func (r *PostgresRepository) ApplyCredit(ctx context.Context, orderID string, amount decimal.Decimal, referenceID string) (decimal.Decimal, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	o, err := r.lockOrder(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return decimal.Zero, err
		}
		return decimal.Zero, fmt.Errorf("%w: lock order: %v", ErrInternal, err)
	}

	existing, err := r.creditByRef(ctx, tx, referenceID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: find credit: %v", ErrInternal, err)
	}
	if existing != nil {
		return replayCredit(existing, orderID, amount)
	}

	final := finalAmount(o.Outstanding(), amount)

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET deposit_credit = deposit_credit + $1, updated_at = now() WHERE id = $2
	`, amount, orderID); err != nil {
		return decimal.Zero, fmt.Errorf("%w: update order: %v", ErrInternal, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO deposit_credits (id, order_id, reference_id, amount, final_amount)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
	`, orderID, referenceID, amount, final)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// lost a race on the same reference; the winner's row is visible now
			tx.Rollback()
			existing, err := r.creditByRef(ctx, r.db, referenceID)
			if err != nil || existing == nil {
				return decimal.Zero, ErrDuplicateReference
			}
			return replayCredit(existing, orderID, amount)
		}
		return decimal.Zero, fmt.Errorf("%w: insert credit: %v", ErrInternal, err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("%w: commit tx: %v", ErrInternal, err)
	}
	return final, nil
}

func (r *PostgresRepository) RecordPayout(ctx context.Context, p Payout) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO deposit_payouts (id, customer_id, reference_id, amount, note)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		ON CONFLICT (reference_id) DO NOTHING
	`, p.CustomerID, p.ReferenceID, p.Amount, p.Note)
	if err != nil {
		return fmt.Errorf("%w: insert payout: %v", ErrInternal, err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var existing Payout
	err = r.db.GetContext(ctx, &existing, `
		SELECT id, customer_id, reference_id, amount, note, created_at
		FROM deposit_payouts
		WHERE reference_id = $1
	`, p.ReferenceID)
	if err != nil {
		return fmt.Errorf("%w: find payout: %v", ErrInternal, err)
	}
	if existing.CustomerID != p.CustomerID || !existing.Amount.Equal(p.Amount) {
		return ErrReferenceConflict
	}
	return nil
}
