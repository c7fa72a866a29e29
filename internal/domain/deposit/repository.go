package deposit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

// PostgresStore reads deposit lines from order_items and keeps the refund ledger
// and commit records in Postgres. Inside WithinTx the touched order_items rows
// are locked FOR UPDATE, which serialises concurrent commits on the same line.
type PostgresStore struct {
	db        *sqlx.DB
	q         sqlx.ExtContext
	forUpdate bool
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

type commitRow struct {
	Fingerprint    string           `db:"fingerprint"`
	CurrentOrderID string           `db:"current_order_id"`
	CustomerID     string           `db:"customer_id"`
	Mode           string           `db:"mode"`
	Lines          types.JSONText   `db:"lines"`
	MissingCounts  types.JSONText   `db:"missing_counts"`
	Credit         decimal.Decimal  `db:"credit"`
	Deduction      decimal.Decimal  `db:"deduction"`
	NetCredit      decimal.Decimal  `db:"net_credit"`
	OrderTotal     *decimal.Decimal `db:"order_total"`
	FinalAmount    *decimal.Decimal `db:"final_amount"`
	Note           string           `db:"note"`
	CommittedBy    string           `db:"committed_by"`
	CommittedAt    time.Time        `db:"committed_at"`
}

func (r commitRow) record() (*CommitRecord, error) {
	rec := &CommitRecord{
		Fingerprint:    r.Fingerprint,
		CurrentOrderID: r.CurrentOrderID,
		CustomerID:     r.CustomerID,
		Mode:           SettlementMode(r.Mode),
		Credit:         r.Credit,
		Deduction:      r.Deduction,
		NetCredit:      r.NetCredit,
		OrderTotal:     r.OrderTotal,
		FinalAmount:    r.FinalAmount,
		Note:           r.Note,
		CommittedBy:    r.CommittedBy,
		CommittedAt:    r.CommittedAt,
	}
	if err := r.Lines.Unmarshal(&rec.Lines); err != nil {
		return nil, fmt.Errorf("%w: decode commit lines", ErrInternal)
	}
	if len(r.MissingCounts) > 0 {
		if err := r.MissingCounts.Unmarshal(&rec.MissingCounts); err != nil {
			return nil, fmt.Errorf("%w: decode missing counts", ErrInternal)
		}
	}
	return rec, nil
}

func (s *PostgresStore) ListDepositLines(ctx context.Context, customerID string) ([]DepositLine, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	lines := make([]DepositLine, 0)
	err := sqlx.SelectContext(ctx2, s.q, &lines, `
		SELECT oi.order_id, oi.item_id, oi.item_name,
		       oi.deposit_amount AS unit_amount,
		       oi.quantity AS original_quantity,
		       o.created_at AS ordered_at,
		       COALESCE(agg.refunded_quantity, 0) AS refunded_quantity,
		       COALESCE(agg.refund_count, 0) > 0 AS already_refunded,
		       last.refund_driver, last.refund_date
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN LATERAL (
			SELECT SUM(r.quantity) AS refunded_quantity, COUNT(*) AS refund_count
			FROM deposit_refunds r
			WHERE r.order_id = oi.order_id AND r.item_id = oi.item_id
		) agg ON TRUE
		LEFT JOIN LATERAL (
			SELECT r.refund_driver, r.refund_date
			FROM deposit_refunds r
			WHERE r.order_id = oi.order_id AND r.item_id = oi.item_id
			ORDER BY r.refund_date DESC
			LIMIT 1
		) last ON TRUE
		WHERE o.customer_id = $1 AND oi.deposit_amount > 0
		ORDER BY o.created_at DESC, oi.order_id, oi.item_id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list deposit lines: %v", ErrInternal, err)
	}
	return lines, nil
}

func (s *PostgresStore) LineStates(ctx context.Context, keys []LineKey, fingerprint string) (map[LineKey]LineState, error) {
	lock := ""
	if s.forUpdate {
		lock = " FOR UPDATE"
	}

	out := make(map[LineKey]LineState, len(keys))
	// keys arrive sorted, so row locks are always taken in the same order
	for _, k := range keys {
		var original int
		err := sqlx.GetContext(ctx, s.q, &original,
			`SELECT quantity FROM order_items WHERE order_id = $1 AND item_id = $2`+lock,
			k.OrderID, k.ItemID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: lock order item: %v", ErrInternal, err)
		}

		var agg struct {
			Refunded int `db:"refunded"`
			Count    int `db:"cnt"`
		}
		err = sqlx.GetContext(ctx, s.q, &agg, `
			SELECT COALESCE(SUM(quantity), 0) AS refunded, COUNT(*) AS cnt
			FROM deposit_refunds
			WHERE order_id = $1 AND item_id = $2 AND fingerprint <> $3
		`, k.OrderID, k.ItemID, fingerprint)
		if err != nil {
			return nil, fmt.Errorf("%w: sum refunds: %v", ErrInternal, err)
		}

		out[k] = LineState{
			Key:              k,
			OriginalQuantity: original,
			RefundedQuantity: agg.Refunded,
			AlreadyRefunded:  agg.Count > 0,
		}
	}
	return out, nil
}

func (s *PostgresStore) FindCommit(ctx context.Context, fingerprint string) (*CommitRecord, error) {
	var row commitRow
	err := sqlx.GetContext(ctx, s.q, &row, `
		SELECT fingerprint, current_order_id, customer_id, mode, lines, missing_counts,
		       credit, deduction, net_credit, order_total, final_amount, note,
		       committed_by, committed_at
		FROM deposit_commits
		WHERE fingerprint = $1
	`, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCommitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find commit: %v", ErrInternal, err)
	}
	return row.record()
}

func (s *PostgresStore) RecordLineRefund(ctx context.Context, r LineRefund) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO deposit_refunds (
			id, fingerprint, order_id, item_id, quantity, amount, correction, refund_driver, refund_date
		)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (fingerprint, order_id, item_id) DO NOTHING
	`, r.Fingerprint, r.Key.OrderID, r.Key.ItemID, r.Quantity, r.Amount, r.Correction, r.Driver, r.At)
	if err != nil {
		return fmt.Errorf("%w: insert refund: %v", ErrInternal, err)
	}
	return nil
}

func (s *PostgresStore) SaveCommit(ctx context.Context, rec *CommitRecord) error {
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return fmt.Errorf("%w: encode lines", ErrInternal)
	}
	missing, err := json.Marshal(rec.MissingCounts)
	if err != nil {
		return fmt.Errorf("%w: encode missing counts", ErrInternal)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO deposit_commits (
			fingerprint, current_order_id, customer_id, mode, lines, missing_counts,
			credit, deduction, net_credit, order_total, final_amount, note,
			committed_by, committed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, rec.Fingerprint, rec.CurrentOrderID, rec.CustomerID, string(rec.Mode),
		types.JSONText(lines), types.JSONText(missing),
		rec.Credit, rec.Deduction, rec.NetCredit, rec.OrderTotal, rec.FinalAmount, rec.Note,
		rec.CommittedBy, rec.CommittedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateFingerprint
		}
		return fmt.Errorf("%w: insert commit: %v", ErrInternal, err)
	}
	return nil
}

func (s *PostgresStore) RevokeLineRefunds(ctx context.Context, fingerprint string, keys []LineKey) error {
	orderIDs := make([]string, 0, len(keys))
	itemIDs := make([]string, 0, len(keys))
	for _, k := range keys {
		orderIDs = append(orderIDs, k.OrderID)
		itemIDs = append(itemIDs, k.ItemID)
	}

	_, err := s.q.ExecContext(ctx, `
		DELETE FROM deposit_refunds r
		USING unnest($2::text[], $3::text[]) AS k(order_id, item_id)
		WHERE r.fingerprint = $1
		  AND r.order_id = k.order_id AND r.item_id = k.item_id
		  AND NOT EXISTS (SELECT 1 FROM deposit_commits c WHERE c.fingerprint = r.fingerprint)
	`, fingerprint, pq.Array(orderIDs), pq.Array(itemIDs))
	if err != nil {
		return fmt.Errorf("%w: revoke refunds: %v", ErrInternal, err)
	}
	return nil
}

// WithinTx runs fn in a read-committed transaction; fn's store locks the rows it re-reads.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", ErrInternal, err)
	}
	defer tx.Rollback()

	if err := fn(&PostgresStore{db: s.db, q: tx, forUpdate: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %v", ErrInternal, err)
	}
	return nil
}
