package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryRepository keeps orders, credits and payouts in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	orders  map[string]*Order
	credits map[string]Credit
	payouts map[string]Payout
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:  make(map[string]*Order),
		credits: make(map[string]Credit),
		payouts: make(map[string]Payout),
	}
}

// AddOrder registers an order.
func (r *MemoryRepository) AddOrder(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = &o
}

func (r *MemoryRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryRepository) ApplyCredit(ctx context.Context, orderID string, amount decimal.Decimal, referenceID string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.credits[referenceID]; ok {
		return replayCredit(&existing, orderID, amount)
	}

	o, ok := r.orders[orderID]
	if !ok {
		return decimal.Zero, ErrOrderNotFound
	}

	final := finalAmount(o.Outstanding(), amount)
	o.DepositCredit = o.DepositCredit.Add(amount)
	r.credits[referenceID] = Credit{
		ID:          uuid.New(),
		OrderID:     orderID,
		ReferenceID: referenceID,
		Amount:      amount,
		FinalAmount: final,
		CreatedAt:   time.Now().UTC(),
	}
	return final, nil
}

func (r *MemoryRepository) RecordPayout(ctx context.Context, p Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.payouts[p.ReferenceID]; ok {
		if existing.CustomerID != p.CustomerID || !existing.Amount.Equal(p.Amount) {
			return ErrReferenceConflict
		}
		return nil
	}

	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	r.payouts[p.ReferenceID] = p
	return nil
}

// Credits returns the number of distinct credits applied.
func (r *MemoryRepository) Credits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.credits)
}

// Payouts returns the number of distinct payouts recorded.
func (r *MemoryRepository) Payouts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payouts)
}
