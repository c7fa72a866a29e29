package deposit

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// HistoryAggregator reads a customer's deposit-bearing lines across past orders.
type HistoryAggregator struct {
	store Store
	cache HistoryCache
}

// NewHistoryAggregator creates an aggregator. cache may be nil.
func NewHistoryAggregator(store Store, cache HistoryCache) *HistoryAggregator {
	return &HistoryAggregator{store: store, cache: cache}
}

// LoadHistory returns the customer's lines, skipping excludeOrderID unless
// includeCurrent is set. An empty result is not an error; a store failure is
// reported as ErrHistoryUnavailable.
func (a *HistoryAggregator) LoadHistory(ctx context.Context, customerID, excludeOrderID string, includeCurrent bool) ([]DepositLine, error) {
	all, err := a.customerLines(ctx, customerID)
	if err != nil {
		return nil, err
	}

	out := make([]DepositLine, 0, len(all))
	for _, l := range all {
		if !includeCurrent && excludeOrderID != "" && l.OrderID == excludeOrderID {
			continue
		}
		if l.OriginalQuantity <= 0 {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OrderedAt.Equal(out[j].OrderedAt) {
			return out[i].OrderedAt.After(out[j].OrderedAt)
		}
		return lessKey(out[i].Key(), out[j].Key())
	})
	return out, nil
}

// Invalidate drops cached lines for the customer.
func (a *HistoryAggregator) Invalidate(ctx context.Context, customerID string) {
	if a.cache != nil {
		a.cache.Invalidate(ctx, customerID)
	}
}

func (a *HistoryAggregator) customerLines(ctx context.Context, customerID string) ([]DepositLine, error) {
	if a.cache != nil {
		if lines, ok := a.cache.Get(ctx, customerID); ok {
			return lines, nil
		}
	}

	lines, err := a.store.ListDepositLines(ctx, customerID)
	if err != nil {
		log.Warn().Err(err).Str("customer_id", customerID).Msg("deposit history read failed")
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	if a.cache != nil {
		a.cache.Set(ctx, customerID, lines)
	}
	return lines, nil
}
