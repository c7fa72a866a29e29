package order_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dispatchly/dispatch-api/internal/domain/order"
	"github.com/dispatchly/dispatch-api/internal/pkg/database"
	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
)

type backend struct {
	name string
	open func(t *testing.T, orders ...order.Order) order.Repository
}

func backends() []backend {
	return []backend{
		{
			name: "memory",
			open: func(t *testing.T, orders ...order.Order) order.Repository {
				repo := order.NewMemoryRepository()
				for _, o := range orders {
					repo.AddOrder(o)
				}
				return repo
			},
		},
		{
			name: "bolt",
			open: func(t *testing.T, orders ...order.Order) order.Repository {
				db, err := database.OpenBolt(filepath.Join(t.TempDir(), "orders.db"))
				if err != nil {
					t.Fatalf("open bolt failed: %v", err)
				}
				t.Cleanup(func() { database.CloseBolt(db) })

				repo, err := order.NewBoltRepository(db)
				if err != nil {
					t.Fatalf("init buckets failed: %v", err)
				}
				for _, o := range orders {
					if err := repo.AddOrder(o); err != nil {
						t.Fatalf("add order failed: %v", err)
					}
				}
				return repo
			},
		},
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrder() order.Order {
	return order.Order{ID: "O9", CustomerID: "C1", PayableTotal: amount("10.00")}
}

func TestApplyDepositCredit(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			svc := order.NewService(b.open(t, testOrder()))
			ctx := context.Background()

			total, err := svc.GetOrderTotal(ctx, "O9")
			if err != nil || !total.Equal(amount("10.00")) {
				t.Fatalf("expected total 10.00, got %s (%v)", total, err)
			}

			final, err := svc.ApplyDepositCredit(ctx, "O9", amount("1.00"), "fp-1")
			if err != nil {
				t.Fatalf("apply credit failed: %v", err)
			}
			if !final.Equal(amount("9.00")) {
				t.Fatalf("expected final 9.00, got %s", final)
			}

			total, _ = svc.GetOrderTotal(ctx, "O9")
			if !total.Equal(amount("9.00")) {
				t.Fatalf("expected outstanding 9.00, got %s", total)
			}
		})
	}
}

func TestApplyDepositCreditLogsOnRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf).With().Str("operator_id", "op-1").Logger()
	ctx := logger.WithContext(context.Background(), &l)

	repo := order.NewMemoryRepository()
	repo.AddOrder(testOrder())
	svc := order.NewService(repo)

	if _, err := svc.ApplyDepositCredit(ctx, "O9", amount("1.50"), "fp-log"); err != nil {
		t.Fatalf("apply credit failed: %v", err)
	}
	if err := svc.RecordStandalonePayout(ctx, "C1", amount("2.00"), "", "fp-pay"); err != nil {
		t.Fatalf("record payout failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"message":"deposit credit applied"`,
		`"final_amount":"8.50"`,
		`"reference_id":"fp-log"`,
		`"message":"deposit payout recorded"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log output %q", want, out)
		}
	}
	if strings.Count(out, `"operator_id":"op-1"`) != 2 {
		t.Fatalf("expected both lines on the request logger, got %q", out)
	}
}

func TestApplyDepositCreditIdempotency(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			svc := order.NewService(b.open(t, testOrder()))
			ctx := context.Background()

			first, err := svc.ApplyDepositCredit(ctx, "O9", amount("2.50"), "fp-2")
			if err != nil {
				t.Fatalf("first credit failed: %v", err)
			}
			again, err := svc.ApplyDepositCredit(ctx, "O9", amount("2.50"), "fp-2")
			if err != nil {
				t.Fatalf("idempotent retry failed: %v", err)
			}
			if !first.Equal(again) {
				t.Fatalf("expected replay to return %s, got %s", first, again)
			}

			total, _ := svc.GetOrderTotal(ctx, "O9")
			if !total.Equal(amount("7.50")) {
				t.Fatalf("expected credit applied once, outstanding %s", total)
			}

			_, err = svc.ApplyDepositCredit(ctx, "O9", amount("3.00"), "fp-2")
			if !errors.Is(err, order.ErrReferenceConflict) {
				t.Fatalf("expected ErrReferenceConflict, got %v", err)
			}
		})
	}
}

func TestApplyDepositCreditFloorsAtZero(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			svc := order.NewService(b.open(t, testOrder()))

			final, err := svc.ApplyDepositCredit(context.Background(), "O9", amount("12.00"), "fp-3")
			if err != nil {
				t.Fatalf("apply credit failed: %v", err)
			}
			if !final.IsZero() {
				t.Fatalf("expected final 0, got %s", final)
			}
		})
	}
}

func TestApplyDepositCreditInvalid(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			svc := order.NewService(b.open(t, testOrder()))
			ctx := context.Background()

			if _, err := svc.ApplyDepositCredit(ctx, "O9", amount("-1.00"), "fp-4"); !errors.Is(err, order.ErrInvalidAmount) {
				t.Fatalf("expected ErrInvalidAmount, got %v", err)
			}
			if _, err := svc.ApplyDepositCredit(ctx, "O9", amount("1.00"), ""); !errors.Is(err, order.ErrInvalidAmount) {
				t.Fatalf("expected ErrInvalidAmount for empty reference, got %v", err)
			}
			if _, err := svc.ApplyDepositCredit(ctx, "O404", amount("1.00"), "fp-5"); !errors.Is(err, order.ErrOrderNotFound) {
				t.Fatalf("expected ErrOrderNotFound, got %v", err)
			}
			if _, err := svc.GetOrderTotal(ctx, "O404"); !errors.Is(err, order.ErrOrderNotFound) {
				t.Fatalf("expected ErrOrderNotFound, got %v", err)
			}
		})
	}
}

func TestApplyDepositCreditConcurrentSameReference(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			svc := order.NewService(b.open(t, testOrder()))

			const workers = 8
			var wg sync.WaitGroup
			errs := make([]error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = svc.ApplyDepositCredit(context.Background(), "O9", amount("1.00"), "fp-race")
				}(i)
			}
			wg.Wait()

			for i, err := range errs {
				if err != nil {
					t.Fatalf("worker %d failed: %v", i, err)
				}
			}
			total, _ := svc.GetOrderTotal(context.Background(), "O9")
			if !total.Equal(amount("9.00")) {
				t.Fatalf("expected a single credit, outstanding %s", total)
			}
		})
	}
}

func TestRecordStandalonePayout(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			svc := order.NewService(b.open(t))
			ctx := context.Background()

			if err := svc.RecordStandalonePayout(ctx, "C1", amount("0.75"), "cash", "fp-6"); err != nil {
				t.Fatalf("payout failed: %v", err)
			}
			if err := svc.RecordStandalonePayout(ctx, "C1", amount("0.75"), "cash", "fp-6"); err != nil {
				t.Fatalf("idempotent retry failed: %v", err)
			}
			if err := svc.RecordStandalonePayout(ctx, "C1", amount("0.80"), "cash", "fp-6"); !errors.Is(err, order.ErrReferenceConflict) {
				t.Fatalf("expected ErrReferenceConflict, got %v", err)
			}
			if err := svc.RecordStandalonePayout(ctx, "C1", decimal.Zero, "cash", "fp-7"); !errors.Is(err, order.ErrInvalidAmount) {
				t.Fatalf("expected ErrInvalidAmount for zero payout, got %v", err)
			}
		})
	}
}
