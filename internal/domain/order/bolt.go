package order

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	bucketOrders  = []byte("orders")
	bucketCredits = []byte("order_credits")
	bucketPayouts = []byte("order_payouts")
)

// BoltRepository stores orders in the same embedded file as the deposit ledger.
type BoltRepository struct {
	db *bolt.DB
}

func NewBoltRepository(db *bolt.DB) (*BoltRepository, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketOrders, bucketCredits, bucketPayouts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BoltRepository{db: db}, nil
}

// AddOrder registers or replaces an order.
func (r *BoltRepository) AddOrder(o Order) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(bucketOrders), o.ID, o)
	})
}

func (r *BoltRepository) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(bucketOrders), orderID, &o)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *BoltRepository) ApplyCredit(ctx context.Context, orderID string, amount decimal.Decimal, referenceID string) (decimal.Decimal, error) {
	var final decimal.Decimal
	err := r.db.Update(func(tx *bolt.Tx) error {
		credits := tx.Bucket(bucketCredits)

		var existing Credit
		if err := getJSON(credits, referenceID, &existing); err == nil {
			var rerr error
			final, rerr = replayCredit(&existing, orderID, amount)
			return rerr
		}

		var o Order
		if err := getJSON(tx.Bucket(bucketOrders), orderID, &o); err != nil {
			return err
		}

		final = finalAmount(o.Outstanding(), amount)
		o.DepositCredit = o.DepositCredit.Add(amount)
		if err := putJSON(tx.Bucket(bucketOrders), o.ID, o); err != nil {
			return err
		}
		return putJSON(credits, referenceID, Credit{
			ID:          uuid.New(),
			OrderID:     orderID,
			ReferenceID: referenceID,
			Amount:      amount,
			FinalAmount: final,
			CreatedAt:   time.Now().UTC(),
		})
	})
	if err != nil {
		return decimal.Zero, err
	}
	return final, nil
}

func (r *BoltRepository) RecordPayout(ctx context.Context, p Payout) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		payouts := tx.Bucket(bucketPayouts)

		var existing Payout
		if err := getJSON(payouts, p.ReferenceID, &existing); err == nil {
			if existing.CustomerID != p.CustomerID || !existing.Amount.Equal(p.Amount) {
				return ErrReferenceConflict
			}
			return nil
		}

		p.ID = uuid.New()
		p.CreatedAt = time.Now().UTC()
		return putJSON(payouts, p.ReferenceID, p)
	})
}

func putJSON(b *bolt.Bucket, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put([]byte(key), data)
}

// getJSON returns ErrOrderNotFound for a missing key in any bucket; callers
// treat it as "absent".
func getJSON(b *bolt.Bucket, key string, v interface{}) error {
	data := b.Get([]byte(key))
	if data == nil {
		return ErrOrderNotFound
	}
	return json.Unmarshal(data, v)
}
