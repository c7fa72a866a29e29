package deposit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	bolt "github.com/boltdb/bolt"
)

var (
	bucketLines     = []byte("deposit_lines")
	bucketLineIndex = []byte("deposit_line_index")
	bucketRefunds   = []byte("deposit_refunds")
	bucketCommits   = []byte("deposit_commits")
)

const keySep = "\x00"

// BoltStore persists the deposit ledger in an embedded BoltDB file, for depots
// that run without Postgres. It is not a TxStore: the order repository writes to
// the same file and Bolt allows one writer, so commits take the sequential path
// and each refund is checked and written in its own update.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore ensures the deposit buckets exist in db. The file is shared
// with the order repository; its owner closes it.
func NewBoltStore(db *bolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketLines, bucketLineIndex, bucketRefunds, bucketCommits} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// AddLine registers an order line for a customer.
func (s *BoltStore) AddLine(customerID string, line DepositLine) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return boltTx{tx}.putLine(customerID, baseLine(line))
	})
}

func (s *BoltStore) ListDepositLines(ctx context.Context, customerID string) ([]DepositLine, error) {
	var out []DepositLine
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = boltTx{tx}.ListDepositLines(ctx, customerID)
		return err
	})
	return out, err
}

func (s *BoltStore) LineStates(ctx context.Context, keys []LineKey, fingerprint string) (map[LineKey]LineState, error) {
	var out map[LineKey]LineState
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = boltTx{tx}.LineStates(ctx, keys, fingerprint)
		return err
	})
	return out, err
}

func (s *BoltStore) FindCommit(ctx context.Context, fingerprint string) (*CommitRecord, error) {
	var rec *CommitRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		rec, err = boltTx{tx}.FindCommit(ctx, fingerprint)
		return err
	})
	return rec, err
}

func (s *BoltStore) RecordLineRefund(ctx context.Context, r LineRefund) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return boltTx{tx}.RecordLineRefund(ctx, r)
	})
}

func (s *BoltStore) SaveCommit(ctx context.Context, rec *CommitRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return boltTx{tx}.SaveCommit(ctx, rec)
	})
}

func (s *BoltStore) RevokeLineRefunds(ctx context.Context, fingerprint string, keys []LineKey) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return boltTx{tx}.RevokeLineRefunds(ctx, fingerprint, keys)
	})
}

// boltTx implements Store on top of an open Bolt transaction.
type boltTx struct {
	tx *bolt.Tx
}

func (b boltTx) putLine(customerID string, line DepositLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	key := line.Key().String()
	if err := b.tx.Bucket(bucketLines).Put([]byte(customerID+keySep+key), data); err != nil {
		return err
	}
	return b.tx.Bucket(bucketLineIndex).Put([]byte(key), []byte(customerID))
}

func (b boltTx) getLine(key LineKey) (DepositLine, bool, error) {
	customerID := b.tx.Bucket(bucketLineIndex).Get([]byte(key.String()))
	if customerID == nil {
		return DepositLine{}, false, nil
	}
	data := b.tx.Bucket(bucketLines).Get([]byte(string(customerID) + keySep + key.String()))
	if data == nil {
		return DepositLine{}, false, nil
	}
	var line DepositLine
	if err := json.Unmarshal(data, &line); err != nil {
		return DepositLine{}, false, err
	}
	return line, true, nil
}

func (b boltTx) refundsOf(key LineKey) ([]LineRefund, error) {
	var out []LineRefund
	prefix := []byte(key.String() + keySep)
	c := b.tx.Bucket(bucketRefunds).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var r LineRefund
		if err := json.Unmarshal(v, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (b boltTx) ListDepositLines(ctx context.Context, customerID string) ([]DepositLine, error) {
	out := []DepositLine{}

	prefix := []byte(customerID + keySep)
	c := b.tx.Bucket(bucketLines).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		var line DepositLine
		if err := json.Unmarshal(v, &line); err != nil {
			return nil, fmt.Errorf("decode line %q: %w", k, err)
		}
		if !line.UnitAmount.IsPositive() {
			continue
		}
		refunds, err := b.refundsOf(line.Key())
		if err != nil {
			return nil, err
		}
		out = append(out, deriveLine(line, refunds))
	}
	return out, nil
}

func (b boltTx) LineStates(ctx context.Context, keys []LineKey, fingerprint string) (map[LineKey]LineState, error) {
	out := make(map[LineKey]LineState, len(keys))
	for _, k := range keys {
		line, ok, err := b.getLine(k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		refunds, err := b.refundsOf(k)
		if err != nil {
			return nil, err
		}
		out[k] = stateOf(line, refunds, fingerprint)
	}
	return out, nil
}

func (b boltTx) FindCommit(ctx context.Context, fingerprint string) (*CommitRecord, error) {
	data := b.tx.Bucket(bucketCommits).Get([]byte(fingerprint))
	if data == nil {
		return nil, ErrCommitNotFound
	}
	var rec CommitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b boltTx) RecordLineRefund(ctx context.Context, r LineRefund) error {
	bucket := b.tx.Bucket(bucketRefunds)
	key := []byte(r.Key.String() + keySep + r.Fingerprint)
	if bucket.Get(key) != nil {
		return nil
	}

	line, ok, err := b.getLine(r.Key)
	if err != nil {
		return err
	}
	if !ok {
		return &ConflictError{Line: r.Key, Selected: r.Quantity}
	}
	refunds, err := b.refundsOf(r.Key)
	if err != nil {
		return err
	}
	if err := checkCapacity(stateOf(line, refunds, r.Fingerprint), r); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return bucket.Put(key, data)
}

func (b boltTx) SaveCommit(ctx context.Context, rec *CommitRecord) error {
	bucket := b.tx.Bucket(bucketCommits)
	if bucket.Get([]byte(rec.Fingerprint)) != nil {
		return ErrDuplicateFingerprint
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(rec.Fingerprint), data)
}

func (b boltTx) RevokeLineRefunds(ctx context.Context, fingerprint string, keys []LineKey) error {
	if b.tx.Bucket(bucketCommits).Get([]byte(fingerprint)) != nil {
		return ErrDuplicateFingerprint
	}
	bucket := b.tx.Bucket(bucketRefunds)
	for _, k := range keys {
		if err := bucket.Delete([]byte(k.String() + keySep + fingerprint)); err != nil {
			return err
		}
	}
	return nil
}
