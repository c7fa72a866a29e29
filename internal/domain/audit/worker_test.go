package audit

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatchly/dispatch-api/internal/domain/deposit"
	"github.com/dispatchly/dispatch-api/internal/pkg/storage"
)

type fakeQueue struct {
	pending  []string
	archived map[string]string
	failed   map[string]string
}

func newFakeQueue(fps ...string) *fakeQueue {
	return &fakeQueue{pending: fps, archived: map[string]string{}, failed: map[string]string{}}
}

func (q *fakeQueue) Claim(ctx context.Context) (string, bool, error) {
	if len(q.pending) == 0 {
		return "", false, nil
	}
	fp := q.pending[0]
	q.pending = q.pending[1:]
	return fp, true, nil
}

func (q *fakeQueue) MarkArchived(ctx context.Context, fingerprint, key string) error {
	q.archived[fingerprint] = key
	return nil
}

func (q *fakeQueue) MarkFailed(ctx context.Context, fingerprint, msg string) error {
	q.failed[fingerprint] = msg
	return nil
}

func sampleRecord(fp string) *deposit.CommitRecord {
	return &deposit.CommitRecord{
		Fingerprint:    fp,
		CurrentOrderID: "O9",
		CustomerID:     "C1",
		Mode:           deposit.ModePayoutOnly,
		Lines: []deposit.CommitLine{
			{OrderID: "O1", ItemID: "I1", Quantity: 2, Amount: decimal.RequireFromString("4.00")},
		},
		Credit:      decimal.RequireFromString("4.00"),
		Deduction:   decimal.Zero,
		NetCredit:   decimal.RequireFromString("4.00"),
		CommittedBy: "driver-1",
		CommittedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestWorkerDrainArchivesAndMarksFailures(t *testing.T) {
	ctx := context.Background()

	records := deposit.NewMemoryStore()
	require.NoError(t, records.SaveCommit(ctx, sampleRecord("fp-ok")))

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	queue := newFakeQueue("fp-ok", "fp-missing")
	w := NewWorker(queue, records, NewArchiver(local), time.Minute)

	n, err := w.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, "deposits/2026/03/14/fp-ok.json", queue.archived["fp-ok"])
	assert.Contains(t, queue.failed, "fp-missing")

	rc, err := local.Get(ctx, queue.archived["fp-ok"])
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)

	var got deposit.CommitRecord
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "fp-ok", got.Fingerprint)
	assert.True(t, got.NetCredit.Equal(decimal.RequireFromString("4.00")))
}

func TestArchiveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	a := NewArchiver(local)
	rec := sampleRecord("fp-twice")

	k1, err := a.Archive(ctx, rec)
	require.NoError(t, err)
	k2, err := a.Archive(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}
