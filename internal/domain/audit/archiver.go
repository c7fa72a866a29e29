package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dispatchly/dispatch-api/internal/domain/deposit"
	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
	"github.com/dispatchly/dispatch-api/internal/pkg/storage"
)

// Archiver writes commit records to object storage as JSON documents.
type Archiver struct {
	store storage.Storage
}

func NewArchiver(store storage.Storage) *Archiver {
	return &Archiver{store: store}
}

// Key is the object key of a record, partitioned by commit day.
func Key(rec *deposit.CommitRecord) string {
	return fmt.Sprintf("deposits/%s/%s.json", rec.CommittedAt.UTC().Format("2006/01/02"), rec.Fingerprint)
}

// Archive uploads rec unless an object with its key already exists, so
// re-archiving after a crash is harmless.
func (a *Archiver) Archive(ctx context.Context, rec *deposit.CommitRecord) (string, error) {
	key := Key(rec)

	exists, err := a.store.Exists(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check archive: %w", err)
	}
	if exists {
		return key, nil
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if err := a.store.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	return key, nil
}

// InlineNotifier archives each commit right after it is recorded. It serves
// deployments without the background worker; failures are only logged.
type InlineNotifier struct {
	archiver *Archiver
}

func NewInlineNotifier(archiver *Archiver) *InlineNotifier {
	return &InlineNotifier{archiver: archiver}
}

func (n *InlineNotifier) CommitRecorded(ctx context.Context, rec *deposit.CommitRecord) {
	key, err := n.archiver.Archive(ctx, rec)
	if err != nil {
		logger.LogError(ctx, err, "commit archive failed", "fingerprint", rec.Fingerprint)
		return
	}
	logger.LogDebug(ctx, "commit archived", "fingerprint", rec.Fingerprint, "key", key)
}
