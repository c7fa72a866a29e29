package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/dispatch-api/internal/domain/deposit"
)

// Queue hands out commit records that still need archiving.
type Queue interface {
	// Claim returns the next unarchived fingerprint, or ok=false when idle.
	Claim(ctx context.Context) (fingerprint string, ok bool, err error)
	MarkArchived(ctx context.Context, fingerprint, key string) error
	MarkFailed(ctx context.Context, fingerprint, msg string) error
}

// PostgresQueue tracks archive state on deposit_commits.
type PostgresQueue struct {
	db          *sqlx.DB
	maxAttempts int
}

func NewPostgresQueue(db *sqlx.DB, maxAttempts int) *PostgresQueue {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &PostgresQueue{db: db, maxAttempts: maxAttempts}
}

func (q *PostgresQueue) Claim(ctx context.Context) (string, bool, error) {
	var fp string
	err := q.db.GetContext(ctx, &fp, `
		SELECT fingerprint
		FROM deposit_commits
		WHERE archived_at IS NULL
		  AND archive_attempts < $1
		ORDER BY committed_at ASC
		LIMIT 1
	`, q.maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	// claim atomically so several workers can run
	res, err := q.db.ExecContext(ctx, `
		UPDATE deposit_commits
		SET archive_attempts = archive_attempts + 1,
		    archive_error = NULL
		WHERE fingerprint = $1
		  AND archived_at IS NULL
		  AND archive_attempts < $2
	`, fp, q.maxAttempts)
	if err != nil {
		return "", false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", false, nil
	}
	return fp, true, nil
}

func (q *PostgresQueue) MarkArchived(ctx context.Context, fingerprint, key string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE deposit_commits
		SET archived_at = NOW(), archive_key = $2, archive_error = NULL
		WHERE fingerprint = $1
	`, fingerprint, key)
	return err
}

func (q *PostgresQueue) MarkFailed(ctx context.Context, fingerprint, msg string) error {
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE deposit_commits SET archive_error = $2 WHERE fingerprint = $1
	`, fingerprint, msg)
	return err
}

// RecordFinder loads a commit record by fingerprint.
type RecordFinder interface {
	FindCommit(ctx context.Context, fingerprint string) (*deposit.CommitRecord, error)
}

// Worker drains the queue into the archive.
type Worker struct {
	queue        Queue
	records      RecordFinder
	archiver     *Archiver
	pollInterval time.Duration
}

func NewWorker(queue Queue, records RecordFinder, archiver *Archiver, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Worker{queue: queue, records: records, archiver: archiver, pollInterval: pollInterval}
}

// Run polls until ctx is cancelled. A value on wake triggers an immediate poll.
func (w *Worker) Run(ctx context.Context, wake <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("audit archiver stopped")
			return
		case <-wake:
		case <-ticker.C:
		}

		n, err := w.Drain(ctx)
		if err != nil {
			log.Error().Err(err).Msg("DB error while claiming commit")
			continue
		}
		if n > 0 {
			log.Info().Int("archived", n).Msg("audit batch done")
		}
	}
}

// Drain archives claimed commits until the queue is idle and returns how many succeeded.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	done := 0
	for ctx.Err() == nil {
		fp, ok, err := w.queue.Claim(ctx)
		if err != nil {
			return done, err
		}
		if !ok {
			return done, nil
		}

		if w.archiveOne(ctx, fp) {
			done++
		}
	}
	return done, nil
}

func (w *Worker) archiveOne(ctx context.Context, fp string) bool {
	rec, err := w.records.FindCommit(ctx, fp)
	if err == nil {
		var key string
		key, err = w.archiver.Archive(ctx, rec)
		if err == nil {
			if err := w.queue.MarkArchived(ctx, fp, key); err != nil {
				log.Error().Err(err).Str("fingerprint", fp).Msg("Failed to mark commit archived")
				return false
			}
			return true
		}
	}

	log.Error().Err(err).Str("fingerprint", fp).Msg("commit archive failed")
	if err2 := w.queue.MarkFailed(ctx, fp, err.Error()); err2 != nil {
		log.Error().Err(err2).Str("fingerprint", fp).Msg("Failed to record archive error")
	}
	return false
}

// SubscribeWakeups turns commit notifications into worker wake-ups.
// Polling still runs when Redis is down.
func SubscribeWakeups(ctx context.Context, rdb *redis.Client, wake chan<- struct{}) {
	sub := rdb.Subscribe(ctx, deposit.CommitChannel)
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}
