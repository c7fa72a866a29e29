package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dispatchly/dispatch-api/internal/domain/deposit"
)

var ErrInternal = errors.New("internal error")

const (
	queryTimeout = 3 * time.Second
	cacheKey     = "deposit:catalog"
)

// Repository reads active deduction item types from Postgres.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Catalog(ctx context.Context) (deposit.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var items []deposit.DeductionItemType
	err := r.db.SelectContext(ctx, &items, `
		SELECT type_id, display_name, unit_amount
		FROM deduction_item_types
		WHERE active
		ORDER BY type_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list deduction item types: %v", ErrInternal, err)
	}
	return deposit.NewCatalog(items), nil
}

// Static serves a fixed catalog, used with the embedded and in-memory stores.
type Static struct {
	catalog deposit.Catalog
}

func NewStatic(items []deposit.DeductionItemType) *Static {
	return &Static{catalog: deposit.NewCatalog(items)}
}

func (s *Static) Catalog(ctx context.Context) (deposit.Catalog, error) {
	return s.catalog, nil
}

// Cached puts a Redis read-through cache in front of another source.
// Cache failures fall through to the source.
type Cached struct {
	source deposit.CatalogSource
	client *redis.Client
	ttl    time.Duration
}

func NewCached(source deposit.CatalogSource, client *redis.Client, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cached{source: source, client: client, ttl: ttl}
}

func (c *Cached) Catalog(ctx context.Context) (deposit.Catalog, error) {
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var items []deposit.DeductionItemType
		if err := json.Unmarshal(data, &items); err == nil {
			return deposit.NewCatalog(items), nil
		}
		log.Warn().Msg("catalog cache entry corrupt")
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Msg("catalog cache read failed")
	}

	cat, err := c.source.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(cat.Items()); err == nil {
		if err := c.client.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return cat, nil
}
