// Package postgres provides Postgres-backed persistence for venue results.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/venueminer/venueminer/internal/venue"
)

// ResultStoreConfig controls the Postgres connection pool used for results.
type ResultStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ResultStore writes venue results and their rooms into Postgres. Rows are
// keyed by (venue_id, extracted_at) so repeated runs append history instead
// of overwriting it.
type ResultStore struct {
	pool execCloser
}

// NewResultStore creates a Postgres-backed ResultStore using the provided config.
func NewResultStore(ctx context.Context, cfg ResultStoreConfig) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ResultStore{pool: pool}, nil
}

// NewResultStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewResultStoreWithPool(pool execCloser) (*ResultStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ResultStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertResultSQL = `
INSERT INTO venue_results (
	venue_id,
	venue_name,
	venue_address,
	page_url,
	variant,
	rooms_status,
	geo_status,
	content_status,
	failure_reason,
	geo,
	content,
	extracted_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (venue_id, extracted_at) DO NOTHING;`

const insertRoomSQL = `
INSERT INTO venue_rooms (
	venue_id,
	extracted_at,
	name,
	floor_area,
	ceiling_height,
	dimensions,
	theatre,
	classroom,
	banquet,
	cocktail,
	u_shape,
	amphitheater,
	partial
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (venue_id, extracted_at, name) DO NOTHING;`

// SaveResults persists a batch of venue results. Rooms ride along under the
// parent's (venue_id, extracted_at) key. The write is per-result, not
// all-or-nothing: a failed venue row skips only its own rooms.
func (s *ResultStore) SaveResults(ctx context.Context, results []venue.Result) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	for i := range results {
		if err := s.saveResult(ctx, &results[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *ResultStore) saveResult(ctx context.Context, res *venue.Result) error {
	if res.Venue.ID == "" {
		return fmt.Errorf("venue id is required")
	}
	// Absent enrichment stays SQL NULL instead of an empty JSON object.
	var geoJSON, contentJSON []byte
	var err error
	if res.Geo != nil {
		if geoJSON, err = json.Marshal(res.Geo); err != nil {
			return fmt.Errorf("marshal geo for venue %s: %w", res.Venue.ID, err)
		}
	}
	if res.Content != nil {
		if contentJSON, err = json.Marshal(res.Content); err != nil {
			return fmt.Errorf("marshal content for venue %s: %w", res.Venue.ID, err)
		}
	}

	if _, err := s.pool.Exec(ctx, insertResultSQL,
		res.Venue.ID,
		res.Venue.Name,
		res.Venue.Address,
		res.Venue.PageURL,
		string(res.Variant),
		string(res.RoomsStatus),
		string(res.GeoStatus),
		string(res.ContentStatus),
		res.FailureReason,
		geoJSON,
		contentJSON,
		res.ExtractedAt,
	); err != nil {
		return fmt.Errorf("insert result for venue %s: %w", res.Venue.ID, err)
	}

	for _, room := range res.Rooms {
		if _, err := s.pool.Exec(ctx, insertRoomSQL,
			res.Venue.ID,
			res.ExtractedAt,
			room.Name,
			room.FloorArea,
			room.CeilingHeight,
			room.Dimensions,
			room.Theatre,
			room.Classroom,
			room.Banquet,
			room.Cocktail,
			room.UShape,
			room.Amphitheater,
			room.Partial,
		); err != nil {
			return fmt.Errorf("insert room %q for venue %s: %w", room.Name, res.Venue.ID, err)
		}
	}
	return nil
}
