package diskstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ncollectd-mdb/internal/mdberr"
)

// Store wraps a pooled connection to the disk backend. Connect succeeds
// and pools normally; every data operation on Store is a stub returning
// mdberr.Unsupported, since ring overflow to disk is not implemented.
type Store struct {
	db     *sql.DB
	config *Config
}

// Connect establishes a pooled connection with retry and exponential
// backoff, mirroring mdb's treatment of every other external resource.
func Connect(ctx context.Context, config *Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var db *sql.DB
	var err error

	delay := config.RetryDelay
	for attempt := 0; attempt <= config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}

		db, err = sql.Open("pgx", config.DSN)
		if err != nil {
			if attempt == config.RetryAttempts {
				return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
			}
			continue
		}

		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
		db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

		if err = db.PingContext(ctx); err != nil {
			db.Close()
			if attempt == config.RetryAttempts {
				return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
			}
			continue
		}

		return &Store{db: db, config: config}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
}

// HealthCheck pings the backend.
func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("diskstore: health check failed: %w", err)
	}
	return nil
}

// Stats returns the underlying pool statistics.
func (s *Store) Stats() sql.DBStats { return s.db.Stats() }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// WriteSample would persist a sample to disk-backed storage. Stubbed:
// the disk backend is Non-goal scope for this version of mdb.
func (s *Store) WriteSample(ctx context.Context, seriesKey string, t, value float64) error {
	return mdberr.New(mdberr.Unsupported, "diskstore.WriteSample", nil)
}

// FetchRange would read a sample range from disk-backed storage. Stubbed
// for the same reason as WriteSample.
func (s *Store) FetchRange(ctx context.Context, seriesKey string, start, end float64) ([]float64, error) {
	return nil, mdberr.New(mdberr.Unsupported, "diskstore.FetchRange", nil)
}
