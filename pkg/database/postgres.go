package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TxQuerier is implemented by both pgxpool.Pool and pgx.Tx.
// Repository methods that need transaction support should accept TxQuerier.
type TxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// connectBackOff doubles from 1s: 1s, 2s, 4s, 8s, 16s between attempts.
func connectBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// NewPool creates a PostgreSQL connection pool with retry logic.
// maxRetries below 1 still makes one attempt.
func NewPool(ctx context.Context, dsn string, maxRetries int) (*pgxpool.Pool, error) {
	attempts := maxRetries
	if attempts < 1 {
		attempts = 1
	}

	var pool *pgxpool.Pool
	attempt := 0
	connect := func() error {
		attempt++
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		// Verify connection actually works
		if pingErr := p.Ping(ctx); pingErr != nil {
			p.Close()
			return fmt.Errorf("ping failed: %w", pingErr)
		}
		pool = p
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Dur("next_retry_in", next).
			Msg("database connection failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(connectBackOff(), uint64(attempts-1)), ctx)
	if err := backoff.RetryNotify(connect, b, notify); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to connect after %d attempts: %w", attempt, err)
	}

	log.Info().Msg("database connection established")
	return pool, nil
}
