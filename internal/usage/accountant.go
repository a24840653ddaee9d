// Package usage batches discount usage events into summed counter writes.
//
// Each successful validation enqueues one event. Events for the same discount
// are coalesced at flush time, so N events become a single +N write. Writes are
// best-effort: a write that still fails after the retry policy is logged and
// dropped, so counts may under-count but never double-count.
package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/order-pricing-engine/internal/service"
	"github.com/fairyhunter13/order-pricing-engine/pkg/retry"
)

// Incrementer applies a summed usage increment to the persistent store.
type Incrementer interface {
	IncrementUsage(ctx context.Context, id uuid.UUID, n int) error
}

// Config controls batching and write retries.
type Config struct {
	BatchSize  int
	FlushDelay time.Duration
	Retry      retry.Policy
}

// Accountant owns the pending event list and its flush timer.
type Accountant struct {
	store Incrementer
	cfg   Config

	mu      sync.Mutex
	pending []uuid.UUID
	timer   *time.Timer
	timerID uint64
	closed  bool

	wg sync.WaitGroup
}

// NewAccountant creates an Accountant writing through store.
func NewAccountant(store Incrementer, cfg Config) *Accountant {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Accountant{
		store: store,
		cfg:   cfg,
	}
}

// Enqueue records one usage of the discount. It never blocks on the store.
func (a *Accountant) Enqueue(id uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		log.Warn().Str("discount_id", id.String()).Msg("usage accountant closed, dropping event")
		return
	}

	a.pending = append(a.pending, id)

	if len(a.pending) >= a.cfg.BatchSize {
		a.stopTimerLocked()
		batch := a.takeLocked()
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.write(context.Background(), batch)
		}()
		return
	}

	if a.timer == nil {
		a.timerID++
		gen := a.timerID
		a.timer = time.AfterFunc(a.cfg.FlushDelay, func() { a.onTimer(gen) })
	}
}

func (a *Accountant) onTimer(gen uint64) {
	a.mu.Lock()
	if gen != a.timerID || a.timer == nil {
		// Stopped or superseded after it had already fired.
		a.mu.Unlock()
		return
	}
	a.timer = nil
	batch := a.takeLocked()
	if len(batch) > 0 {
		a.wg.Add(1)
	}
	a.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	defer a.wg.Done()
	a.write(context.Background(), batch)
}

// Flush writes everything pending and returns once those writes are done.
func (a *Accountant) Flush(ctx context.Context) {
	a.mu.Lock()
	a.stopTimerLocked()
	batch := a.takeLocked()
	a.mu.Unlock()

	a.write(ctx, batch)
}

// Close stops accepting events, drains the pending list, and waits for
// in-flight writes. It returns early with the context's error if ctx ends first.
func (a *Accountant) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.stopTimerLocked()
	batch := a.takeLocked()
	a.mu.Unlock()

	a.write(ctx, batch)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("usage accountant drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of events not yet handed to a write.
func (a *Accountant) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Accountant) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Accountant) takeLocked() []uuid.UUID {
	batch := a.pending
	a.pending = nil
	return batch
}

// write coalesces batch by discount id and issues one increment per id.
func (a *Accountant) write(ctx context.Context, batch []uuid.UUID) {
	if len(batch) == 0 {
		return
	}

	counts := make(map[uuid.UUID]int, len(batch))
	order := make([]uuid.UUID, 0, len(batch))
	for _, id := range batch {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}

	for _, id := range order {
		n := counts[id]
		err := a.cfg.Retry.Do(ctx, func(ctx context.Context) error {
			err := a.store.IncrementUsage(ctx, id, n)
			if errors.Is(err, service.ErrDiscountNotFound) {
				return retry.Permanent(err)
			}
			return err
		})
		if err != nil {
			log.Error().
				Err(err).
				Str("discount_id", id.String()).
				Int("count", n).
				Msg("dropping usage increment")
			continue
		}
		log.Debug().
			Str("discount_id", id.String()).
			Int("count", n).
			Msg("usage increment written")
	}
}
