package app

import (
	"context"
	"log"
	"sync"
	"time"
)

// Purger deletes sessions not updated since olderThan. The engine is the
// production implementation and takes each session's lock before deleting.
type Purger interface {
	PurgeExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

// Sweeper periodically purges sessions idle for longer than ttl. Redis
// expires keys itself and runs without one.
type Sweeper struct {
	purger Purger
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(p Purger, ttl time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{purger: p, ttl: ttl, logger: logger, now: time.Now}
}

// Sweep runs one purge pass.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.purger.PurgeExpired(ctx, cutoff)
	if err != nil {
		s.logger.Printf("sweep_failed cutoff=%s error=%v", cutoff.UTC().Format(time.RFC3339), err)
		return 0, err
	}
	if n > 0 {
		s.logger.Printf("sweep_completed purged=%d cutoff=%s", n, cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// Start sweeps every interval until Stop or ctx is done.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = s.Sweep(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sweep.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
