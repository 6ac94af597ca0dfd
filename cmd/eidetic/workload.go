package main

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mac-/eidetic/config"
	"github.com/mac-/eidetic/pkg/cache"
)

// workload issues read-through traffic against a cache: every lookup that
// misses is followed by a put of a fresh value. All workers share one limiter.
type workload struct {
	cache   cache.Cache[[]byte]
	cfg     config.WorkloadConfig
	limiter *rate.Limiter
	logger  *slog.Logger

	lookups  atomic.Int64
	puts     atomic.Int64
	rejected atomic.Int64
}

func newWorkload(c cache.Cache[[]byte], cfg config.WorkloadConfig, logger *slog.Logger) *workload {
	return &workload{
		cache:   c,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:  logger.With("component", "workload"),
	}
}

func (w *workload) putOptions() []cache.PutOption {
	opts := []cache.PutOption{cache.WithSlidingExpiration(w.cfg.Sliding)}
	if w.cfg.Duration > 0 {
		opts = append(opts, cache.WithDuration(w.cfg.Duration))
	}
	return opts
}

// Run blocks until ctx is cancelled. Cancellation is not an error; a put
// failure is and stops every worker.
func (w *workload) Run(ctx context.Context) error {
	w.logger.Info("workload started",
		"workers", w.cfg.Workers,
		"keys", w.cfg.Keys,
		"rate", w.cfg.Rate,
		"duration", w.cfg.Duration,
		"sliding", w.cfg.Sliding)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for range w.cfg.Workers {
		g.Go(func() error {
			return w.worker(gctx)
		})
	}
	err := g.Wait()

	w.logger.Info("workload stopped",
		"lookups", w.lookups.Load(),
		"puts", w.puts.Load(),
		"rejected", w.rejected.Load(),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return err
}

func (w *workload) worker(ctx context.Context) error {
	opts := w.putOptions()
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			// Wait also fails when the deadline is shorter than the next token.
			return nil
		}
		if _, err := w.step(opts); err != nil {
			return err
		}
	}
}

// step performs one lookup and reports whether it hit.
func (w *workload) step(opts []cache.PutOption) (bool, error) {
	key := "key-" + strconv.Itoa(rand.IntN(w.cfg.Keys))
	w.lookups.Add(1)
	if _, ok := w.cache.Get(key); ok {
		return true, nil
	}

	stored, err := w.cache.Put(key, w.value(), opts...)
	if err != nil {
		return false, err
	}
	if stored {
		w.puts.Add(1)
	} else {
		w.rejected.Add(1)
	}
	return false, nil
}

func (w *workload) value() []byte {
	buf := make([]byte, w.cfg.ValueSize)
	for i := range buf {
		buf[i] = byte(rand.UintN(256))
	}
	return buf
}
