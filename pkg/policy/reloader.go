package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reloader handles atomic policy swaps for long-running hosts. Within one
// transaction the policy snapshot stays immutable; hosts take Current()
// when registering a resolver for a new unit of work, so a reload only
// affects transactions begun after it.
type Reloader struct {
	rebuild func(ctx context.Context) (*Policy, error)
	logger  *slog.Logger

	mu          sync.RWMutex
	current     *Policy
	metrics     *Metrics
	reloadCount int64
	lastReload  time.Time
}

// NewReloader creates a reloader holding the initial policy. The rebuild
// function is invoked on every Reload and typically re-reads configuration
// from disk.
func NewReloader(initial *Policy, rebuild func(ctx context.Context) (*Policy, error), logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		rebuild: rebuild,
		logger:  logger,
		current: initial,
	}
}

// SetMetrics sets the metrics instance for recording reload events
func (r *Reloader) SetMetrics(metrics *Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = metrics
}

// Current returns the active policy snapshot.
func (r *Reloader) Current() *Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Reload rebuilds the policy and swaps it in atomically. On failure the
// previous policy stays active.
func (r *Reloader) Reload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	next, err := r.rebuild(ctx)
	if err != nil {
		r.logger.Error("policy reload failed, keeping previous policy", "error", err)
		if r.metrics != nil {
			r.metrics.RecordReload("rebuild_failed")
		}
		return fmt.Errorf("policy reload failed: %w", err)
	}

	r.current = next
	r.reloadCount++
	r.lastReload = time.Now()

	r.logger.Info("policy reload completed",
		"duration", time.Since(start),
		"reload_count", r.reloadCount,
		"mode", next.Mode(),
		"suppress_rules", len(next.suppress))

	if r.metrics != nil {
		r.metrics.RecordReload("success")
	}

	return nil
}
