package dedupe

import (
	"context"
	"sync"
	"time"

	"tradechat-go/internal/clock"

	"go.uber.org/zap"
)

const (
	DefaultTTL             = 24 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// Guard remembers inbound delivery ids so a redelivered webhook is not
// processed twice.
type Guard interface {
	// FirstDelivery records id and reports whether it had not been seen
	// within the TTL.
	FirstDelivery(ctx context.Context, id string) (bool, error)
	// Release forgets id so a provider retry after a failed attempt is
	// processed again.
	Release(ctx context.Context, id string) error
	Close() error
}

// MemoryGuard is a process-local Guard used when Redis is not configured.
type MemoryGuard struct {
	clock clock.Clock
	ttl   time.Duration

	mutex sync.Mutex
	seen  map[string]time.Time

	started  bool
	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewMemoryGuard(clk clock.Clock, ttl time.Duration) *MemoryGuard {
	if clk == nil {
		clk = clock.Real{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{
		clock:    clk,
		ttl:      ttl,
		seen:     make(map[string]time.Time),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (g *MemoryGuard) FirstDelivery(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return true, nil
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	now := g.clock.Now()
	if seenAt, ok := g.seen[id]; ok && now.Sub(seenAt) < g.ttl {
		return false, nil
	}
	g.seen[id] = now
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, id string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.seen, id)
	return nil
}

func (g *MemoryGuard) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.seen)
}

// Start runs periodic eviction until Close or ctx is done.
func (g *MemoryGuard) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.started {
		return
	}
	g.started = true
	go g.cleanupLoop(ctx, interval)
}

func (g *MemoryGuard) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer close(g.doneChan)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.Cleanup()
		case <-g.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Cleanup evicts every id older than the TTL.
func (g *MemoryGuard) Cleanup() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	now := g.clock.Now()
	cleaned := 0
	for id, seenAt := range g.seen {
		if now.Sub(seenAt) >= g.ttl {
			delete(g.seen, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		zap.L().Debug("Cleaned up expired delivery ids",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(g.seen)))
	}
}

// Close stops the eviction loop. It is safe to call more than once.
func (g *MemoryGuard) Close() error {
	g.stopOnce.Do(func() {
		close(g.stopChan)
		g.mutex.Lock()
		started := g.started
		g.mutex.Unlock()
		if started {
			<-g.doneChan
		}
	})
	return nil
}
