package alerts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/metrics"
	"github.com/fitcompany/console/internal/ws"
)

// DefaultInterval is how often the catalog is polled.
const DefaultInterval = 6 * time.Second

// EventType tags alert events on the wire.
const EventType = "alerts"

// Publisher receives the alert list.
type Publisher interface {
	Publish(topic, eventType string, payload interface{}) error
}

// Poller rebuilds the alert list on a fixed interval.
type Poller struct {
	src      catalog.Source
	pub      Publisher
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	current   []Alert
	published bool
}

// NewPoller returns a poller. interval <= 0 uses DefaultInterval.
func NewPoller(src catalog.Source, pub Publisher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		src:      src,
		pub:      pub,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		current:  []Alert{},
	}
}

// Run refreshes immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh fetches the catalog once. A failed fetch publishes an empty list.
// The list is published only when it differs from the previous one.
func (p *Poller) Refresh(ctx context.Context) {
	products, err := p.src.ListProducts(ctx)
	metrics.RecordPoll(err == nil)

	next := []Alert{}
	if err != nil {
		p.logger.Warn("alert poll failed", zap.Error(err))
	} else {
		next = Build(products, p.now())
	}

	p.mu.Lock()
	changed := !p.published || !Equal(p.current, next)
	if changed {
		p.current = next
		p.published = true
	}
	p.mu.Unlock()

	if !changed {
		return
	}
	metrics.SetAlerts(Counts(next))
	if err := p.pub.Publish(ws.TopicAlerts, EventType, next); err != nil {
		p.logger.Error("publish alerts", zap.Error(err))
	}
}

// Current returns the last computed list.
func (p *Poller) Current() []Alert {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Alert, len(p.current))
	copy(out, p.current)
	return out
}
