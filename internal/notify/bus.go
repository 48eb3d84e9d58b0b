// Package notify fans domain notifications out to in-process callbacks and
// external sinks (SQS, Redis pub/sub).
package notify

import (
	"context"
	"sync"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
	"github.com/ignite/email-tracker/internal/pkg/metrics"
)

// Subscriber receives a notification. It runs on the publishing goroutine and
// must not block for long.
type Subscriber func(ctx context.Context, n domain.Notification)

// Bus dispatches notifications to subscribers registered per type.
type Bus struct {
	mu      sync.RWMutex
	byType  map[domain.NotificationType][]Subscriber
	all     []Subscriber
	metrics *metrics.Metrics
}

// NewBus creates an empty Bus. m may be nil.
func NewBus(m *metrics.Metrics) *Bus {
	return &Bus{byType: make(map[domain.NotificationType][]Subscriber), metrics: m}
}

// On registers fn for one notification type.
func (b *Bus) On(typ domain.NotificationType, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.byType[typ] = append(b.byType[typ], fn)
}

// OnAll registers fn for every notification type.
func (b *Bus) OnAll(fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, fn)
}

// Publish delivers n to the type's subscribers, then to the catch-all ones.
// A panicking subscriber is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, n domain.Notification) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.byType[n.Type])+len(b.all))
	subs = append(subs, b.byType[n.Type]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	for _, fn := range subs {
		b.call(ctx, fn, n)
	}
	b.metrics.Notification("bus", string(n.Type))
}

func (b *Bus) call(ctx context.Context, fn Subscriber, n domain.Notification) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("notification subscriber panicked", "type", n.Type, "panic", r)
		}
	}()
	fn(ctx, n)
}

// LogSubscriber writes every notification to the debug log.
func LogSubscriber(_ context.Context, n domain.Notification) {
	logger.Debug("notification",
		"type", n.Type,
		"provider", n.Provider,
		"message_id", n.MessageID,
		"email", n.Email,
	)
}
