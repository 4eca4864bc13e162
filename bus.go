package chatbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// Bus is the central registry of subscribers. Publish fans a message out to
// every registered subscriber, synchronously and in registration order.
type Bus struct {
	mu  sync.RWMutex
	reg *registry

	clock       xclock.Clock
	logger      *xlog.Logger
	middlewares []Middleware
	handler     Handler
	policy      FailurePolicy

	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer

	metrics   *busMetrics
	closed    atomic.Bool
	closeOnce sync.Once
}

// busMetrics uses lock-free atomics for telemetry.
type busMetrics struct {
	publishCount   atomic.Uint64
	deliveredCount atomic.Uint64
	failedCount    atomic.Uint64
	processingNs   atomic.Int64
}

// Subscribe registers sub unless a subscriber with the same ID is already
// registered. It never fails: the branch taken is reported through the
// logger and observers, and the return value is true only for a new registration.
func (b *Bus) Subscribe(sub Subscriber) bool {
	if sub == nil {
		b.logger.Warn().Err(ErrNilSubscriber).Msg("chatbus: subscribe ignored")
		return false
	}
	if b.closed.Load() {
		b.logger.Warn().Err(ErrBusClosed).Str("subscriber", describe(sub)).Msg("chatbus: subscribe ignored")
		return false
	}

	b.mu.Lock()
	added := b.reg.add(sub)
	b.mu.Unlock()

	if !added {
		b.logger.Info().Str("subscriber", describe(sub)).Msg("chatbus: already subscribed")
		b.notify(Event{Type: AlreadySubscribed, SubscriberID: sub.SubscriberID()})
		return false
	}

	b.logger.Info().Str("subscriber", describe(sub)).Msg("chatbus: subscribed")
	b.notify(Event{Type: Subscribed, SubscriberID: sub.SubscriberID()})
	return true
}

// Unsubscribe removes sub if registered; otherwise it only reports.
func (b *Bus) Unsubscribe(sub Subscriber) bool {
	if sub == nil {
		b.logger.Warn().Err(ErrNilSubscriber).Msg("chatbus: unsubscribe ignored")
		return false
	}

	b.mu.Lock()
	removed := b.reg.remove(sub)
	b.mu.Unlock()

	if !removed {
		b.logger.Info().Str("subscriber", describe(sub)).Msg("chatbus: was not subscribed")
		b.notify(Event{Type: NotSubscribed, SubscriberID: sub.SubscriberID()})
		return false
	}

	b.logger.Info().Str("subscriber", describe(sub)).Msg("chatbus: unsubscribed")
	b.notify(Event{Type: Unsubscribed, SubscriberID: sub.SubscriberID()})
	return true
}

// Publish delivers msg to every subscriber registered at call time, in
// registration order, and returns once all of them have run.
//
// With IsolateFailures every subscriber is invoked and failures come back as
// a *DeliveryError. With AbortOnFailure the first failure ends the fan-out.
// A cancelled ctx stops the fan-out before the next subscriber.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	if b.closed.Load() {
		return ErrBusClosed
	}

	// Snapshot so subscribers may (un)subscribe from other goroutines mid-fan-out.
	b.mu.RLock()
	subs := b.reg.snapshot()
	b.mu.RUnlock()

	b.metrics.publishCount.Add(1)
	b.logger.Debug().
		Str("message_id", msg.ID()).
		Str("sender", msg.Sender()).
		Str("target", msg.Target()).
		Msg("chatbus: publishing")
	b.notify(Event{
		Type:       PublishStart,
		MessageID:  msg.ID(),
		Sender:     msg.Sender(),
		Target:     msg.Target(),
		Recipients: len(subs),
	})

	hctx := injectLogger(ctx, b.logger)
	hctx = injectClock(hctx, b.clock)

	start := b.clock.Now()
	var (
		failures []SubscriberFailure
		stopErr  error
	)
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		dstart := b.clock.Now()
		err := b.handler(hctx, sub, msg)
		d := b.clock.Since(dstart)

		if err != nil {
			b.metrics.failedCount.Add(1)
			failures = append(failures, SubscriberFailure{SubscriberID: sub.SubscriberID(), Err: err})
			b.notify(Event{
				Type:         DeliveryFailed,
				SubscriberID: sub.SubscriberID(),
				MessageID:    msg.ID(),
				Target:       msg.Target(),
				Duration:     d,
				Err:          err,
			})
			if b.policy == AbortOnFailure {
				break
			}
			continue
		}

		b.metrics.deliveredCount.Add(1)
		b.notify(Event{
			Type:         Delivered,
			SubscriberID: sub.SubscriberID(),
			MessageID:    msg.ID(),
			Target:       msg.Target(),
			Duration:     d,
		})
	}

	duration := b.clock.Since(start)
	b.recordProcessingTime(duration.Nanoseconds())

	var err error
	if len(failures) > 0 {
		err = &DeliveryError{MessageID: msg.ID(), Failures: failures}
	}
	if stopErr != nil {
		err = errors.Join(stopErr, err)
	}

	b.notify(Event{
		Type:       PublishDone,
		MessageID:  msg.ID(),
		Sender:     msg.Sender(),
		Target:     msg.Target(),
		Recipients: len(subs),
		Duration:   duration,
		Err:        err,
	})
	return err
}

// Len returns the number of registered subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reg.len()
}

// Subscribers returns the registered subscribers in delivery order.
func (b *Bus) Subscribers() []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reg.snapshot()
}

// Policy returns the configured failure policy.
func (b *Bus) Policy() FailurePolicy { return b.policy }

// GetMetrics returns current bus metrics.
func (b *Bus) GetMetrics() Metrics {
	m := Metrics{
		Subscribers:         b.Len(),
		Published:           b.metrics.publishCount.Load(),
		Delivered:           b.metrics.deliveredCount.Load(),
		Failed:              b.metrics.failedCount.Load(),
		AvgProcessingTimeMs: float64(b.metrics.processingNs.Load()) / 1e6,
	}
	if b.observerPool != nil {
		m.EventsDropped = b.observerPool.Stats().Dropped
	}
	return m
}

// Health checks bus health for Kubernetes probes.
func (b *Bus) Health(ctx context.Context) HealthStatus {
	if b.closed.Load() {
		return HealthStatus{
			Status:    "unhealthy",
			Timestamp: b.clock.Now(),
			Message:   "bus is closed",
		}
	}

	metrics := b.GetMetrics()
	status := "healthy"

	// Degraded if more than 5% of deliveries failed.
	total := metrics.Delivered + metrics.Failed
	if metrics.Failed > 0 && total > 0 {
		if float64(metrics.Failed)/float64(total) > 0.05 {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:    status,
		Metrics:   metrics,
		Timestamp: b.clock.Now(),
	}
}

// Close stops accepting publishes and drains the observer pool. Idempotent.
func (b *Bus) Close(ctx context.Context) error {
	var closeErr error

	b.closeOnce.Do(func() {
		b.closed.Store(true)

		if b.observerPool != nil {
			timeout := 5 * time.Second
			if dl, ok := ctx.Deadline(); ok {
				timeout = time.Until(dl)
			}
			if err := b.observerPool.Close(timeout); err != nil {
				b.logger.Warn().Err(err).Msg("chatbus: observer pool shutdown timeout")
				closeErr = err
			}
		}
	})

	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (b *Bus) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	b.observers = append(b.observers, obs)
	b.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (b *Bus) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	b.observersMu.Lock()
	defer b.observersMu.Unlock()

	for i, o := range b.observers {
		if o == obs {
			b.observers = append(b.observers[:i], b.observers[i+1:]...)
			break
		}
	}
}

// notify dispatches e through the observer pool when one is configured,
// otherwise inline on the caller's goroutine.
func (b *Bus) notify(e Event) {
	b.observersMu.RLock()
	if len(b.observers) == 0 {
		b.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.observersMu.RUnlock()

	if b.observerPool != nil {
		if b.closed.Load() {
			return
		}
		b.observerPool.Notify(e, observers)
		return
	}
	for _, o := range observers {
		dispatchSafely(o, e)
	}
}

// recordProcessingTime keeps an exponential moving average of publish latency.
func (b *Bus) recordProcessingTime(ns int64) {
	const alpha = 0.2
	current := b.metrics.processingNs.Load()
	if current == 0 {
		b.metrics.processingNs.Store(ns)
		return
	}
	newAvg := int64(float64(ns)*alpha + float64(current)*(1-alpha))
	b.metrics.processingNs.Store(newAvg)
}

// describe gives a log label for a subscriber.
func describe(sub Subscriber) string {
	if s, ok := sub.(fmt.Stringer); ok {
		return s.String()
	}
	return sub.SubscriberID()
}
