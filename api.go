package chatbus

import (
	"context"
)

// Subscriber is any addressable endpoint that receives published messages.
// Implementations decide locally whether a message is relevant to them.
type Subscriber interface {
	// SubscriberID is the stable key the registry deduplicates on.
	SubscriberID() string
	// OnMessageReceived is invoked synchronously for every publish.
	OnMessageReceived(ctx context.Context, msg Message) error
}

// Handler is a single delivery of msg to sub.
type Handler func(ctx context.Context, sub Subscriber, msg Message) error

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

// Publisher is the narrow surface MessageService depends on.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Observer receives bus lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// API represents the complete chatbus surface.
type API interface {
	Publisher
	Subscribe(sub Subscriber) bool
	Unsubscribe(sub Subscriber) bool
	Len() int
	Close(ctx context.Context) error
	GetMetrics() Metrics
	Health(ctx context.Context) HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var (
	_ API           = (*Bus)(nil)
	_ HealthChecker = (*Bus)(nil)
)
