package chatbus

import (
	"time"
)

// EventType enumerates internal lifecycle events for Observer pattern.
type EventType string

const (
	Subscribed        EventType = "subscribed"
	AlreadySubscribed EventType = "already_subscribed"
	Unsubscribed      EventType = "unsubscribed"
	NotSubscribed     EventType = "not_subscribed"
	PublishStart      EventType = "publish_start"
	PublishDone       EventType = "publish_done"
	Delivered         EventType = "delivered"
	DeliveryFailed    EventType = "delivery_failed"
)

// Event carries telemetry for observers.
type Event struct {
	Type         EventType
	SubscriberID string
	MessageID    string
	Sender       string
	Target       string
	Recipients   int
	Duration     time.Duration
	Err          error

	// Internal: attached for async dispatch
	observers []Observer
}

// FailurePolicy decides what Publish does when a subscriber fails.
type FailurePolicy int

const (
	// IsolateFailures invokes every subscriber and aggregates failures into a *DeliveryError.
	IsolateFailures FailurePolicy = iota
	// AbortOnFailure stops the fan-out at the first failing subscriber.
	AbortOnFailure
)

func (p FailurePolicy) String() string {
	switch p {
	case IsolateFailures:
		return "isolate"
	case AbortOnFailure:
		return "abort"
	default:
		return "unknown"
	}
}

// PoolStats returns telemetry about the observer pool.
type PoolStats struct {
	Dropped      uint64 // Events dropped due to full buffer
	Processed    uint64 // Events successfully processed
	ActiveEvents int    // Current queue depth
	Workers      int    // Number of dispatch goroutines
	BufferSize   int    // Channel capacity
}

// Metrics defines observable telemetry for the bus.
type Metrics struct {
	Subscribers         int
	Published           uint64
	Delivered           uint64
	Failed              uint64
	EventsDropped       uint64
	AvgProcessingTimeMs float64
}

// HealthStatus indicates bus health for Kubernetes probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
