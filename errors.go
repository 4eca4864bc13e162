package chatbus

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBusClosed                   = errors.New("chatbus: bus is closed")
	ErrNilSubscriber               = errors.New("chatbus: subscriber must not be nil")
	ErrHandlerPanic                = errors.New("chatbus: subscriber panic")
	ErrInvalidMessage              = errors.New("chatbus: invalid message")
	ErrObserverPoolShutdownTimeout = errors.New("chatbus: observer pool shutdown timeout")
	ErrNilRoster                   = errors.New("chatbus: roster must not be nil")
	ErrInvalidPolicy               = errors.New("chatbus: unknown failure policy")
)

type ErrUnknownRoster struct{ name string }

func (e ErrUnknownRoster) Error() string { return fmt.Sprintf("unknown roster backend: %s", e.name) }

// SubscriberFailure is one failed delivery.
type SubscriberFailure struct {
	SubscriberID string
	Err          error
}

func (f SubscriberFailure) Error() string {
	return fmt.Sprintf("subscriber %s: %v", f.SubscriberID, f.Err)
}

func (f SubscriberFailure) Unwrap() error { return f.Err }

// DeliveryError aggregates the failures of a single Publish.
type DeliveryError struct {
	MessageID string
	Failures  []SubscriberFailure
}

func (e *DeliveryError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("chatbus: delivery of %s failed for %d subscriber(s): %s",
		e.MessageID, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes each failure to errors.Is and errors.As.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
