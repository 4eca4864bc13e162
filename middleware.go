package chatbus

import (
	"context"
	"fmt"
	"time"

	"github.com/trickstertwo/xlog"
)

// RecoveryMiddleware prevents a panicking subscriber from aborting the fan-out
// and converts the panic into an error wrapping ErrHandlerPanic.
func RecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, sub Subscriber, msg Message) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
				}
			}()
			return next(ctx, sub, msg)
		}
	}
}

// LoggingMiddleware emits a debug line around every delivery.
func LoggingMiddleware(l *xlog.Logger) Middleware {
	return func(next Handler) Handler {
		if l == nil {
			return next
		}
		return func(ctx context.Context, sub Subscriber, msg Message) error {
			start := time.Now()
			err := next(ctx, sub, msg)
			if err != nil {
				l.Warn().
					Str("subscriber", sub.SubscriberID()).
					Str("message_id", msg.ID()).
					Dur("dur", time.Since(start)).
					Err(err).
					Msg("chatbus: delivery failed")
				return err
			}
			l.Debug().
				Str("subscriber", sub.SubscriberID()).
				Str("message_id", msg.ID()).
				Str("target", msg.Target()).
				Dur("dur", time.Since(start)).
				Msg("chatbus: delivery")
			return nil
		}
	}
}

// Chain composes middlewares around a handler in order.
func Chain(h Handler, mws ...Middleware) Handler {
	if len(mws) == 0 {
		return h
	}
	wrapped := h
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}

// deliver is the innermost Handler.
func deliver(ctx context.Context, sub Subscriber, msg Message) error {
	return sub.OnMessageReceived(ctx, msg)
}
