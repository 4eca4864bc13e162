package chatbus

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver is an Adapter that emits bus events via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("subscriber", e.SubscriberID),
		xlog.Str("message_id", e.MessageID),
		xlog.Str("target", e.Target),
	)
	switch e.Type {
	case DeliveryFailed:
		ev.Warn().Err(e.Err).Msg("chatbus event")
	case PublishDone:
		if e.Err != nil {
			ev.Warn().Err(e.Err).Msg("chatbus event")
			return
		}
		ev.With(xlog.Dur("duration", e.Duration)).Debug().Msg("chatbus event")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		ev.Debug().Msg("chatbus event")
	}
}

// dispatchSafely calls obs, swallowing observer panics.
func dispatchSafely(obs Observer, e Event) {
	if obs == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	obs.OnEvent(e)
}
