package chatbus

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/trickstertwo/xclock"
)

// Rule inspects a message before it is published. A non-nil error stops the send.
type Rule func(ctx context.Context, msg Message) error

// ServiceOption configures a MessageService.
type ServiceOption func(*MessageService)

// WithRules appends business rules evaluated in order before publish.
func WithRules(rules ...Rule) ServiceOption {
	return func(s *MessageService) {
		for _, r := range rules {
			if r != nil {
				s.rules = append(s.rules, r)
			}
		}
	}
}

// WithServiceClock sets the clock Send stamps messages with.
func WithServiceClock(c xclock.Clock) ServiceOption {
	return func(s *MessageService) {
		if c != nil {
			s.clock = c
		}
	}
}

// MessageService is the façade in front of a Publisher where business rules
// plug in. With no rules it forwards messages untouched.
type MessageService struct {
	publisher Publisher
	rules     []Rule
	clock     xclock.Clock
}

func NewMessageService(p Publisher, opts ...ServiceOption) *MessageService {
	s := &MessageService{publisher: p, clock: xclock.Default()}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// SendMessage applies the configured rules then publishes msg.
func (s *MessageService) SendMessage(ctx context.Context, msg Message) error {
	for _, rule := range s.rules {
		if err := rule(ctx, msg); err != nil {
			return err
		}
	}
	return s.publisher.Publish(ctx, msg)
}

// Send builds a message stamped with the service clock and sends it.
func (s *MessageService) Send(ctx context.Context, sender, target, body string) error {
	return s.SendMessage(ctx, NewMessage(sender, target, body, WithMessageClock(s.clock)))
}

var validate = validator.New()

type addressing struct {
	Sender string `validate:"required,max=256"`
	Target string `validate:"required,max=256"`
}

// ValidateAddressing rejects messages with an empty sender or target.
func ValidateAddressing() Rule {
	return func(_ context.Context, msg Message) error {
		if err := validate.Struct(addressing{Sender: msg.Sender(), Target: msg.Target()}); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		return nil
	}
}
