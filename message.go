package chatbus

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
)

// Broadcast is the reserved target every user endpoint treats as addressed to itself.
const Broadcast = "ALL"

// renderLayout is the timestamp layout used by Message.String.
const renderLayout = "2006-01-02 15:04:05"

// Message is one addressed chat message. It is a value type: fields are only
// reachable through accessors, so a delivered Message cannot be altered by a subscriber.
type Message struct {
	id        string
	sender    string
	target    string
	body      string
	createdAt time.Time
}

// MessageOption customizes NewMessage.
type MessageOption func(*messageConfig)

type messageConfig struct {
	createdAt time.Time
	clock     xclock.Clock
}

// WithCreatedAt pins the creation timestamp instead of reading the clock.
func WithCreatedAt(t time.Time) MessageOption {
	return func(c *messageConfig) { c.createdAt = t }
}

// WithMessageClock reads the creation timestamp from c (default: xclock.Default()).
func WithMessageClock(c xclock.Clock) MessageOption {
	return func(mc *messageConfig) {
		if c != nil {
			mc.clock = c
		}
	}
}

// NewMessage builds a Message. Sender and target are not validated; see
// ValidateAddressing for an opt-in service rule.
func NewMessage(sender, target, body string, opts ...MessageOption) Message {
	var cfg messageConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}

	createdAt := cfg.createdAt
	if createdAt.IsZero() {
		clk := cfg.clock
		if clk == nil {
			clk = xclock.Default()
		}
		createdAt = clk.Now()
	}

	return Message{
		id:        uuid.NewString(),
		sender:    sender,
		target:    target,
		body:      body,
		createdAt: createdAt,
	}
}

func (m Message) ID() string           { return m.id }
func (m Message) Sender() string       { return m.sender }
func (m Message) Target() string       { return m.target }
func (m Message) Body() string         { return m.body }
func (m Message) CreatedAt() time.Time { return m.createdAt }

// IsBroadcast reports whether the message targets ALL.
func (m Message) IsBroadcast() bool { return SameIdentifier(m.target, Broadcast) }

// AddressedTo reports whether the target equals name, ignoring case.
func (m Message) AddressedTo(name string) bool { return SameIdentifier(m.target, name) }

// String renders "[YYYY-MM-DD HH:MM:SS] sender -> target: body".
func (m Message) String() string {
	return fmt.Sprintf("[%s] %s -> %s: %s", m.createdAt.Format(renderLayout), m.sender, m.target, m.body)
}

// SameIdentifier compares user names, group names and the broadcast token.
func SameIdentifier(a, b string) bool {
	return strings.EqualFold(a, b)
}
