package chatbus

import (
	"context"

	"github.com/google/uuid"
)

// registry is the ordered subscriber set. It is not safe for concurrent use;
// Bus guards it with its own lock.
type registry struct {
	order []Subscriber
	index map[string]int
}

func newRegistry() *registry {
	return &registry{index: make(map[string]int)}
}

// add appends sub unless its ID is already registered.
func (r *registry) add(sub Subscriber) bool {
	id := sub.SubscriberID()
	if _, ok := r.index[id]; ok {
		return false
	}
	r.index[id] = len(r.order)
	r.order = append(r.order, sub)
	return true
}

// remove deletes sub by ID, keeping the relative order of the rest.
func (r *registry) remove(sub Subscriber) bool {
	id := sub.SubscriberID()
	i, ok := r.index[id]
	if !ok {
		return false
	}
	r.order = append(r.order[:i], r.order[i+1:]...)
	delete(r.index, id)
	for j := i; j < len(r.order); j++ {
		r.index[r.order[j].SubscriberID()] = j
	}
	return true
}

func (r *registry) len() int { return len(r.order) }

// snapshot copies the current delivery order.
func (r *registry) snapshot() []Subscriber {
	if len(r.order) == 0 {
		return nil
	}
	out := make([]Subscriber, len(r.order))
	copy(out, r.order)
	return out
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc struct {
	id string
	fn func(ctx context.Context, msg Message) error
}

// NewSubscriberFunc wraps fn with a freshly generated ID.
func NewSubscriberFunc(fn func(ctx context.Context, msg Message) error) *SubscriberFunc {
	return &SubscriberFunc{id: uuid.NewString(), fn: fn}
}

func (s *SubscriberFunc) SubscriberID() string { return s.id }

func (s *SubscriberFunc) OnMessageReceived(ctx context.Context, msg Message) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, msg)
}

func (s *SubscriberFunc) String() string { return "SubscriberFunc(" + s.id + ")" }
