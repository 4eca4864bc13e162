package chatbus

import (
	"context"
	"errors"
	"sync"
)

// Roster is the storage Strategy for a group's member names. Membership is
// exact-match; only delivery filtering is case-insensitive.
type Roster interface {
	// Add inserts name and reports whether it was absent.
	Add(ctx context.Context, name string) (bool, error)
	// Remove deletes name and reports whether it was present.
	Remove(ctx context.Context, name string) (bool, error)
	Contains(ctx context.Context, name string) (bool, error)
	// Members lists the current names.
	Members(ctx context.Context) ([]string, error)
}

// RosterFactory constructs a roster for group from a config blob.
type RosterFactory func(group string, cfg map[string]any) (Roster, error)

// MemoryRosterName is the built-in backend used when none is configured.
const MemoryRosterName = "memory"

var (
	rosterRegistryMu sync.RWMutex
	rosterRegistry   = map[string]RosterFactory{
		MemoryRosterName: func(string, map[string]any) (Roster, error) { return NewMemoryRoster(), nil },
	}
)

// RegisterRoster registers a roster backend.
func RegisterRoster(name string, factory RosterFactory) error {
	if name == "" {
		return errors.New("roster name must not be empty")
	}
	if factory == nil {
		return errors.New("roster factory must not be nil")
	}
	rosterRegistryMu.Lock()
	rosterRegistry[name] = factory
	rosterRegistryMu.Unlock()
	return nil
}

// NewRoster constructs a roster for group by backend name.
func NewRoster(name, group string, cfg map[string]any) (Roster, error) {
	rosterRegistryMu.RLock()
	f, ok := rosterRegistry[name]
	rosterRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownRoster{name: name}
	}
	r, err := f(group, cfg)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNilRoster
	}
	return r, nil
}

// MemoryRoster keeps members in insertion order.
type MemoryRoster struct {
	mu      sync.RWMutex
	members []string
}

var _ Roster = (*MemoryRoster)(nil)

func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{}
}

func (r *MemoryRoster) Add(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(name) >= 0 {
		return false, nil
	}
	r.members = append(r.members, name)
	return true, nil
}

func (r *MemoryRoster) Remove(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(name)
	if i < 0 {
		return false, nil
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	return true, nil
}

func (r *MemoryRoster) Contains(_ context.Context, name string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(name) >= 0, nil
}

func (r *MemoryRoster) Members(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out, nil
}

func (r *MemoryRoster) indexOf(name string) int {
	for i, m := range r.members {
		if m == name {
			return i
		}
	}
	return -1
}
