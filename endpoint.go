package chatbus

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/trickstertwo/xlog"
)

// EndpointOption configures UserEndpoint and GroupEndpoint.
type EndpointOption func(*endpointConfig)

type endpointConfig struct {
	out    io.Writer
	logger *xlog.Logger
	roster Roster
	gate   bool
}

// WithOutput sets where matching messages are rendered (default: os.Stdout).
func WithOutput(w io.Writer) EndpointOption {
	return func(c *endpointConfig) {
		if w != nil {
			c.out = w
		}
	}
}

// WithEndpointLogger sets the logger used for roster bookkeeping reports.
func WithEndpointLogger(l *xlog.Logger) EndpointOption {
	return func(c *endpointConfig) { c.logger = l }
}

// WithRoster backs a group's member roster with r. Ignored by user endpoints.
func WithRoster(r Roster) EndpointOption {
	return func(c *endpointConfig) { c.roster = r }
}

// WithMembershipGate makes a group render only messages whose sender is on
// its roster. Off by default: a group matches on its name alone.
func WithMembershipGate() EndpointOption {
	return func(c *endpointConfig) { c.gate = true }
}

func newEndpointConfig(opts []EndpointOption) endpointConfig {
	cfg := endpointConfig{out: os.Stdout}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = xlog.Default()
	}
	return cfg
}

// renderer serializes writes to a shared output.
type renderer struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *renderer) render(label, name string, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintf(r.out, "(%s %s) %s\n", label, name, msg)
	return err
}

// UserEndpoint renders messages addressed to its user name or to ALL.
type UserEndpoint struct {
	id   string
	name string
	r    *renderer
}

var _ Subscriber = (*UserEndpoint)(nil)

func NewUserEndpoint(name string, opts ...EndpointOption) *UserEndpoint {
	cfg := newEndpointConfig(opts)
	return &UserEndpoint{
		id:   uuid.NewString(),
		name: name,
		r:    &renderer{out: cfg.out},
	}
}

func (u *UserEndpoint) SubscriberID() string { return u.id }
func (u *UserEndpoint) Name() string         { return u.name }

// Accepts reports whether msg is addressed to this user.
func (u *UserEndpoint) Accepts(msg Message) bool {
	return msg.AddressedTo(u.name) || msg.IsBroadcast()
}

func (u *UserEndpoint) OnMessageReceived(_ context.Context, msg Message) error {
	if !u.Accepts(msg) {
		return nil
	}
	return u.r.render("User", u.name, msg)
}

func (u *UserEndpoint) String() string { return "UserEndpoint(" + u.name + ")" }

// GroupEndpoint renders messages addressed to its group name. Its roster is
// bookkeeping only unless WithMembershipGate is set.
type GroupEndpoint struct {
	id     string
	name   string
	r      *renderer
	roster Roster
	gate   bool
	logger *xlog.Logger
}

var _ Subscriber = (*GroupEndpoint)(nil)

func NewGroupEndpoint(name string, opts ...EndpointOption) *GroupEndpoint {
	cfg := newEndpointConfig(opts)
	roster := cfg.roster
	if roster == nil {
		roster = NewMemoryRoster()
	}
	return &GroupEndpoint{
		id:     uuid.NewString(),
		name:   name,
		r:      &renderer{out: cfg.out},
		roster: roster,
		gate:   cfg.gate,
		logger: cfg.logger,
	}
}

func (g *GroupEndpoint) SubscriberID() string { return g.id }
func (g *GroupEndpoint) Name() string         { return g.name }

// AddMember inserts name. An existing member is reported, not an error;
// the error return carries roster backend failures only.
func (g *GroupEndpoint) AddMember(ctx context.Context, name string) (bool, error) {
	added, err := g.roster.Add(ctx, name)
	if err != nil {
		return false, fmt.Errorf("group %s: add member %q: %w", g.name, name, err)
	}
	if !added {
		g.logger.Info().Str("group", g.name).Str("member", name).Msg("chatbus: already a group member")
		return false, nil
	}
	g.logger.Info().Str("group", g.name).Str("member", name).Msg("chatbus: member added to group")
	return true, nil
}

// RemoveMember deletes name; removing a non-member is a no-op.
func (g *GroupEndpoint) RemoveMember(ctx context.Context, name string) (bool, error) {
	removed, err := g.roster.Remove(ctx, name)
	if err != nil {
		return false, fmt.Errorf("group %s: remove member %q: %w", g.name, name, err)
	}
	if removed {
		g.logger.Info().Str("group", g.name).Str("member", name).Msg("chatbus: member removed from group")
	}
	return removed, nil
}

func (g *GroupEndpoint) HasMember(ctx context.Context, name string) (bool, error) {
	return g.roster.Contains(ctx, name)
}

func (g *GroupEndpoint) Members(ctx context.Context) ([]string, error) {
	return g.roster.Members(ctx)
}

// Accepts reports whether msg targets this group. The roster is not consulted.
func (g *GroupEndpoint) Accepts(msg Message) bool {
	return msg.AddressedTo(g.name)
}

func (g *GroupEndpoint) OnMessageReceived(ctx context.Context, msg Message) error {
	if !g.Accepts(msg) {
		return nil
	}
	if g.gate {
		ok, err := g.roster.Contains(ctx, msg.Sender())
		if err != nil {
			return fmt.Errorf("group %s: membership check: %w", g.name, err)
		}
		if !ok {
			loggerOr(ctx, g.logger).Debug().
				Str("group", g.name).
				Str("sender", msg.Sender()).
				Msg("chatbus: sender not a group member")
			return nil
		}
	}
	return g.r.render("Group", g.name, msg)
}

func (g *GroupEndpoint) String() string { return "GroupEndpoint(" + g.name + ")" }
