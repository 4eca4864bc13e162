package redisroster

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/chatbus"
)

// RosterName is the backend name registered with chatbus.
const RosterName = "redis"

func init() {
	if err := chatbus.RegisterRoster(RosterName, func(group string, cfg map[string]any) (chatbus.Roster, error) {
		r, err := NewRoster(ConfigFromMap(cfg), group)
		if err != nil {
			return nil, err
		}
		return r, nil
	}); err != nil {
		panic(fmt.Errorf("chatbus: failed to register roster %q: %w", RosterName, err))
	}
}

// Roster implements chatbus.Roster on a single Redis set.
type Roster struct {
	client redis.Cmdable
	key    string

	// closer is set only when the roster owns its client.
	closer    func() error
	closeOnce sync.Once
}

var _ chatbus.Roster = (*Roster)(nil)

// NewRoster dials Redis with cfg and returns the roster of group.
func NewRoster(cfg Config, group string) (*Roster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 1,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:    tls.VersionTLS12,
			ServerName:    cfg.TLSServerName,
			Renegotiation: tls.RenegotiateNever,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client, cfg); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Roster{
		client: client,
		key:    KeyFor(cfg.KeyPrefix, group),
		closer: client.Close,
	}, nil
}

// NewRosterWithClient shares an existing client. Close leaves it open.
func NewRosterWithClient(client redis.Cmdable, prefix, group string) *Roster {
	return &Roster{client: client, key: KeyFor(prefix, group)}
}

// KeyFor returns the set key of group.
func KeyFor(prefix, group string) string {
	return prefix + strings.ToLower(group)
}

// Key returns the Redis key backing this roster.
func (r *Roster) Key() string { return r.key }

func (r *Roster) Add(ctx context.Context, name string) (bool, error) {
	n, err := r.client.SAdd(ctx, r.key, name).Result()
	if err != nil {
		return false, fmt.Errorf("redisroster: sadd %s: %w", r.key, err)
	}
	return n == 1, nil
}

func (r *Roster) Remove(ctx context.Context, name string) (bool, error) {
	n, err := r.client.SRem(ctx, r.key, name).Result()
	if err != nil {
		return false, fmt.Errorf("redisroster: srem %s: %w", r.key, err)
	}
	return n == 1, nil
}

func (r *Roster) Contains(ctx context.Context, name string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.key, name).Result()
	if err != nil {
		return false, fmt.Errorf("redisroster: sismember %s: %w", r.key, err)
	}
	return ok, nil
}

// Members returns the roster sorted by name; Redis sets are unordered.
func (r *Roster) Members(ctx context.Context) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redisroster: smembers %s: %w", r.key, err)
	}
	sort.Strings(members)
	return members, nil
}

// Close releases the client if the roster created it.
func (r *Roster) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.closer != nil {
			err = r.closer()
		}
	})
	return err
}

func ping(c *redis.Client, cfg Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}

	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}

// Open builds a roster for group through the chatbus roster registry.
func Open(cfg Config, group string) (chatbus.Roster, error) {
	return chatbus.NewRoster(RosterName, group, cfg.toMap())
}
