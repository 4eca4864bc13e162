package redisroster

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/chatbus"
)

// testConfig points at CHATBUS_REDIS_ADDR (default 127.0.0.1:6379) with a
// per-test key prefix so runs never collide.
func testConfig(t *testing.T) Config {
	cfg := Defaults()
	if addr := os.Getenv("CHATBUS_REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Password = os.Getenv("CHATBUS_REDIS_PASSWORD")
	cfg.KeyPrefix = fmt.Sprintf("chatbus:test:%s:", uuid.NewString())
	return cfg
}

// redisClient returns a connected client or skips the test.
func redisClient(t *testing.T, cfg Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func cleanupKey(client *redis.Client, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = client.Del(ctx, key).Err()
}

func TestConfigFromMap_Defaults(t *testing.T) {
	cfg := ConfigFromMap(nil)
	assert.Equal(t, Defaults(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestConfigFromMap_Overrides(t *testing.T) {
	cfg := ConfigFromMap(map[string]any{
		"addr":            "redis:6380",
		"username":        "chat",
		"password":        "secret",
		"db":              float64(3),
		"tls":             true,
		"tls_server_name": "redis.internal",
		"dial_timeout":    "750ms",
		"key_prefix":      "chat:group:",
	})

	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, "chat", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, 3, cfg.DB)
	assert.True(t, cfg.TLS)
	assert.Equal(t, "redis.internal", cfg.TLSServerName)
	assert.Equal(t, 750*time.Millisecond, cfg.DialTimeout)
	assert.Equal(t, "chat:group:", cfg.KeyPrefix)
}

func TestConfig_MapRoundTrip(t *testing.T) {
	cfg := Defaults()
	cfg.Addr = "10.0.0.1:6379"
	cfg.DB = 2
	cfg.KeyPrefix = "x:"
	assert.Equal(t, cfg, ConfigFromMap(cfg.toMap()))
}

func TestConfig_Validate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":   func(c *Config) { c.Addr = "" },
		"negative db":  func(c *Config) { c.DB = -1 },
		"zero timeout": func(c *Config) { c.DialTimeout = 0 },
		"empty prefix": func(c *Config) { c.KeyPrefix = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestKeyFor_IsCaseInsensitive(t *testing.T) {
	assert.Equal(t, "p:developers", KeyFor("p:", "Developers"))
	assert.Equal(t, KeyFor("p:", "DEVELOPERS"), KeyFor("p:", "developers"))
}

func TestNewRoster_InvalidConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Addr = ""
	_, err := NewRoster(cfg, "Developers")
	require.Error(t, err)
}

func TestRoster_AddRemoveMembers(t *testing.T) {
	cfg := testConfig(t)
	client := redisClient(t, cfg)
	defer client.Close()

	r := NewRosterWithClient(client, cfg.KeyPrefix, "Developers")
	defer cleanupKey(client, r.Key())
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	added, err := r.Add(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.Add(ctx, "Alice")
	require.NoError(t, err)
	assert.False(t, added, "second add must be a no-op")

	_, err = r.Add(ctx, "Bob")
	require.NoError(t, err)

	members, err := r.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, members)

	ok, err := r.Contains(ctx, "Bob")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := r.Remove(ctx, "Bob")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = r.Remove(ctx, "Bob")
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err = r.Contains(ctx, "Bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_ThroughRegistry(t *testing.T) {
	cfg := testConfig(t)
	client := redisClient(t, cfg)
	defer client.Close()
	defer cleanupKey(client, KeyFor(cfg.KeyPrefix, "Developers"))

	roster, err := Open(cfg, "Developers")
	require.NoError(t, err)
	if c, ok := roster.(interface{ Close() error }); ok {
		defer c.Close()
	}

	ctx := context.Background()
	var out bytes.Buffer
	dev := chatbus.NewGroupEndpoint("Developers", chatbus.WithRoster(roster), chatbus.WithOutput(&out))

	added, err := dev.AddMember(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, added)

	// A second roster on the same group name sees the same set.
	other := NewRosterWithClient(client, cfg.KeyPrefix, "developers")
	ok, err := other.Contains(ctx, "Alice")
	require.NoError(t, err)
	assert.True(t, ok)

	msg := chatbus.NewMessage("Bob", "Developers", "Hallo Team")
	require.NoError(t, dev.OnMessageReceived(ctx, msg))
	assert.Contains(t, out.String(), "(Group Developers)")
}
