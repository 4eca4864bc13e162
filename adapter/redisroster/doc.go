// Package redisroster stores chatbus group rosters in Redis sets.
//
// Roster backend name: "redis"
//
// Config keys:
// - addr: "host:port" (default "127.0.0.1:6379")
// - username, password, db
// - tls, tls_server_name
// - key_prefix: prefix for set keys (default "chatbus:group:")
// - dial_timeout: connect/ping timeout (default 2s)
//
// Each group maps to one set, keyed by the lower-cased group name so that
// "Developers" and "developers" share a roster, matching delivery semantics.
//
// Example:
//
//	import _ "github.com/trickstertwo/chatbus/adapter/redisroster"
//
//	roster, err := chatbus.NewRoster(redisroster.RosterName, "Developers", map[string]any{
//	    "addr":       "localhost:6379",
//	    "key_prefix": "chat:group:",
//	})
//	if err != nil {
//	    return err
//	}
//	dev := chatbus.NewGroupEndpoint("Developers", chatbus.WithRoster(roster))
package redisroster
