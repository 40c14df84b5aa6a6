// Package config defines the node's runtime configuration and wires it
// to cobra flags with environment-variable fallbacks, in the style the
// rest of the example pack registers flags.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rfmesh/rfmesh/internal/common"
)

// Config is the full set of knobs cmd/rfmeshd exposes.
type Config struct {
	Nickname   string
	DataDir    string
	ListenAddr string // ws:// address this node's simulated radio listens on
	AdminAddr  string // admin HTTP status surface bind address

	SessionLifetime time.Duration // noise.Manager eviction window for a disconnected peer's session
	RouteExpiry     time.Duration // routing table entry expiry for non-direct routes
	SeenCacheMax    int           // routing dedup cache size before an oldest-half eviction sweep
}

// RegisterFlags binds cfg's fields to cmd's persistent flags, defaulting
// from environment variables the way the teacher's own CLI entry points
// do (env var read once at registration time, flag wins if set
// explicitly).
func RegisterFlags(cmd *cobra.Command, cfg *Config) {
	flags := cmd.PersistentFlags()

	flags.StringVar(&cfg.Nickname, "nickname", envOr("RFMESH_NICKNAME", ""), "display nickname for this node (env: RFMESH_NICKNAME)")
	flags.StringVar(&cfg.DataDir, "data-dir", envOr("RFMESH_DATA_DIR", defaultDataDir()), "directory for identity, trust and queue state (env: RFMESH_DATA_DIR)")
	flags.StringVar(&cfg.ListenAddr, "listen-addr", envOr("RFMESH_LISTEN_ADDR", ":7447"), "bind address for the simulated radio transport (env: RFMESH_LISTEN_ADDR)")
	flags.StringVar(&cfg.AdminAddr, "admin-addr", envOr("RFMESH_ADMIN_ADDR", "127.0.0.1:7448"), "bind address for the read-only admin HTTP surface (env: RFMESH_ADMIN_ADDR)")

	flags.DurationVar(&cfg.SessionLifetime, "session-lifetime", envOrDuration("RFMESH_SESSION_LIFETIME", common.SessionLifetime), "how long a Noise session survives after its peer disconnects (env: RFMESH_SESSION_LIFETIME)")
	flags.DurationVar(&cfg.RouteExpiry, "route-expiry", envOrDuration("RFMESH_ROUTE_EXPIRY", common.RouteExpiry), "how long a learned (non-direct) route is kept without reconfirmation (env: RFMESH_ROUTE_EXPIRY)")
	flags.IntVar(&cfg.SeenCacheMax, "seen-cache-max", envOrInt("RFMESH_SEEN_CACHE_MAX", common.SeenCacheMax), "dedup cache size before the oldest half is evicted (env: RFMESH_SEEN_CACHE_MAX)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envOrInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rfmesh"
	}
	return home + "/.rfmesh"
}
