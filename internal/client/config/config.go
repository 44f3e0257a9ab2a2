package config

import "time"

// Config holds runtime settings for the promptvault client.
//
// Election timing follows the shared-store lease protocol: every process
// re-runs election each HeartbeatInterval, a lease older than LeaseTimeout is
// reclaimable, ElectionSettleDelay is the wait between the optimistic lease
// write and the verifying re-read, and ElectionJitter is the upper bound of
// the random delay before each attempt.
type Config struct {
	ServerEndpointAddr string
	DatabasePath       string

	HeartbeatInterval   time.Duration
	LeaseTimeout        time.Duration
	ElectionSettleDelay time.Duration
	ElectionJitter      time.Duration

	SyncInterval      time.Duration
	ManualSyncTimeout time.Duration

	// DebounceQuiet is how long the change router waits after the last
	// inbound remote event before firing a single "data changed" signal.
	DebounceQuiet time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DatabasePath = "promptvault.db"

	c.HeartbeatInterval = 5 * time.Second
	c.LeaseTimeout = 15 * time.Second
	c.ElectionSettleDelay = 100 * time.Millisecond
	c.ElectionJitter = 100 * time.Millisecond

	c.SyncInterval = 30 * time.Second
	c.ManualSyncTimeout = 15 * time.Second

	c.DebounceQuiet = 300 * time.Millisecond
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
