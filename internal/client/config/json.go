package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/promptvault/internal/flagx"
	"github.com/dmitrijs2005/promptvault/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds. Zero values leave the runtime Config untouched.
type JsonConfig struct {
	ServerEndpointAddr string `json:"server_endpoint_addr"`
	DatabasePath       string `json:"database_path"`

	HeartbeatInterval   timex.Duration `json:"heartbeat_interval"`
	LeaseTimeout        timex.Duration `json:"lease_timeout"`
	ElectionSettleDelay timex.Duration `json:"election_settle_delay"`
	ElectionJitter      timex.Duration `json:"election_jitter"`

	SyncInterval      timex.Duration `json:"sync_interval"`
	ManualSyncTimeout timex.Duration `json:"manual_sync_timeout"`
	DebounceQuiet     timex.Duration `json:"debounce_quiet"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags; when absent, nothing is loaded.
// Panics on read or unmarshal errors (caller should recover if desired).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.HeartbeatInterval.Duration > 0 {
		cfg.HeartbeatInterval = jc.HeartbeatInterval.Duration
	}
	if jc.LeaseTimeout.Duration > 0 {
		cfg.LeaseTimeout = jc.LeaseTimeout.Duration
	}
	if jc.ElectionSettleDelay.Duration > 0 {
		cfg.ElectionSettleDelay = jc.ElectionSettleDelay.Duration
	}
	if jc.ElectionJitter.Duration > 0 {
		cfg.ElectionJitter = jc.ElectionJitter.Duration
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.ManualSyncTimeout.Duration > 0 {
		cfg.ManualSyncTimeout = jc.ManualSyncTimeout.Duration
	}
	if jc.DebounceQuiet.Duration > 0 {
		cfg.DebounceQuiet = jc.DebounceQuiet.Duration
	}
}
