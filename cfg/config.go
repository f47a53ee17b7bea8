// Package cfg loads the on-disk TOML configuration for a mvent process and
// exposes CLI-flag overrides, mirroring how config is loaded elsewhere in
// the broader shared-memory IPC toolchain this package was lifted from.
package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// PoolConfiguration controls the shared-memory pool backing this process.
type PoolConfiguration struct {
	Name                 string `toml:"name"`
	DataDir              string `toml:"data_dir"`
	CapacityBytes        int64  `toml:"capacity_bytes"`
	EncryptionKeyHex     string `toml:"encryption_key_hex"`
	CompressionThreshold int    `toml:"compression_threshold_bytes"`
	DecodeCacheSize      int    `toml:"decode_cache_size"`
	SweepIntervalMS      int    `toml:"sweep_interval_ms"`
	LockTimeoutMS        int    `toml:"lock_timeout_ms"`
}

// WatchConfiguration controls the default snapshot-diff poll cadence used
// when a component doesn't bring its own watch.Watcher.
type WatchConfiguration struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// RouterConfiguration controls request/response rendezvous defaults.
type RouterConfiguration struct {
	CallTimeoutMS int `toml:"call_timeout_ms"`
}

// RoomsConfiguration controls the namespaced pub/sub key prefix.
type RoomsConfiguration struct {
	KeyPrefix string `toml:"key_prefix"`
}

// LoggingConfiguration controls logging behavior.
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration controls metrics exposure.
type PrometheusConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// Configuration is the main configuration structure for a mvent process.
type Configuration struct {
	NodeID uint64 `toml:"node_id"`

	Pool       PoolConfiguration       `toml:"pool"`
	Watch      WatchConfiguration      `toml:"watch"`
	Router     RouterConfiguration     `toml:"router"`
	Rooms      RoomsConfiguration      `toml:"rooms"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag    = flag.String("data-dir", "", "Data directory (overrides config)")
	NodeIDFlag     = flag.Uint64("node-id", 0, "Node ID (overrides config, 0=auto)")
)

// Config is the process-wide configuration, populated by Load.
var Config = &Configuration{
	NodeID: 0, // Auto-generate

	Pool: PoolConfiguration{
		Name:                 "mvent",
		DataDir:              "./mvent-data",
		CapacityBytes:        64 * 1024 * 1024,
		CompressionThreshold: 512,
		DecodeCacheSize:      1024,
		SweepIntervalMS:      1000,
		LockTimeoutMS:        2000,
	},

	Watch: WatchConfiguration{
		PollIntervalMS: 50,
	},

	Router: RouterConfiguration{
		CallTimeoutMS: 5000,
	},

	Rooms: RoomsConfiguration{
		KeyPrefix: "room/",
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
		Address: "0.0.0.0",
		Port:    9090,
	},
}

// Load loads configuration from file and applies CLI overrides.
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DataDirFlag != "" {
		Config.Pool.DataDir = *DataDirFlag
	}
	if *NodeIDFlag != 0 {
		Config.NodeID = *NodeIDFlag
	}

	if Config.NodeID == 0 {
		var err error
		Config.NodeID, err = generateNodeID()
		if err != nil {
			return fmt.Errorf("failed to generate node ID: %w", err)
		}
		log.Info().Uint64("node_id", Config.NodeID).Msg("Auto-generated node ID")
	}

	if err := os.MkdirAll(Config.Pool.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// generateNodeID creates a unique node ID based on machine ID, so that
// repeated runs on the same host reuse the same identity for
// Prometheus const labels without any coordination.
func generateNodeID() (uint64, error) {
	id, err := machineid.ProtectedID("mvent")
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64(), nil
}

// Validate checks configuration for errors.
func Validate() error {
	if Config.Pool.CapacityBytes < 4096 {
		return fmt.Errorf("pool capacity must be >= 4096 bytes")
	}

	if Config.Pool.CompressionThreshold < 0 {
		return fmt.Errorf("compression threshold must be >= 0")
	}

	if Config.Pool.DecodeCacheSize < 0 {
		return fmt.Errorf("decode cache size must be >= 0")
	}

	if Config.Pool.SweepIntervalMS < 0 {
		return fmt.Errorf("sweep interval must be >= 0")
	}

	if Config.Pool.LockTimeoutMS < 1 {
		return fmt.Errorf("lock timeout must be >= 1ms")
	}

	if Config.Watch.PollIntervalMS < 1 {
		return fmt.Errorf("watch poll interval must be >= 1ms")
	}

	if Config.Router.CallTimeoutMS < 1 {
		return fmt.Errorf("router call timeout must be >= 1ms")
	}

	if Config.Rooms.KeyPrefix == "" {
		return fmt.Errorf("rooms key prefix must not be empty")
	}

	if Config.Prometheus.Enabled && (Config.Prometheus.Port < 1 || Config.Prometheus.Port > 65535) {
		return fmt.Errorf("invalid prometheus port: %d", Config.Prometheus.Port)
	}

	switch Config.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	return nil
}

// SweepInterval returns Pool.SweepIntervalMS as a time.Duration.
func (c *PoolConfiguration) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMS) * time.Millisecond
}

// LockTimeout returns Pool.LockTimeoutMS as a time.Duration.
func (c *PoolConfiguration) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// PollInterval returns Watch.PollIntervalMS as a time.Duration.
func (c *WatchConfiguration) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// CallTimeout returns Router.CallTimeoutMS as a time.Duration.
func (c *RouterConfiguration) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}
