package config

import "time"

// Config holds all w3scan configuration.
type Config struct {
	RPC          string     `json:"rpc"           mapstructure:"rpc"`
	FallbackRPCs []string   `json:"fallback_rpcs" mapstructure:"fallback_rpcs"`
	RPCAlgorithm string     `json:"rpc_algorithm" mapstructure:"rpc_algorithm"` // "fastest" | "round-robin" | "failover"
	PollInterval string     `json:"poll_interval" mapstructure:"poll_interval"` // Go duration, e.g. "1s"
	Feed         FeedConfig `json:"feed"          mapstructure:"feed"`
	BlocksToShow int        `json:"blocks_to_show" mapstructure:"blocks_to_show"`
	LogLevel     string     `json:"log_level"     mapstructure:"log_level"`
	MetricsAddr  string     `json:"metrics_addr,omitempty" mapstructure:"metrics_addr"` // empty disables /metrics

	// internal: config dir path used for Save()
	configDir string
}

// FeedConfig holds the transaction feed defaults.
type FeedConfig struct {
	Count       int `json:"count"        mapstructure:"count"`
	BatchSize   int `json:"batch_size"   mapstructure:"batch_size"`
	MaxLookback int `json:"max_lookback" mapstructure:"max_lookback"`
}

// Interval returns PollInterval as a duration, falling back to the default
// when it is empty or invalid. Validate reports invalid values.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}
