package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Mohsinsiddi/w3scan/internal/rpc"
)

// ErrUnknownKey is returned by Set for a key that is not a config setting.
var ErrUnknownKey = errors.New("unknown config key")

// Binding maps a command-line flag onto a config key. The flag only wins
// over the file and environment when it was set explicitly.
type Binding struct {
	Key  string
	Flag *pflag.Flag
}

// Load reads config from dir (created if missing) layered as
// defaults < config.json < W3SCAN_* environment < bound flags.
// dir defaults to ~/.w3scan.
func Load(dir string, flags ...Binding) (*Config, error) {
	if dir == "" {
		d, err := DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create config dir: %w", err)
	}

	v := newViper()
	path := filepath.Join(dir, configFile)
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	for _, b := range flags {
		if b.Flag == nil {
			continue
		}
		if err := v.BindPFlag(b.Key, b.Flag); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", b.Flag.Name, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.configDir = dir
	if cfg.FallbackRPCs == nil {
		cfg.FallbackRPCs = []string{}
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("rpc", defaultRPC)
	v.SetDefault("fallback_rpcs", []string{})
	v.SetDefault("rpc_algorithm", defaultAlgorithm)
	v.SetDefault("poll_interval", defaultPollInterval.String())
	v.SetDefault("feed.count", defaultFeedCount)
	v.SetDefault("feed.batch_size", defaultBatchSize)
	v.SetDefault("feed.max_lookback", defaultMaxLookback)
	v.SetDefault("blocks_to_show", defaultBlocksToShow)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("metrics_addr", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultDir returns $W3SCAN_CONFIG_DIR, or ~/.w3scan when it is unset.
func DefaultDir() (string, error) {
	if d := os.Getenv(dirEnv); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.configDir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.Path(), data, 0o600)
}

// Dir returns the config directory.
func (c *Config) Dir() string {
	return c.configDir
}

// Path returns the location of config.json.
func (c *Config) Path() string {
	return filepath.Join(c.configDir, configFile)
}

// ContractsPath returns the location of the ABI store.
func (c *Config) ContractsPath() string {
	return filepath.Join(c.configDir, contractsFile)
}

// RPCs returns the primary RPC followed by the fallbacks, without duplicates.
func (c *Config) RPCs() []string {
	return rpc.Candidates(c.RPC, c.FallbackRPCs)
}

// AddFallback appends a fallback RPC URL.
func (c *Config) AddFallback(url string) error {
	if err := rpc.CheckScheme(url); err != nil {
		return fmt.Errorf("RPC %s: %w", url, err)
	}
	if url == c.RPC || slices.Contains(c.FallbackRPCs, url) {
		return fmt.Errorf("RPC %s already configured", url)
	}
	c.FallbackRPCs = append(c.FallbackRPCs, url)
	return nil
}

// RemoveFallback removes a fallback RPC URL.
func (c *Config) RemoveFallback(url string) error {
	idx := slices.Index(c.FallbackRPCs, url)
	if idx == -1 {
		return fmt.Errorf("RPC %s is not a fallback", url)
	}
	c.FallbackRPCs = slices.Delete(c.FallbackRPCs, idx, idx+1)
	return nil
}

// Keys lists every settable key in display order.
func Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key rendered as text.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "rpc":
		return c.RPC, nil
	case "fallback_rpcs":
		return strings.Join(c.FallbackRPCs, ","), nil
	case "rpc_algorithm":
		return c.RPCAlgorithm, nil
	case "poll_interval":
		return c.PollInterval, nil
	case "feed.count":
		return strconv.Itoa(c.Feed.Count), nil
	case "feed.batch_size":
		return strconv.Itoa(c.Feed.BatchSize), nil
	case "feed.max_lookback":
		return strconv.Itoa(c.Feed.MaxLookback), nil
	case "blocks_to_show":
		return strconv.Itoa(c.BlocksToShow), nil
	case "log_level":
		return c.LogLevel, nil
	case "metrics_addr":
		return c.MetricsAddr, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
}

var setters = map[string]func(c *Config, value string) error{
	"rpc":           func(c *Config, v string) error { c.RPC = v; return nil },
	"rpc_algorithm": func(c *Config, v string) error { c.RPCAlgorithm = v; return nil },
	"poll_interval": func(c *Config, v string) error { c.PollInterval = v; return nil },
	"log_level":     func(c *Config, v string) error { c.LogLevel = v; return nil },
	"metrics_addr":  func(c *Config, v string) error { c.MetricsAddr = v; return nil },
	"fallback_rpcs": func(c *Config, v string) error {
		c.FallbackRPCs = []string{}
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				c.FallbackRPCs = append(c.FallbackRPCs, u)
			}
		}
		return nil
	},
	"feed.count":        intSetter(func(c *Config) *int { return &c.Feed.Count }),
	"feed.batch_size":   intSetter(func(c *Config) *int { return &c.Feed.BatchSize }),
	"feed.max_lookback": intSetter(func(c *Config) *int { return &c.Feed.MaxLookback }),
	"blocks_to_show":    intSetter(func(c *Config) *int { return &c.BlocksToShow }),
}

func intSetter(field func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%q is not an integer", v)
		}
		*field(c) = n
		return nil
	}
}

// Set assigns value to key and validates the result. On error c is unchanged.
func (c *Config) Set(key, value string) error {
	set, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	next := *c
	next.FallbackRPCs = slices.Clone(c.FallbackRPCs)
	if err := set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Validate checks every setting and returns all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if err := rpc.CheckScheme(c.RPC); err != nil {
		result = multierror.Append(result, fmt.Errorf("rpc %q: %w", c.RPC, err))
	}
	for _, u := range c.FallbackRPCs {
		if err := rpc.CheckScheme(u); err != nil {
			result = multierror.Append(result, fmt.Errorf("fallback_rpcs %q: %w", u, err))
		}
	}
	if _, err := rpc.ParseAlgorithm(c.RPCAlgorithm); err != nil {
		result = multierror.Append(result, fmt.Errorf("rpc_algorithm: %w", err))
	}
	if d, err := time.ParseDuration(c.PollInterval); err != nil || d <= 0 {
		result = multierror.Append(result, fmt.Errorf("poll_interval %q: must be a positive duration", c.PollInterval))
	}
	if c.Feed.Count < 0 {
		result = multierror.Append(result, fmt.Errorf("feed.count %d: must not be negative", c.Feed.Count))
	}
	if c.Feed.BatchSize < 1 {
		result = multierror.Append(result, fmt.Errorf("feed.batch_size %d: must be at least 1", c.Feed.BatchSize))
	}
	if c.Feed.MaxLookback < 0 {
		result = multierror.Append(result, fmt.Errorf("feed.max_lookback %d: must not be negative", c.Feed.MaxLookback))
	}
	if c.BlocksToShow < 0 {
		result = multierror.Append(result, fmt.Errorf("blocks_to_show %d: must not be negative", c.BlocksToShow))
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
			result = multierror.Append(result, fmt.Errorf("log_level: %w", err))
		}
	}

	return result.ErrorOrNil()
}
