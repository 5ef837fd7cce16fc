package config

import "time"

// Defaults applied before the config file, environment and flags.
const (
	defaultRPC          = "http://localhost:8545"
	defaultAlgorithm    = "fastest"
	defaultPollInterval = time.Second
	defaultFeedCount    = 10
	defaultBatchSize    = 5
	defaultMaxLookback  = 1000
	defaultBlocksToShow = 10
	defaultLogLevel     = "warn"

	// EnvPrefix prefixes environment overrides, e.g. W3SCAN_RPC or W3SCAN_FEED_COUNT.
	EnvPrefix = "W3SCAN"

	dirName       = ".w3scan"
	dirEnv        = EnvPrefix + "_CONFIG_DIR"
	configFile    = "config.json"
	contractsFile = "contracts.json"
)

// Timeout constants used across cmd.
const (
	RPCSelectTimeout = 10 * time.Second // benchmark across fallback RPCs
	ValidateTimeout  = 5 * time.Second  // single eth_chainId probe
	CommandTimeout   = 30 * time.Second // one-shot commands such as tx or block
)
