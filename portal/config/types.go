package config

// ConnectionsConfig is the static connectivity configuration: which chains exist, which bridge
// contracts are deployed on them and which tokens are connected where.
//
//	mainnet = "mainnet"
//
//	[[chain]]
//	name = "chain-a"
//	chain_id = 1482601649
//	rpcs = ["https://rpc.chain-a.example"]
//	[chain.contracts]
//	token_manager_erc20 = "0xD2aAA00500000000000000000000000000000000"
//
//	[[token]]
//	keyname = "usdc"
//	type = "erc20"
//	origin_chain = "mainnet"
//	symbol = "USDC"
//	decimals = 6
//	[[token.connection]]
//	chain = "chain-a"
//	address = "0x..."
//	clone = true
//	wrapper = "0x..."
//	hubs = { "chain-b" = "europa" }
type ConnectionsConfig struct {
	Mainnet string        `toml:"mainnet" json:"mainnet"`
	Chains  []ChainConfig `toml:"chain" json:"chains"`
	Tokens  []TokenConfig `toml:"token" json:"tokens"`
}

// ChainConfig describes one chain and its bridge contracts.
type ChainConfig struct {
	Name      string          `toml:"name" json:"name"`
	ChainID   int64           `toml:"chain_id" json:"chain_id"`
	RPCs      []string        `toml:"rpcs" json:"rpcs"`
	Explorer  string          `toml:"explorer_url,omitempty" json:"explorer_url,omitempty"`
	Contracts ContractsConfig `toml:"contracts" json:"contracts"`
}

// ContractsConfig holds hex addresses of the bridge contracts on a chain. Unused entries stay empty.
type ContractsConfig struct {
	DepositBoxEth        string `toml:"deposit_box_eth,omitempty" json:"deposit_box_eth,omitempty"`
	DepositBoxERC20      string `toml:"deposit_box_erc20,omitempty" json:"deposit_box_erc20,omitempty"`
	DepositBoxERC721     string `toml:"deposit_box_erc721,omitempty" json:"deposit_box_erc721,omitempty"`
	DepositBoxERC721Meta string `toml:"deposit_box_erc721_meta,omitempty" json:"deposit_box_erc721_meta,omitempty"`
	DepositBoxERC1155    string `toml:"deposit_box_erc1155,omitempty" json:"deposit_box_erc1155,omitempty"`
	CommunityPool        string `toml:"community_pool,omitempty" json:"community_pool,omitempty"`

	TokenManagerEth        string `toml:"token_manager_eth,omitempty" json:"token_manager_eth,omitempty"`
	TokenManagerERC20      string `toml:"token_manager_erc20,omitempty" json:"token_manager_erc20,omitempty"`
	TokenManagerERC721     string `toml:"token_manager_erc721,omitempty" json:"token_manager_erc721,omitempty"`
	TokenManagerERC721Meta string `toml:"token_manager_erc721_meta,omitempty" json:"token_manager_erc721_meta,omitempty"`
	TokenManagerERC1155    string `toml:"token_manager_erc1155,omitempty" json:"token_manager_erc1155,omitempty"`
	CommunityLocker        string `toml:"community_locker,omitempty" json:"community_locker,omitempty"`
	EthERC20               string `toml:"eth_erc20,omitempty" json:"eth_erc20,omitempty"`
}

// TokenConfig describes a token and the chains it is connected to.
type TokenConfig struct {
	Keyname     string             `toml:"keyname" json:"keyname"`
	Type        string             `toml:"type" json:"type"`
	OriginChain string             `toml:"origin_chain" json:"origin_chain"`
	Symbol      string             `toml:"symbol" json:"symbol"`
	Name        string             `toml:"name" json:"name"`
	Decimals    int32              `toml:"decimals" json:"decimals"`
	Icon        string             `toml:"icon,omitempty" json:"icon,omitempty"`
	Connections []ConnectionConfig `toml:"connection" json:"connections"`
}

// ConnectionConfig is a token's entry on one chain.
type ConnectionConfig struct {
	Chain   string `toml:"chain" json:"chain"`
	Address string `toml:"address,omitempty" json:"address,omitempty"`
	Clone   bool   `toml:"clone,omitempty" json:"clone,omitempty"`
	Wrapper string `toml:"wrapper,omitempty" json:"wrapper,omitempty"`
	// Hubs maps destination chain names to the hub chain the transfer routes through.
	Hubs map[string]string `toml:"hubs,omitempty" json:"hubs,omitempty"`
}

// PortalConfig is the service configuration of the orchestrator process.
type PortalConfig struct {
	// http configs
	Port int    `mapstructure:"port" toml:"port"`
	Host string `mapstructure:"host" toml:"host"`

	// CORS configs
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `mapstructure:"rate_per_minute" toml:"rate_per_minute"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests" toml:"max_concurrent_requests"`

	// connectivity config, a local path or a go-getter source
	ConnectionsSource string `mapstructure:"connections_source" toml:"connections_source"`

	// polling
	WaitIntervalSeconds    int `mapstructure:"wait_interval_seconds" toml:"wait_interval_seconds"`
	WaitMaxIterations      int `mapstructure:"wait_max_iterations" toml:"wait_max_iterations"`
	PoolRefreshSeconds     int `mapstructure:"pool_refresh_seconds" toml:"pool_refresh_seconds"`
	RechargeMaxIterations  int `mapstructure:"recharge_max_iterations" toml:"recharge_max_iterations"`
	NetworkSwitchBackoffMs int `mapstructure:"network_switch_backoff_ms" toml:"network_switch_backoff_ms"`

	// community pool
	RechargeMultiplier string `mapstructure:"recharge_multiplier" toml:"recharge_multiplier"`
	MinRechargeWei     string `mapstructure:"min_recharge_wei" toml:"min_recharge_wei"`

	// OpenTelemetry configs
	ServiceName     string `mapstructure:"service_name" toml:"service_name"`
	ServiceVersion  string `mapstructure:"service_version" toml:"service_version"`
	Environment     string `mapstructure:"environment" toml:"environment"`
	EnableTracing   bool   `mapstructure:"enable_tracing" toml:"enable_tracing"`
	UseOTLPTraces   bool   `mapstructure:"use_otlp_traces" toml:"use_otlp_traces"`
	OTLPTracesURL   string `mapstructure:"otlp_traces_url" toml:"otlp_traces_url"`
	EnableMetrics   bool   `mapstructure:"enable_metrics" toml:"enable_metrics"`
	UsePrometheus   bool   `mapstructure:"use_prometheus" toml:"use_prometheus"`
	UseOTLPMetrics  bool   `mapstructure:"use_otlp_metrics" toml:"use_otlp_metrics"`
	OTLPMetricsURL  string `mapstructure:"otlp_metrics_url" toml:"otlp_metrics_url"`
	EnableLogs      bool   `mapstructure:"enable_logs" toml:"enable_logs"`
	UseOTLPLogs     bool   `mapstructure:"use_otlp_logs" toml:"use_otlp_logs"`
	OTLPLogsURL     string `mapstructure:"otlp_logs_url" toml:"otlp_logs_url"`
	InsecureOTLP    bool   `mapstructure:"insecure_otlp" toml:"insecure_otlp"`
	DevelopmentMode bool   `mapstructure:"development_mode" toml:"development_mode"`
}
