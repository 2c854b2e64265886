package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// LoadPortalConfig loads the service config from the given path, or from PORTAL_* env vars
// when configPath is nil.
func LoadPortalConfig(configPath *string) (*PortalConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rate_per_minute", 300)
	v.SetDefault("max_concurrent_requests", 100)
	v.SetDefault("wait_interval_seconds", 10)
	v.SetDefault("wait_max_iterations", 60)
	v.SetDefault("pool_refresh_seconds", 10)
	v.SetDefault("recharge_max_iterations", 30)
	v.SetDefault("network_switch_backoff_ms", 2000)
	v.SetDefault("recharge_multiplier", "1.2")
	v.SetDefault("min_recharge_wei", "5000000000000000")
	v.SetDefault("service_name", "portal")
	v.SetDefault("environment", "development")
}

func loadEnv(v *viper.Viper) (*PortalConfig, error) {
	// .env is optional, env can also come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config PortalConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests", "connections_source",
		"wait_interval_seconds", "wait_max_iterations", "pool_refresh_seconds",
		"recharge_max_iterations", "network_switch_backoff_ms",
		"recharge_multiplier", "min_recharge_wei",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*PortalConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config PortalConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

func verifyConfig(config *PortalConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}
	if config.ConnectionsSource == "" {
		return fmt.Errorf("connections_source is required")
	}
	if config.WaitIntervalSeconds <= 0 || config.WaitMaxIterations <= 0 {
		return fmt.Errorf("wait_interval_seconds and wait_max_iterations must be positive")
	}

	multiplier, err := decimal.NewFromString(config.RechargeMultiplier)
	if err != nil {
		return fmt.Errorf("invalid recharge_multiplier: %w", err)
	}
	if multiplier.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("recharge_multiplier must be at least 1")
	}
	if _, err := decimal.NewFromString(config.MinRechargeWei); err != nil {
		return fmt.Errorf("invalid min_recharge_wei: %w", err)
	}
	return nil
}

// Multiplier returns the community pool recharge multiplier. Call after the config is verified.
func (c *PortalConfig) Multiplier() decimal.Decimal {
	m, err := decimal.NewFromString(c.RechargeMultiplier)
	if err != nil {
		return decimal.RequireFromString("1.2")
	}
	return m
}

// MinRecharge returns the minimum recharge amount in wei.
func (c *PortalConfig) MinRecharge() *big.Int {
	m, err := decimal.NewFromString(c.MinRechargeWei)
	if err != nil {
		return big.NewInt(5_000_000_000_000_000)
	}
	return m.BigInt()
}
