package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  "~/.tokenchat",
			LogLevel: "info",
		},
		Relay: RelayConfig{
			BaseURL:             "",
			UsePush:             false,
			PollIntervalSeconds: 3,
			FetchTimeoutSeconds: 10,
		},
		Registry: RegistryConfig{
			Dir: "~/.tokenchat/collections",
		},
		Cache: CacheConfig{
			Path:              "~/.tokenchat/cache.db",
			ProfileTTLMinutes: 15,
			AssetTTLMinutes:   60,
		},
		Bridge: BridgeConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
			Port:     9090,
		},
		Send: SendConfig{
			MaxBurst:      5,
			RatePerMinute: 20,
		},
	}
}
