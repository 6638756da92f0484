package config

import (
	"os"
	"time"

	"PLedger/tools/decode"
	"PLedger/tools/errs"

	"gopkg.in/yaml.v3"
)

const (
	EnvNodeURL   = "PLEDGER_NODE_URL"
	EnvFaucetURL = "PLEDGER_FAUCET_URL"
	EnvLogLevel  = "PLEDGER_LOG_LEVEL"
)

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Log: LogConfig{Level: "info"},
		Ledger: LedgerConfig{
			NodeURL:   "http://127.0.0.1:8080/v1",
			FaucetURL: "http://127.0.0.1:8080",
			Timeout:   10 * time.Second,
			ChainID:   4,
		},
		Allocator: AllocatorConfig{
			InFlightLimit: 50,
			PollInterval:  10 * time.Millisecond,
			ResyncTimeout: 30 * time.Second,
		},
		Bench: BenchConfig{
			Accounts:       2,
			Transfers:      100,
			Concurrency:    32,
			FundAmount:     100_000_000,
			TransferAmount: 100,
			MaxGasAmount:   2000,
			GasUnitPrice:   100,
			ExpirationSecs: 60,
		},
		Localnet: LocalnetConfig{
			Listen:        ":8080",
			BlockInterval: 50 * time.Millisecond,
			MaxParked:     100,
			Store:         StoreMemory,
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "pledger",
			},
		},
		Events: EventsConfig{
			Sink: SinkLog,
			Nats: NatsConfig{
				Servers: []string{"nats://127.0.0.1:4222"},
				Name:    "pledger",
				Subject: "pledger.transfers",
			},
			Kafka: KafkaConfig{
				Brokers: []string{"127.0.0.1:9092"},
				Topic:   "pledger-transfers",
			},
		},
	}
}

// Load reads path (optional) over Default, then applies env overrides and
// validates the result.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := Parse(raw, &cfg); err != nil {
			return cfg, errs.WrapMsg(err, "parse config", "path", path)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML onto cfg; keys absent from raw keep their value.
func Parse(raw []byte, cfg *AppConfig) error {
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return err
	}
	if len(m) == 0 {
		return nil
	}
	return decode.Into(m, cfg)
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv(EnvNodeURL); v != "" {
		cfg.Ledger.NodeURL = v
	}
	if v := os.Getenv(EnvFaucetURL); v != "" {
		cfg.Ledger.FaucetURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
}

func (c AppConfig) Validate() error {
	switch {
	case c.Allocator.InFlightLimit == 0:
		return errs.ErrArgs.WrapMsg("allocator.in_flight_limit must be > 0")
	case c.Allocator.PollInterval <= 0:
		return errs.ErrArgs.WrapMsg("allocator.poll_interval must be > 0")
	case c.Allocator.ResyncTimeout <= 0:
		return errs.ErrArgs.WrapMsg("allocator.resync_timeout must be > 0")
	case c.Localnet.DropRate < 0 || c.Localnet.DropRate > 1:
		return errs.ErrArgs.WrapMsg("localnet.drop_rate out of range", "drop_rate", c.Localnet.DropRate)
	case c.Localnet.Store != StoreMemory && c.Localnet.Store != StoreRedis:
		return errs.ErrArgs.WrapMsg("unknown localnet.store", "store", c.Localnet.Store)
	case c.Events.Sink != SinkLog && c.Events.Sink != SinkNats && c.Events.Sink != SinkKafka:
		return errs.ErrArgs.WrapMsg("unknown events.sink", "sink", c.Events.Sink)
	case c.Bench.Concurrency <= 0:
		return errs.ErrArgs.WrapMsg("bench.concurrency must be > 0")
	}
	return nil
}
