package config

import "time"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	SinkLog   = "log"
	SinkNats  = "nats"
	SinkKafka = "kafka"
)

type AppConfig struct {
	Log       LogConfig       `json:"log"`
	Ledger    LedgerConfig    `json:"ledger"`
	Allocator AllocatorConfig `json:"allocator"`
	Bench     BenchConfig     `json:"bench"`
	Localnet  LocalnetConfig  `json:"localnet"`
	Events    EventsConfig    `json:"events"`
	Metrics   MetricsConfig   `json:"metrics"`
}

type LogConfig struct {
	Level string `json:"level"`
}

// LedgerConfig points at the REST node and its faucet.
type LedgerConfig struct {
	NodeURL   string        `json:"node_url"`   // e.g. http://127.0.0.1:8080/v1
	FaucetURL string        `json:"faucet_url"` // e.g. http://127.0.0.1:8080
	Timeout   time.Duration `json:"timeout"`    // per HTTP request
	ChainID   uint8         `json:"chain_id"`
}

// AllocatorConfig mirrors seq.Options.
type AllocatorConfig struct {
	InFlightLimit uint64        `json:"in_flight_limit"`
	PollInterval  time.Duration `json:"poll_interval"`
	ResyncTimeout time.Duration `json:"resync_timeout"`
}

type BenchConfig struct {
	Accounts       int    `json:"accounts"`
	Transfers      int    `json:"transfers"` // per account
	Concurrency    int    `json:"concurrency"`
	FundAmount     uint64 `json:"fund_amount"`
	TransferAmount uint64 `json:"transfer_amount"`
	MaxGasAmount   uint64 `json:"max_gas_amount"`
	GasUnitPrice   uint64 `json:"gas_unit_price"`
	// ExpirationSecs is added to the wall clock for each transaction.
	ExpirationSecs uint64 `json:"expiration_secs"`
}

type LocalnetConfig struct {
	Listen        string        `json:"listen"`
	BlockInterval time.Duration `json:"block_interval"`
	DropRate      float64       `json:"drop_rate"`
	MaxParked     uint64        `json:"max_parked"`
	Store         string        `json:"store"`
	Redis         RedisConfig   `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	Prefix   string `json:"prefix"`
}

type EventsConfig struct {
	Sink  string      `json:"sink"`
	Nats  NatsConfig  `json:"nats"`
	Kafka KafkaConfig `json:"kafka"`
}

type NatsConfig struct {
	Servers []string `json:"servers"`
	Name    string   `json:"name"`
	Subject string   `json:"subject"`
}

type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

type MetricsConfig struct {
	Listen string `json:"listen"` // empty disables the /metrics server
}
