package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers            []string
	Topic              string
	GroupID            string
	PartitionsPerTopic int32  // 单机=1；生产 >= broker 数
	ReplicationFactor  int16  // 单机=1；生产=3
	ProducerRetries    int
	Compression        string // none/snappy/lz4/zstd
	InitialOffset      string // newest/oldest
	Version            sarama.KafkaVersion
}

func DefaultConfig() Config {
	return Config{
		Brokers:            []string{"127.0.0.1:9092"},
		Topic:              "pledger-transfers",
		GroupID:            "pledger-tail",
		PartitionsPerTopic: 8,
		ReplicationFactor:  1,
		ProducerRetries:    5,
		Compression:        "snappy",
		InitialOffset:      "newest",
		Version:            sarama.V2_1_0_0,
	}
}

func BuildBaseConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = c.Version
	if cfg.Version == (sarama.KafkaVersion{}) {
		cfg.Version = sarama.V2_1_0_0
	}

	// Producer
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.ProducerRetries
	if cfg.Producer.Retry.Max <= 0 {
		cfg.Producer.Retry.Max = 1
	}
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // key = account，同一账户有序
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	// Consumer
	switch strings.ToLower(c.InitialOffset) {
	case "oldest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	// Net
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}
