package cli

import (
	"time"

	"PLedger/global/config"
	"PLedger/logger"
	"PLedger/module/seq"
	"PLedger/module/transfer"
	"PLedger/service/faucet"
	"PLedger/service/kafka"
	"PLedger/service/ledger"
	"PLedger/service/natsx"

	"go.uber.org/zap"
)

func (a *app) nodeClient() *ledger.Client {
	return ledger.New(ledger.Options{BaseURL: a.cfg.Ledger.NodeURL, Timeout: a.cfg.Ledger.Timeout}, logger.Log)
}

func (a *app) faucetClient() *faucet.Client {
	return faucet.New(a.cfg.Ledger.FaucetURL, a.cfg.Ledger.Timeout, logger.Log)
}

func allocatorOptions(c config.AllocatorConfig) seq.Options {
	return seq.Options{
		InFlightLimit: c.InFlightLimit,
		PollInterval:  c.PollInterval,
		ResyncTimeout: c.ResyncTimeout,
	}
}

func gasOptions(c config.AppConfig) transfer.GasOptions {
	return transfer.GasOptions{
		MaxGasAmount: c.Bench.MaxGasAmount,
		GasUnitPrice: c.Bench.GasUnitPrice,
		Expiration:   time.Duration(c.Bench.ExpirationSecs) * time.Second,
		ChainID:      c.Ledger.ChainID,
	}
}

func kafkaConfig(c config.KafkaConfig) kafka.Config {
	kc := kafka.DefaultConfig()
	if len(c.Brokers) > 0 {
		kc.Brokers = c.Brokers
	}
	if c.Topic != "" {
		kc.Topic = c.Topic
	}
	return kc
}

func natsConfig(c config.NatsConfig) natsx.NatsxConfig {
	return natsx.NatsxConfig{Servers: c.Servers, Name: c.Name}
}

// newPublisher always logs events; the configured sink, if any, is added.
func newPublisher(c config.EventsConfig) (transfer.Publisher, error) {
	logPub := transfer.NewLogPublisher(logger.Log)
	switch c.Sink {
	case config.SinkNats:
		nc, err := natsx.NewNatsxClient(natsConfig(c.Nats), logger.Log)
		if err != nil {
			return nil, err
		}
		return transfer.MultiPublisher{logPub, natsx.NewEventPublisher(nc, c.Nats.Subject)}, nil
	case config.SinkKafka:
		kc := kafkaConfig(c.Kafka)
		if err := kafka.EnsureTopicOnBrokers(kc); err != nil {
			logger.Warn("ensure kafka topic failed, publishing anyway", zap.Error(err))
		}
		kp, err := kafka.NewEventPublisher(kc)
		if err != nil {
			return nil, err
		}
		return transfer.MultiPublisher{logPub, kp}, nil
	}
	return logPub, nil
}
