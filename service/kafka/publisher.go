package kafka

import (
	"context"
	"encoding/json"

	"PLedger/module/transfer"
	"PLedger/tools/errs"

	"github.com/Shopify/sarama"
)

// EventPublisher sends transfer events to one topic keyed by account, so one
// account's events stay in one partition and in order.
type EventPublisher struct {
	prod  sarama.SyncProducer
	topic string
}

func NewEventPublisher(c Config) (*EventPublisher, error) {
	prod, err := sarama.NewSyncProducer(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka sync producer", "brokers", c.Brokers)
	}
	return NewEventPublisherFromProducer(prod, c.Topic), nil
}

func NewEventPublisherFromProducer(p sarama.SyncProducer, topic string) *EventPublisher {
	return &EventPublisher{prod: p, topic: topic}
}

func (p *EventPublisher) Publish(_ context.Context, ev transfer.Event) error {
	msg, err := eventMessage(p.topic, ev)
	if err != nil {
		return err
	}
	if _, _, err := p.prod.SendMessage(msg); err != nil {
		return errs.WrapMsg(err, "kafka send", "topic", p.topic, "kind", ev.Kind)
	}
	return nil
}

func (p *EventPublisher) Close() error { return p.prod.Close() }

func eventMessage(topic string, ev transfer.Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, errs.Wrap(err)
	}
	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(ev.Account),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(ev.Kind)},
		},
	}, nil
}
