package kafka

import (
	"context"
	"encoding/json"

	"PLedger/logger"
	"PLedger/module/transfer"
	"PLedger/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EventHandler is a consumer group handler that decodes transfer events.
// Undecodable records are logged and marked so the group moves past them.
type EventHandler struct {
	Fn  func(transfer.Event)
	Log *zap.Logger
}

func (h *EventHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *EventHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *EventHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := logger.OrDefault(h.Log)
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			var ev transfer.Event
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				log.Warn("skip undecodable event",
					zap.String("topic", msg.Topic), zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset), zap.Error(err))
			} else {
				h.Fn(ev)
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// ConsumeEvents joins c.GroupID on c.Topic and delivers events to fn until ctx
// ends.
func ConsumeEvents(ctx context.Context, c Config, fn func(transfer.Event)) error {
	log := logger.Named("kafka")
	group, err := sarama.NewConsumerGroup(c.Brokers, c.GroupID, BuildBaseConfig(c))
	if err != nil {
		return errs.WrapMsg(err, "kafka consumer group", "brokers", c.Brokers)
	}
	defer group.Close()

	go func() {
		for err := range group.Errors() {
			log.Warn("consumer group error", zap.Error(err))
		}
	}()

	handler := &EventHandler{Fn: fn, Log: log}
	for ctx.Err() == nil {
		if err := group.Consume(ctx, []string{c.Topic}, handler); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn("consume", zap.Error(err))
		}
	}
	return nil
}
