package natsx

import (
	"context"
	"encoding/json"
	"strconv"

	"PLedger/module/transfer"
	"PLedger/tools/errs"
)

const HeaderEventKind = "Pledger-Kind"

// EventPublisher writes transfer events as JSON to one subject. The event id
// goes into Nats-Msg-Id so JetStream and NatsxIdemMiddleware can deduplicate.
type EventPublisher struct {
	client  *NatsxClient
	subject string
}

func NewEventPublisher(c *NatsxClient, subject string) *EventPublisher {
	return &EventPublisher{client: c, subject: subject}
}

func (p *EventPublisher) Publish(ctx context.Context, ev transfer.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return errs.Wrap(err)
	}
	return p.client.Publish(ctx, p.subject, data, map[string]string{
		HeaderMsgID:     strconv.FormatInt(ev.ID, 10),
		HeaderEventKind: string(ev.Kind),
	})
}

func (p *EventPublisher) Close() error { return p.client.Close() }

// SubscribeEvents decodes events on subject and hands them to fn, dropping
// redeliveries of the same event id.
func SubscribeEvents(c *NatsxClient, subject string, fn func(transfer.Event), mws ...NatsxMiddleware) error {
	return c.Subscribe(subject, func(_ context.Context, msg NatsxMessage) error {
		var ev transfer.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return errs.ErrArgs.WrapErr(err, "decode event", "subject", msg.Subject)
		}
		fn(ev)
		return nil
	}, mws...)
}
