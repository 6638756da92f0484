package transfer

import (
	"context"
	"errors"
	"time"

	"PLedger/logger"
	"PLedger/tools/ids"

	"go.uber.org/zap"
)

type EventKind string

const (
	EventSubmitted    EventKind = "submitted"
	EventRejected     EventKind = "rejected"
	EventResynced     EventKind = "resynced"
	EventSynchronized EventKind = "synchronized"
)

// Event is one step of a sender's life published for auditing.
type Event struct {
	ID      int64     `json:"id"`
	Kind    EventKind `json:"kind"`
	Account string    `json:"account"`
	Seq     uint64    `json:"seq"`
	Hash    string    `json:"hash,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

func NewEvent(kind EventKind, account string, seq uint64) Event {
	return Event{
		ID:      ids.Generate(),
		Kind:    kind,
		Account: account,
		Seq:     seq,
		At:      time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to a zap logger.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: logger.OrDefault(log).Named("events")}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	fields := []zap.Field{
		zap.Int64("id", ev.ID),
		zap.String("account", ev.Account),
		zap.Uint64("seq", ev.Seq),
	}
	if ev.Hash != "" {
		fields = append(fields, zap.String("hash", ev.Hash))
	}
	if ev.Detail != "" {
		fields = append(fields, zap.String("detail", ev.Detail))
	}
	switch ev.Kind {
	case EventRejected, EventResynced:
		p.log.Warn(string(ev.Kind), fields...)
	case EventSubmitted:
		p.log.Debug(string(ev.Kind), fields...)
	default:
		p.log.Info(string(ev.Kind), fields...)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MultiPublisher fans an event out to every publisher and joins their errors.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, ev Event) error {
	var all []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

func (m MultiPublisher) Close() error {
	var all []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}
