package natsx

import (
	"context"
	"strings"
	"sync"
	"time"

	"PLedger/logger"
	"PLedger/tools/errs"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NatsxMode 发布模式
type NatsxMode int

const (
	Core      NatsxMode = iota // 无持久化
	JetStream                  // 需要服务端已有覆盖该 subject 的 stream
)

// NatsxConfig 客户端配置
type NatsxConfig struct {
	Servers       []string
	Name          string
	User          string
	Password      string
	ReconnectWait time.Duration
	Timeout       time.Duration
	Mode          NatsxMode
}

// NatsxClient wraps one connection and, in JetStream mode, its context.
type NatsxClient struct {
	cfg NatsxConfig
	nc  *nats.Conn
	js  nats.JetStreamContext
	log *zap.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

func NewNatsxClient(cfg NatsxConfig, log *zap.Logger) (*NatsxClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrArgs.WrapMsg("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	log = logger.OrDefault(log).Named("natsx")
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "servers", cfg.Servers)
	}
	c := &NatsxClient{cfg: cfg, nc: nc, log: log}
	if cfg.Mode == JetStream {
		if c.js, err = nc.JetStream(); err != nil {
			nc.Close()
			return nil, errs.WrapMsg(err, "init jetstream")
		}
	}
	return c, nil
}

// Publish sends data on subject. In JetStream mode it waits for the stream ack.
func (c *NatsxClient) Publish(ctx context.Context, subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	if c.js != nil {
		if _, err := c.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
			return errs.WrapMsg(err, "jetstream publish", "subject", subject)
		}
		return nil
	}
	if err := c.nc.PublishMsg(msg); err != nil {
		return errs.WrapMsg(err, "nats publish", "subject", subject)
	}
	return nil
}

// Subscribe runs h, wrapped in mws, for every core message on subject.
func (c *NatsxClient) Subscribe(subject string, h NatsxHandler, mws ...NatsxMiddleware) error {
	h = NatsxChain(h, mws...)
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		msg := NatsxMessage{
			Subject: m.Subject,
			Data:    append([]byte(nil), m.Data...),
			Header:  headerToMap(m.Header),
		}
		if err := h(context.Background(), msg); err != nil {
			c.log.Warn("handler failed", zap.String("subject", m.Subject), zap.Error(err))
		}
	})
	if err != nil {
		return errs.WrapMsg(err, "nats subscribe", "subject", subject)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

// Flush waits until the server has processed everything published so far.
func (c *NatsxClient) Flush() error { return c.nc.Flush() }

// Close 优雅关闭
func (c *NatsxClient) Close() error {
	c.mu.Lock()
	for _, sub := range c.subs {
		_ = sub.Drain()
	}
	c.subs = nil
	c.mu.Unlock()
	return c.nc.Drain()
}

func headerToMap(h nats.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
