package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

// DefaultNATSConfig returns connection defaults: infinite reconnects with a
// short backoff, so a broker restart is invisible to the service.
func DefaultNATSConfig(url string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Name:          "gatehouse",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NATSPublisher publishes session lifecycle events to NATS.
type NATSPublisher struct {
	log  *slog.Logger
	conn *nats.Conn
}

// NewNATSPublisher connects to NATS and returns a ready publisher.
func NewNATSPublisher(log *slog.Logger, cfg NATSConfig) (*NATSPublisher, error) {
	if log == nil {
		log = slog.Default()
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats.disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats.reconnected", "url", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}

	log.Info("nats.connected", "url", conn.ConnectedUrl())
	return &NATSPublisher{log: log, conn: conn}, nil
}

// SessionCreated implements Publisher.
func (p *NATSPublisher) SessionCreated(ctx context.Context, ev SessionEvent) {
	p.publish(ctx, SubjectSessionCreated, ev)
}

// SessionDeleted implements Publisher.
func (p *NATSPublisher) SessionDeleted(ctx context.Context, ev SessionEvent) {
	p.publish(ctx, SubjectSessionDeleted, ev)
}

func (p *NATSPublisher) publish(_ context.Context, subject string, ev SessionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("events.marshal.fail", "err", err, "subject", subject)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Error("events.publish.fail", "err", err, "subject", subject)
	}
}

// Close drains the connection so buffered events flush before shutdown.
func (p *NATSPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}
