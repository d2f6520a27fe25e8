// Package messaging publishes copies of exported listing documents to NATS.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Lllllllleong/listingflow/internal/models"
)

// Header names set on every emitted message.
const (
	HeaderContainer = "Listing-Source-Container"
	HeaderKey       = "Listing-Source-Key"
)

// NATSConfig holds emitter connection settings.
type NATSConfig struct {
	URL           string
	Subject       string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns a config for url/subject with reconnect defaults.
func DefaultNATSConfig(url, subject string) NATSConfig {
	return NATSConfig{
		URL:           url,
		Subject:       subject,
		Name:          "listingflow-exporter",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NATSEmitter implements pipeline.Emitter.
type NATSEmitter struct {
	conn    *nats.Conn
	subject string
}

// NewNATSEmitter connects to the configured server.
func NewNATSEmitter(cfg NATSConfig) (*NATSEmitter, error) {
	if cfg.Subject == "" {
		return nil, errors.New("emit subject must be set")
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected.", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("NATS reconnected.")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSEmitter{conn: conn, subject: cfg.Subject}, nil
}

// NewMessage builds the message emitted for one document.
func NewMessage(subject string, src models.Descriptor, body []byte) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = body
	msg.Header.Set(HeaderContainer, src.Container)
	msg.Header.Set(HeaderKey, src.Key)
	return msg
}

// Emit publishes body with its source in the headers.
func (e *NATSEmitter) Emit(ctx context.Context, src models.Descriptor, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.conn.PublishMsg(NewMessage(e.subject, src, body)); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", e.subject, err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (e *NATSEmitter) Close() error {
	if e.conn == nil {
		return nil
	}
	return e.conn.Drain()
}
