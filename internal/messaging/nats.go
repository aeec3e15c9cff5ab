package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/manish3089/Token-Generator/pkg/config"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Publisher fans out token and bar events
type Publisher interface {
	PublishTokenIssued(event *TokenIssuedEvent) error
	PublishBars(batch *models.BarBatch) error
	Close() error
}

// TokenIssuedEvent announces a completed exchange. The access token itself is
// not included.
type TokenIssuedEvent struct {
	APIKey       string              `json:"api_key"`
	Status       string              `json:"status"`
	PayloadShape models.PayloadShape `json:"payload_shape"`
	IssuedAt     time.Time           `json:"issued_at"`
}

var (
	_ Publisher = (*NATSClient)(nil)
	_ Publisher = NopPublisher{}
)

// NATSClient publishes events over core NATS
type NATSClient struct {
	conn   *nats.Conn
	prefix string
	logger *logrus.Entry
}

// NewNATSClient connects to NATS
func NewNATSClient(cfg *config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name("token-generator"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn:   conn,
		prefix: cfg.SubjectPrefix,
		logger: logger.WithField("component", "nats"),
	}, nil
}

// Close drains and closes the connection
func (nc *NATSClient) Close() error {
	if err := nc.conn.Drain(); err != nil {
		nc.conn.Close()
		return err
	}
	return nil
}

// IsConnected checks if NATS is connected
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// PublishTokenIssued publishes on {prefix}.token.issued
func (nc *NATSClient) PublishTokenIssued(event *TokenIssuedEvent) error {
	return nc.PublishJSON(TokenSubject(nc.prefix), event)
}

// PublishBars publishes on {prefix}.bars.{exchange}.{symbol}.{interval}
func (nc *NATSClient) PublishBars(batch *models.BarBatch) error {
	return nc.PublishJSON(BarsSubject(nc.prefix, batch.Exchange, batch.Symbol, batch.Interval), batch)
}

// PublishJSON publishes arbitrary JSON data
func (nc *NATSClient) PublishJSON(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if err := nc.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	nc.logger.WithFields(logrus.Fields{
		"subject": subject,
		"bytes":   len(payload),
	}).Debug("Published message")
	return nil
}

// TokenSubject returns the subject token events are published on
func TokenSubject(prefix string) string {
	return prefix + ".token.issued"
}

// BarsSubject returns the subject a bar batch is published on. Tokens are
// upper-cased and stripped of NATS wildcard and separator characters.
func BarsSubject(prefix, exchange, symbol, interval string) string {
	return strings.Join([]string{prefix, "bars", subjectToken(exchange), subjectToken(symbol), subjectToken(interval)}, ".")
}

func subjectToken(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '_'
		}
		return r
	}, s)
	return strings.ToUpper(s)
}

// NopPublisher discards events. It is used when NATS is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishTokenIssued(*TokenIssuedEvent) error { return nil }
func (NopPublisher) PublishBars(*models.BarBatch) error         { return nil }
func (NopPublisher) Close() error                               { return nil }
