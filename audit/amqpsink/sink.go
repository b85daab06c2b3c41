// Package amqpsink streams audit records to a RabbitMQ topic exchange so
// security monitoring can subscribe to failed attempts and lockouts.
//
// Routing keys have the form "faceauth.<event_type>.<success|failure>",
// e.g. "faceauth.authentication.failure".
package amqpsink

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
	"github.com/go-logr/logr"
	"github.com/rabbitmq/amqp091-go"
)

const (
	routingPrefix         = "faceauth"
	defaultPublishTimeout = 5 * time.Second
	defaultExchangeName   = "faceauth.audit"
	contentTypeJSON       = "application/json"
)

// Publisher is the subset of *amqp091.Channel the sink uses.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Sink implements goFaceAuth.AuditSink. Publish failures are logged and
// never surface to the engine.
type Sink struct {
	publisher Publisher
	exchange  string
	timeout   time.Duration
	log       logr.Logger

	conn      *amqp091.Connection
	channel   *amqp091.Channel
	closeOnce sync.Once
}

// New wraps an existing publisher. The exchange must already exist.
func New(p Publisher, exchange string, logger logr.Logger) *Sink {
	if exchange == "" {
		exchange = defaultExchangeName
	}
	return &Sink{
		publisher: p,
		exchange:  exchange,
		timeout:   defaultPublishTimeout,
		log:       logger,
	}
}

// Dial connects to amqpURL and declares a durable topic exchange.
func Dial(amqpURL, exchange string, logger logr.Logger) (*Sink, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := New(channel, exchange, logger)
	err = channel.ExchangeDeclare(
		s.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	s.conn = conn
	s.channel = channel
	return s, nil
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// RoutingKey returns the topic a record is published under.
func RoutingKey(record goFaceAuth.AuditRecord) string {
	outcome := "failure"
	if record.Success {
		outcome = "success"
	}
	event := record.EventType
	if event == "" {
		event = "unknown"
	}
	return routingPrefix + "." + event + "." + outcome
}

func (s *Sink) Emit(ctx context.Context, record goFaceAuth.AuditRecord) {
	if s == nil || s.publisher == nil {
		return
	}

	body, err := json.Marshal(record)
	if err != nil {
		s.log.Error(err, "encode audit record", "event", record.EventType)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = s.publisher.PublishWithContext(ctx,
		s.exchange,         // exchange
		RoutingKey(record), // routing key
		false,              // mandatory
		false,              // immediate
		amqp091.Publishing{
			ContentType:  contentTypeJSON,
			DeliveryMode: amqp091.Persistent,
			MessageId:    record.ID,
			Timestamp:    record.Timestamp,
			Type:         record.EventType,
			Body:         body,
		})
	if err != nil {
		s.log.Error(err, "publish audit record", "exchange", s.exchange, "event", record.EventType)
		return
	}
	s.log.V(1).Info("published audit record", "exchange", s.exchange, "key", RoutingKey(record))
}

// Close releases the connection opened by Dial. Sinks built with New own
// nothing and Close is a no-op.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.closeOnce.Do(func() {
		if s.channel != nil {
			err = s.channel.Close()
		}
		if s.conn != nil {
			if cerr := s.conn.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

var _ goFaceAuth.AuditSink = (*Sink)(nil)
