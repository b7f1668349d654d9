package publish

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/model"
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// RunIDHeader carries the run id of a published summary.
const RunIDHeader = "Run-Id"

// natsConn is the part of *nats.Conn the publisher uses.
type natsConn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// NATSPublisher publishes encoded summaries to a NATS subject.
type NATSPublisher struct {
	nc      natsConn
	subject string
}

// NewNATSPublisher connects to the configured NATS server.
func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats publisher: missing subject")
	}
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSPublisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish encodes the summary and publishes it with the run id as a header.
func (p *NATSPublisher) Publish(ctx context.Context, s model.GroupSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(RunIDHeader, s.RunID)
	msg.Data = data
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish summary to %s: %w", p.subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	log.Println("NATS connection drained and closed.")
	return nil
}

// SummaryHandler processes a received summary.
type SummaryHandler func(s model.GroupSummary)

// Subscriber receives summaries published by a NATSPublisher.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber connects to the configured NATS server.
func NewSubscriber(cfg config.NATSConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the subject and hands every decodable summary to handler.
func (s *Subscriber) Start(handler SummaryHandler) error {
	sub, err := s.nc.Subscribe(s.subject, HandleMsg(handler))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub
	log.Printf("Subscribed to '%s'. Waiting for summaries...", s.subject)
	return nil
}

// HandleMsg adapts handler to a NATS message callback. Undecodable messages are logged
// and skipped.
func HandleMsg(handler SummaryHandler) nats.MsgHandler {
	return func(msg *nats.Msg) {
		summary, err := Decode(msg.Data)
		if err != nil {
			log.Warnf("Dropping undecodable summary on %s: %v", msg.Subject, err)
			return
		}
		if summary.RunID == "" && msg.Header != nil {
			summary.RunID = msg.Header.Get(RunIDHeader)
		}
		handler(summary)
	}
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		log.Println("NATS connection closed.")
	}
}
