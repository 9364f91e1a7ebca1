package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig selects the JetStream stream and consumer.
type NATSConfig struct {
	Stream  string
	Subject string
	Durable string
	// MaxDeliver bounds redeliveries of a message; zero means unlimited.
	MaxDeliver int
	// FetchWait is how long Fetch waits for the first message (default 1s).
	FetchWait time.Duration
	// AckWait is how long the server waits for an ack before redelivering
	// (default 1m).
	AckWait time.Duration
}

// ConnectNATS dials the server, retrying while it comes up.
func ConnectNATS(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("triage"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// ensureStream creates the stream when it does not exist yet.
func ensureStream(js nats.JetStreamContext, cfg NATSConfig) error {
	_, err := js.StreamInfo(cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("looking up stream %s: %w", cfg.Stream, err)
	}
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
	}); err != nil {
		return fmt.Errorf("creating stream %s: %w", cfg.Stream, err)
	}
	return nil
}

// NATSPublisher publishes complaints to a JetStream subject.
type NATSPublisher struct {
	js      nats.JetStreamContext
	subject string
}

// NewNATSPublisher creates a publisher, creating the stream if needed.
func NewNATSPublisher(nc *nats.Conn, cfg NATSConfig) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("opening JetStream: %w", err)
	}
	if err := ensureStream(js, cfg); err != nil {
		return nil, err
	}
	return &NATSPublisher{js: js, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, payload []byte) error {
	if _, err := p.js.Publish(p.subject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return nil
}

// NATSSource pulls complaints through a durable JetStream consumer.
type NATSSource struct {
	sub  *nats.Subscription
	wait time.Duration
}

// NewNATSSource binds a durable pull consumer, creating the stream if needed.
func NewNATSSource(nc *nats.Conn, cfg NATSConfig) (*NATSSource, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("opening JetStream: %w", err)
	}
	if err := ensureStream(js, cfg); err != nil {
		return nil, err
	}

	ackWait := cfg.AckWait
	if ackWait <= 0 {
		ackWait = time.Minute
	}
	opts := []nats.SubOpt{nats.BindStream(cfg.Stream), nats.AckExplicit(), nats.AckWait(ackWait)}
	if cfg.MaxDeliver > 0 {
		opts = append(opts, nats.MaxDeliver(cfg.MaxDeliver))
	}
	sub, err := js.PullSubscribe(cfg.Subject, cfg.Durable, opts...)
	if err != nil {
		return nil, fmt.Errorf("subscribing %s on %s: %w", cfg.Durable, cfg.Subject, err)
	}

	wait := cfg.FetchWait
	if wait <= 0 {
		wait = time.Second
	}
	return &NATSSource{sub: sub, wait: wait}, nil
}

func (s *NATSSource) Fetch(ctx context.Context, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.sub.Fetch(limit, nats.MaxWait(s.wait))
	if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching complaints: %w", err)
	}
	msgs := make([]Message, len(raw))
	for i, m := range raw {
		msgs[i] = natsMessage{m}
	}
	return msgs, nil
}

// Close removes the subscription interest; the durable consumer stays.
func (s *NATSSource) Close() error {
	return s.sub.Unsubscribe()
}

type natsMessage struct {
	msg *nats.Msg
}

func (m natsMessage) Payload() []byte { return m.msg.Data }

func (m natsMessage) Ack(ctx context.Context) error {
	return m.msg.Ack(nats.Context(ctx))
}

func (m natsMessage) Retry(ctx context.Context, _ error) error {
	return m.msg.Nak(nats.Context(ctx))
}
