package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// Sink publishes access records to a NATS JetStream subject.
type Sink struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	subject string
	logger  *logger.Logger
}

// NewSink connects to NATS and prepares the JetStream context.
func NewSink(natsURL, subject string, log *logger.Logger) (*Sink, error) {
	// Connect to NATS with retry
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	log.Info("Connected to NATS", "url", natsURL, "subject", subject)

	return &Sink{
		nc:      nc,
		js:      js,
		subject: subject,
		logger:  log,
	}, nil
}

// Publish sends one access record (async, fire-and-forget).
func (s *Sink) Publish(ctx context.Context, record port.AccessRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal access record: %w", err)
	}

	if _, err := s.js.PublishAsync(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish access record: %w", err)
	}

	s.logger.Debug("Access record published", "subject", s.subject, "size", len(data))
	return nil
}

// Flush waits for outstanding async publishes to be acknowledged.
func (s *Sink) Flush(ctx context.Context) error {
	select {
	case <-s.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush interrupted: %w", ctx.Err())
	}
}

// Close closes the NATS connection.
func (s *Sink) Close() error {
	if s.nc != nil {
		s.logger.Info("Closing NATS connection")
		s.nc.Close()
	}
	return nil
}
