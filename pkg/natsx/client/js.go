package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
)

type StreamConfig = jetstream.StreamConfig

// Stream is a JetStream stream handle.
type Stream struct {
	name   string
	js     jetstream.JetStream
	stream jetstream.Stream
	logger *slog.Logger
}

// EnsureStream returns the named stream, creating it when it does not exist.
// An existing stream keeps its configuration.
func (c *Client) EnsureStream(ctx context.Context, config StreamConfig) (*Stream, error) {
	if config.Name == "" {
		return nil, errors.New("stream name cannot be empty")
	}
	for _, subject := range config.Subjects {
		if err := ValidateSubject(subject); err != nil {
			return nil, fmt.Errorf("stream %s: %w", config.Name, err)
		}
	}

	stream, err := c.js.Stream(ctx, config.Name)
	switch {
	case err == nil:
		c.logger.Debug("using existing stream", "stream", config.Name)
	case errors.Is(err, jetstream.ErrStreamNotFound):
		stream, err = c.js.CreateStream(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
		c.logger.Info("stream created", "stream", config.Name, "subjects", config.Subjects)
	default:
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}

	return &Stream{
		name:   config.Name,
		js:     c.js,
		stream: stream,
		logger: c.logger.With("stream", config.Name),
	}, nil
}

// Name returns the stream name.
func (s *Stream) Name() string {
	return s.name
}

// Publish stores data on subject. A non-empty msgID lets the server drop
// duplicates inside the stream's dedup window.
func (s *Stream) Publish(ctx context.Context, subject string, data []byte, msgID string) (uint64, error) {
	if err := ValidateSubject(subject); err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}

	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}
	ack, err := s.js.Publish(ctx, subject, data, opts...)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}
	if ack.Duplicate {
		s.logger.Debug("duplicate message ignored", "subject", subject, "msg_id", msgID)
	}
	return ack.Sequence, nil
}

// Info fetches the current stream state from the server.
func (s *Stream) Info(ctx context.Context) (*jetstream.StreamInfo, error) {
	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream info: %w", err)
	}
	return info, nil
}

// OrderedConsumer creates an ephemeral ordered consumer on the stream.
func (s *Stream) OrderedConsumer(ctx context.Context, cfg jetstream.OrderedConsumerConfig) (jetstream.Consumer, error) {
	for _, subject := range cfg.FilterSubjects {
		if err := ValidateSubject(subject); err != nil {
			return nil, fmt.Errorf("invalid filter subject: %w", err)
		}
	}
	cons, err := s.stream.OrderedConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ordered consumer: %w", err)
	}
	return cons, nil
}
