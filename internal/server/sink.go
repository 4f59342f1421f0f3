package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/pkg/logger"
)

// readingSink drains one subscription until the observer closes it.
type readingSink struct {
	sub    *observer.Subscription
	done   chan struct{}
	logger *slog.Logger
}

func newReadingSink(sub *observer.Subscription, dev observer.Device, sampleType string) *readingSink {
	return &readingSink{
		sub:    sub,
		done:   make(chan struct{}),
		logger: logger.ComponentLogger("pulse.sink").With("device", dev.ID, "sample_type", sampleType),
	}
}

func (k *readingSink) run() {
	defer close(k.done)
	for ev := range k.sub.C() {
		switch ev.Kind {
		case observer.KindReading:
			k.logger.Info("reading", "type", observer.ReadingMessageID, "rounded", ev.Reading.Int(),
				"value", ev.Reading.Value, "timestamp", ev.Reading.Timestamp, "id", ev.Reading.ID)
		case observer.KindStreamEnded:
			k.logger.Info("reading stream ended")
		case observer.KindFault:
			k.logger.Warn("observer fault", "error", ev.Err)
		}
	}
}

// wait blocks until the subscription has been drained.
func (k *readingSink) wait(ctx context.Context) error {
	select {
	case <-k.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reading sink: %w", ctx.Err())
	}
}
