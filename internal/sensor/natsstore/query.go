package natsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/telepair/pulsewatch/internal/observer"
)

// query pulls from an ordered consumer until closed. Messages up to
// backlogSeq existed when the query opened; Limit caps how many of those are
// delivered.
type query struct {
	cons       jetstream.Consumer
	spec       observer.QuerySpec
	backlogSeq uint64
	backlogN   int
	cfg        Config
	logger     *slog.Logger

	ch   chan observer.Batch
	done chan struct{}
	once sync.Once
}

func newQuery(cons jetstream.Consumer, spec observer.QuerySpec, backlogSeq uint64, cfg Config,
	logger *slog.Logger) *query {
	return &query{
		cons:       cons,
		spec:       spec,
		backlogSeq: backlogSeq,
		cfg:        cfg,
		logger:     logger.With("query", spec.Type.Identifier),
		ch:         make(chan observer.Batch),
		done:       make(chan struct{}),
	}
}

func (q *query) Batches() <-chan observer.Batch {
	return q.ch
}

// Close stops the fetch loop. The loop exits within one fetch wait.
func (q *query) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

func (q *query) closed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

func (q *query) run() {
	defer close(q.ch)
	for !q.closed() {
		batch, err := q.fetch()
		if err != nil {
			q.logger.Warn("fetch failed", "error", err)
			batch = observer.Batch{Err: err}
			if !q.send(batch) {
				return
			}
			q.pause()
			continue
		}
		if len(batch.Samples) == 0 && batch.Err == nil {
			continue
		}
		if !q.send(batch) {
			return
		}
		if len(batch.Samples) == 0 {
			q.pause()
		}
	}
}

// pause waits one fetch interval before retrying after an error.
func (q *query) pause() {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.FetchWait)
	defer cancel()
	select {
	case <-ctx.Done():
	case <-q.done:
	}
}

func (q *query) send(b observer.Batch) bool {
	select {
	case q.ch <- b:
		return true
	case <-q.done:
		return false
	}
}

// fetch pulls up to one fetch batch and decodes it. Undecodable messages and
// a failure after the first message are reported on the batch alongside the
// samples that did decode. The returned error is only set when nothing was
// fetched.
func (q *query) fetch() (observer.Batch, error) {
	msgs, err := q.cons.Fetch(q.cfg.FetchBatch, jetstream.FetchMaxWait(q.cfg.FetchWait))
	if err != nil {
		return observer.Batch{}, fmt.Errorf("fetch: %w", err)
	}

	var (
		batch   observer.Batch
		decodeN int
		first   error
	)
	for msg := range msgs.Messages() {
		meta, err := msg.Metadata()
		if err != nil {
			decodeN++
			first = firstErr(first, fmt.Errorf("metadata: %w", err))
			continue
		}
		seq := meta.Sequence.Stream
		batch.Anchor = &observer.Anchor{Sequence: seq}

		if q.spec.Limit > 0 && seq <= q.backlogSeq {
			if q.backlogN >= q.spec.Limit {
				continue
			}
			q.backlogN++
		}

		var sample observer.Sample
		if err := json.Unmarshal(msg.Data(), &sample); err != nil {
			decodeN++
			first = firstErr(first, fmt.Errorf("decode %s seq %d: %w", msg.Subject(), seq, err))
			continue
		}
		batch.Samples = append(batch.Samples, sample)
	}
	var errs []error
	if decodeN > 0 {
		errs = append(errs, fmt.Errorf("%d undecodable messages: %w", decodeN, first))
	}
	if err := msgs.Error(); err != nil && !isIdle(err) {
		// The ordered consumer has moved past what was received, so the
		// decoded samples travel with the error.
		errs = append(errs, fmt.Errorf("fetch: %w", err))
	}
	batch.Err = errors.Join(errs...)
	return batch, nil
}

func firstErr(first, err error) error {
	if first != nil {
		return first
	}
	return err
}

// isIdle reports whether err only means the fetch window passed without data.
func isIdle(err error) bool {
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, jetstream.ErrNoMessages)
}
