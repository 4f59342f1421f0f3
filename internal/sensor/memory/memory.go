// Package memory implements an in-process sensor service.
//
// It keeps delivered samples in a bounded ring so a query opened without an
// anchor first receives what the store already holds, then every later
// delivery. Tests drive it directly; the simulator uses it as a sink when no
// broker is configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/telepair/pulsewatch/internal/observer"
)

const (
	defaultHistory     = 1024
	defaultQueryBuffer = 64
)

var _ observer.Service = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithHistory bounds how many samples the store retains.
func WithHistory(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxHistory = n
		}
	}
}

// WithUnavailable makes the service report itself unavailable.
func WithUnavailable() Option {
	return func(s *Service) { s.available = false }
}

// Service is an in-memory sensor store.
type Service struct {
	mu         sync.Mutex
	available  bool
	authErr    error
	authGate   chan struct{}
	authCalls  int
	openCalls  int
	history    []stored
	seq        uint64
	maxHistory int
	queries    map[*query]struct{}
	logger     *slog.Logger
}

type stored struct {
	seq    uint64
	sample observer.Sample
}

// New creates an available service that grants every authorization.
func New(opts ...Option) *Service {
	s := &Service{
		available:  true,
		maxHistory: defaultHistory,
		queries:    make(map[*query]struct{}),
		logger:     slog.Default().With("component", "sensor.memory"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetAvailable changes what Available reports.
func (s *Service) SetAvailable(available bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = available
}

// SetAuthorization sets the result of future authorization requests. A nil
// error grants access.
func (s *Service) SetAuthorization(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authErr = err
}

// HoldAuthorization makes authorization requests block until release is called.
func (s *Service) HoldAuthorization() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.authGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.authGate == gate {
				s.authGate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// AuthorizationRequests returns how many authorizations were requested.
func (s *Service) AuthorizationRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCalls
}

// OpenedQueries returns how many queries were opened in total.
func (s *Service) OpenedQueries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openCalls
}

// ActiveQueries returns how many queries are currently open.
func (s *Service) ActiveQueries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// Available implements observer.Service.
func (s *Service) Available(_ context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available
}

// RequestAuthorization implements observer.Service.
func (s *Service) RequestAuthorization(ctx context.Context, caps observer.CapabilitySet) error {
	if len(caps) == 0 {
		return errors.New("empty capability set")
	}

	s.mu.Lock()
	s.authCalls++
	gate := s.authGate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authErr != nil {
		return s.authErr
	}
	s.logger.Debug("authorization granted", "capabilities", len(caps))
	return nil
}

// OpenQuery implements observer.Service.
func (s *Service) OpenQuery(_ context.Context, spec observer.QuerySpec) (observer.Query, error) {
	if spec.Type.Identifier == "" {
		return nil, errors.New("query sample type is required")
	}
	if spec.Limit < 0 {
		return nil, fmt.Errorf("invalid query limit %d", spec.Limit)
	}

	q := &query{
		svc:  s,
		spec: spec,
		ch:   make(chan observer.Batch, defaultQueryBuffer),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.openCalls++
	s.queries[q] = struct{}{}

	initial := s.initialBatch(spec)
	if len(initial.Samples) > 0 {
		q.ch <- initial
	}
	s.logger.Debug("query opened", "type", spec.Type.Identifier, "devices", len(spec.Devices),
		"initial", len(initial.Samples))
	return q, nil
}

// initialBatch collects retained samples after the anchor. Caller holds s.mu.
func (s *Service) initialBatch(spec observer.QuerySpec) observer.Batch {
	var after uint64
	if spec.Anchor != nil {
		after = spec.Anchor.Sequence
	}
	var batch observer.Batch
	for _, st := range s.history {
		if st.seq <= after || !matches(spec, st.sample) {
			continue
		}
		batch.Samples = append(batch.Samples, st.sample)
		batch.Anchor = &observer.Anchor{Sequence: st.seq}
		if spec.Limit > 0 && len(batch.Samples) >= spec.Limit {
			break
		}
	}
	return batch
}

// Deliver stores samples and hands them, as one batch, to every open query
// they match.
func (s *Service) Deliver(samples ...observer.Sample) {
	s.mu.Lock()
	entries := make([]stored, 0, len(samples))
	for _, sample := range samples {
		s.seq++
		entries = append(entries, stored{seq: s.seq, sample: sample})
	}
	s.history = append(s.history, entries...)
	if over := len(s.history) - s.maxHistory; over > 0 {
		s.history = append([]stored(nil), s.history[over:]...)
	}
	targets := s.snapshotQueries()
	s.mu.Unlock()

	for _, q := range targets {
		var batch observer.Batch
		for _, e := range entries {
			if matches(q.spec, e.sample) {
				batch.Samples = append(batch.Samples, e.sample)
				batch.Anchor = &observer.Anchor{Sequence: e.seq}
			}
		}
		if len(batch.Samples) > 0 {
			q.send(batch)
		}
	}
}

// Fail delivers an error batch to every open query.
func (s *Service) Fail(err error) {
	s.mu.Lock()
	targets := s.snapshotQueries()
	s.mu.Unlock()
	for _, q := range targets {
		q.send(observer.Batch{Err: err})
	}
}

// Emit stores a single sample. It lets the service act as a simulator sink.
func (s *Service) Emit(_ context.Context, sample observer.Sample) error {
	s.Deliver(sample)
	return nil
}

// snapshotQueries copies the open queries. Caller holds s.mu.
func (s *Service) snapshotQueries() []*query {
	out := make([]*query, 0, len(s.queries))
	for q := range s.queries {
		out = append(out, q)
	}
	return out
}

func (s *Service) remove(q *query) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queries, q)
}

// matches applies the query's type and device filter. Sample kind is left to
// the consumer, like a platform store that returns every record of a type.
func matches(spec observer.QuerySpec, sample observer.Sample) bool {
	return sample.Type == spec.Type.Identifier && spec.MatchesDevice(sample.Device)
}

type query struct {
	svc  *Service
	spec observer.QuerySpec
	ch   chan observer.Batch
	done chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func (q *query) Batches() <-chan observer.Batch {
	return q.ch
}

func (q *query) send(b observer.Batch) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	select {
	case q.ch <- b:
	case <-q.done:
	}
}

func (q *query) Close() error {
	q.once.Do(func() {
		close(q.done)
		q.svc.remove(q)
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
	})
	return nil
}
