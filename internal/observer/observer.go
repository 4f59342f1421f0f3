// Package observer streams normalized readings from a live sensor feed.
//
// An Observer asks a Service for permission to read one sample type, opens a
// continuous query restricted to the local device and republishes every
// matching sample as a Reading to its subscribers. All state changes and
// publications run on one delivery goroutine, so subscribers observe events in
// arrival order and never see a reading after the StreamEnded that a Stop
// produced.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var componentName = "sensor-observer"

// Option customizes an Observer.
type Option func(*Observer)

// WithMetrics sets the instrumentation sink.
func WithMetrics(m Metrics) Option {
	return func(o *Observer) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithAvailabilityHook registers fn to be called on every availability change.
// fn runs on the delivery goroutine.
func WithAvailabilityHook(fn func(available bool)) Option {
	return func(o *Observer) {
		if fn != nil {
			o.hooks = append(o.hooks, fn)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Observer) {
		if logger != nil {
			o.logger = logger.With("component", componentName)
		}
	}
}

// Observer starts and stops monitoring of one sensor sample type.
type Observer struct {
	cfg     Config
	svc     Service
	device  Device
	exec    *executor
	metrics Metrics
	hooks   []func(bool)
	logger  *slog.Logger

	available atomic.Bool
	closed    atomic.Bool
	wg        sync.WaitGroup

	// Owned by the delivery goroutine.
	subs       []*Subscription
	gen        uint64
	active     bool
	query      Query
	cancelAuth context.CancelFunc
}

// New creates an observer over svc. The observer is idle until Start.
func New(svc Service, cfg Config, opts ...Option) (*Observer, error) {
	if svc == nil {
		return nil, errors.New("sensor service is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observer config: %w", err)
	}

	o := &Observer{
		cfg:     cfg,
		svc:     svc,
		device:  cfg.Device(),
		metrics: noopMetrics{},
		logger:  slog.Default().With("component", componentName),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("sample_type", cfg.SampleType, "device", o.device.ID)
	o.exec = newExecutor(cfg.QueueSize)
	return o, nil
}

// IsAvailable reports whether monitoring is authorized and running, or
// optimistically assumed to be while authorization is pending.
func (o *Observer) IsAvailable() bool {
	return o.available.Load()
}

// Start begins monitoring. It returns once authorization has been requested;
// the query is opened in the background after authorization succeeds.
// Asynchronous failures are published as KindFault events.
func (o *Observer) Start(ctx context.Context) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if !o.svc.Available(ctx) {
		o.logger.Warn("sensor service unavailable")
		return ErrSensorUnavailable
	}
	sampleType, ok := LookupSampleType(o.cfg.SampleType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSampleType, o.cfg.SampleType)
	}
	caps := NewCapabilitySet(sampleType)

	var (
		gen     uint64
		authCtx context.Context
		err     error
	)
	if !o.exec.dispatchWait(context.Background(), func() {
		if o.active {
			err = ErrAlreadyStarted
			return
		}
		o.active = true
		o.gen++
		gen = o.gen
		authCtx, o.cancelAuth = context.WithCancel(context.WithoutCancel(ctx))
		o.setAvailable(true)
	}) {
		return ErrClosed
	}
	if err != nil {
		return err
	}

	o.logger.Info("starting sensor observer", "capabilities", len(caps))
	o.wg.Go(func() {
		o.authorizeAndSubscribe(authCtx, gen, sampleType, caps)
	})
	return nil
}

// Stop publishes StreamEnded to all subscribers and releases the query.
// Calling Stop when nothing is running still publishes StreamEnded.
func (o *Observer) Stop() error {
	return o.stop(context.Background())
}

// stop gives up waiting once ctx is done. The query is still released in the
// background if the delivery goroutine reaches the stop later.
func (o *Observer) stop(ctx context.Context) error {
	released := make(chan error, 1)
	if !o.exec.dispatchWait(ctx, func() {
		o.gen++
		if o.cancelAuth != nil {
			o.cancelAuth()
			o.cancelAuth = nil
		}
		o.active = false
		q := o.query
		o.query = nil
		o.setAvailable(false)
		o.deliver(endedEvent())
		if q == nil {
			released <- nil
			return
		}
		o.wg.Go(func() { released <- q.Close() })
	}) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stop: %w", err)
		}
		return ErrClosed
	}

	select {
	case err := <-released:
		if err != nil {
			o.logger.Warn("failed to release sensor query", "error", err)
			return fmt.Errorf("release query: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("release query: %w", ctx.Err())
	}
	o.logger.Info("sensor observer stopped")
	return nil
}

// Handle executes a start or stop command.
func (o *Observer) Handle(ctx context.Context, cmd Command) error {
	switch cmd {
	case CommandStart:
		return o.Start(ctx)
	case CommandStop:
		return o.Stop()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// Close stops monitoring, closes every subscription and waits for background
// work to finish or ctx to expire.
func (o *Observer) Close(ctx context.Context) error {
	if !o.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := o.stop(ctx); err != nil && !errors.Is(err, ErrClosed) {
		o.logger.Warn("stop during close failed", "error", err)
	}
	o.exec.dispatch(o.closeSubscribers)

	if err := o.exec.shutdown(ctx); err != nil {
		return fmt.Errorf("observer shutdown: %w", err)
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("observer shutdown: %w", ctx.Err())
	}
}

// authorizeAndSubscribe runs off the delivery goroutine. The query is only
// opened after authorization succeeds.
func (o *Observer) authorizeAndSubscribe(ctx context.Context, gen uint64, sampleType SampleType, caps CapabilitySet) {
	if err := o.svc.RequestAuthorization(ctx, caps); err != nil {
		o.fail(gen, StageAuthorization, fmt.Errorf("request authorization: %w", err))
		return
	}

	spec := QuerySpec{
		Type:    sampleType,
		Devices: []Device{o.device},
		Limit:   NoLimit,
	}
	q, err := o.svc.OpenQuery(ctx, spec)
	if err != nil {
		o.fail(gen, StageQuery, fmt.Errorf("open query: %w", err))
		return
	}

	registered := false
	o.exec.dispatchWait(context.Background(), func() {
		// Stop may have run while authorization was pending.
		if o.gen != gen {
			return
		}
		o.query = q
		registered = true
		o.logger.Info("sensor query opened")
	})
	if !registered {
		_ = q.Close()
		return
	}

	o.pump(gen, sampleType, q)
}

// fail resets availability for a start attempt that is still current.
func (o *Observer) fail(gen uint64, stage Stage, err error) {
	o.exec.dispatch(func() {
		if o.gen != gen {
			o.logger.Debug("ignoring failure of superseded start", "stage", stage, "error", err)
			return
		}
		o.active = false
		if o.cancelAuth != nil {
			o.cancelAuth()
			o.cancelAuth = nil
		}
		o.setAvailable(false)
		o.metrics.FaultRaised(stage)
		o.logger.Warn("sensor observer start failed", "stage", stage, "error", err)
		o.deliver(faultEvent(err))
	})
}

// pump forwards batches from q to the delivery goroutine until q is closed.
func (o *Observer) pump(gen uint64, sampleType SampleType, q Query) {
	for batch := range q.Batches() {
		if !o.exec.dispatch(func() { o.handleBatch(gen, sampleType, batch) }) {
			return
		}
	}
}

// handleBatch runs on the delivery goroutine.
func (o *Observer) handleBatch(gen uint64, sampleType SampleType, batch Batch) {
	if o.gen != gen {
		return
	}
	if batch.Err != nil {
		o.metrics.FaultRaised(StageBatch)
		o.logger.Warn("sensor query delivered error", "error", batch.Err)
		o.deliver(faultEvent(fmt.Errorf("sensor query: %w", batch.Err)))
	}
	for _, sample := range batch.Samples {
		reading, reason, err := convert(sampleType, sample)
		if err != nil {
			o.metrics.SampleDropped(reason)
			o.logger.Debug("dropping sample", "sample_id", sample.ID, "reason", reason, "error", err)
			continue
		}
		o.metrics.ReadingPublished(reading)
		o.deliver(readingEvent(reading))
	}
}

// setAvailable runs on the delivery goroutine.
func (o *Observer) setAvailable(v bool) {
	if o.available.Swap(v) == v {
		return
	}
	o.logger.Info("availability changed", "available", v)
	o.metrics.AvailabilityChanged(v)
	for _, fn := range o.hooks {
		fn(v)
	}
}

// convert turns a raw sample into a Reading in the type's canonical unit.
func convert(sampleType SampleType, s Sample) (Reading, DropReason, error) {
	if s.Kind != KindQuantity {
		return Reading{}, DropKind, fmt.Errorf("unexpected sample kind %q", s.Kind)
	}
	if s.Type != sampleType.Identifier {
		return Reading{}, DropType, fmt.Errorf("unexpected sample type %q", s.Type)
	}
	value, err := s.Quantity.In(sampleType.Unit)
	if err != nil {
		return Reading{}, DropUnit, err
	}
	return Reading{ID: uuid.New(), Value: value, Timestamp: s.Start}, "", nil
}
