// Package simulator emits synthetic sensor samples so the service can run
// without a wearable attached.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/telepair/pulsewatch/internal/observer"
)

var simulatorName = "sample-simulator"

// Sink receives generated samples.
type Sink interface {
	Emit(ctx context.Context, sample observer.Sample) error
}

// Simulator produces a bounded random walk around the base rate.
type Simulator struct {
	cfg        Config
	sampleType observer.SampleType
	device     observer.Device
	sink       Sink
	rng        *rand.Rand

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	healthy atomic.Bool
	emitted atomic.Uint64

	current float64
	logger  *slog.Logger
}

// New creates a simulator for device writing into sink.
func New(cfg Config, device observer.Device, sink Sink) (*Simulator, error) {
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if device.ID == "" {
		return nil, errors.New("device id is required")
	}
	if err := cfg.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse simulator config: %w", err)
	}
	sampleType, _ := observer.LookupSampleType(cfg.SampleType)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Simulator{
		cfg:        cfg,
		sampleType: sampleType,
		device:     device,
		sink:       sink,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
		ctx:        ctx,
		cancel:     cancel,
		current:    cfg.BaseBPM,
		logger:     slog.Default().With("component", simulatorName, "device", device.ID),
	}
	s.healthy.Store(true)
	return s, nil
}

// Name returns the simulator name.
func (s *Simulator) Name() string {
	return simulatorName
}

// Start begins emitting samples every interval.
func (s *Simulator) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("simulator already started")
	}
	if s.ctx.Err() != nil {
		return errors.New("simulator stopped")
	}
	s.logger.Info("starting simulator", "sample_type", s.cfg.SampleType,
		"base_bpm", s.cfg.BaseBPM, "interval", s.cfg.Interval)
	s.wg.Go(s.run)
	return nil
}

// Stop halts emission and waits for the loop to exit.
func (s *Simulator) Stop() error {
	s.cancel()
	s.wg.Wait()
	if s.started.Load() {
		s.logger.Info("simulator stopped", "emitted", s.emitted.Load())
	}
	return nil
}

// Health reports whether the last emission succeeded.
func (s *Simulator) Health() error {
	if !s.started.Load() {
		return errors.New("simulator not started")
	}
	if !s.healthy.Load() {
		return errors.New("simulator failed to emit last sample")
	}
	return nil
}

// Emitted returns how many samples reached the sink.
func (s *Simulator) Emitted() uint64 {
	return s.emitted.Load()
}

func (s *Simulator) run() {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.emit(time.Now())
	for {
		select {
		case <-s.ctx.Done():
			return
		case t := <-ticker.C:
			s.emit(t)
		}
	}
}

func (s *Simulator) emit(at time.Time) {
	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Interval)
	defer cancel()

	value, err := observer.Quantity{Value: s.next(), Unit: observer.UnitCountPerMinute}.In(s.cfg.Unit)
	if err != nil {
		s.logger.Error("failed to convert sample", "error", err)
		return
	}
	sample := observer.NewQuantitySample(s.sampleType, s.device, value, s.cfg.Unit, at)
	if err := s.sink.Emit(ctx, sample); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.healthy.Store(false)
		s.logger.Warn("failed to emit sample", "error", err)
		return
	}
	s.healthy.Store(true)
	s.emitted.Add(1)
	s.logger.Debug("sample emitted", "value", value, "unit", s.cfg.Unit)
}

// next advances the walk by up to Jitter, pulled back toward the base rate
// and clamped to a physiological range.
func (s *Simulator) next() float64 {
	step := (s.rng.Float64()*2 - 1) * s.cfg.Jitter
	pull := (s.cfg.BaseBPM - s.current) * 0.1
	s.current = math.Max(minBPM, math.Min(maxBPM, s.current+step+pull))
	return math.Round(s.current*10) / 10
}
