// Package natsstore is a sensor service backed by NATS JetStream.
//
// Samples are JSON messages on "<prefix>.<device>.<type>" in one stream.
// Continuous queries are ordered consumers, and the stream sequence of the
// last delivered message is the query anchor. Capability grants are kept in a
// KV bucket under "<type>.<access>".
package natsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telepair/pulsewatch/internal/observer"
	"github.com/telepair/pulsewatch/pkg/natsx/client"
)

// Grant values stored in the bucket.
const (
	GrantAllowed = "granted"
	GrantDenied  = "denied"
)

var _ observer.Service = (*Store)(nil)

// Store implements observer.Service on JetStream.
type Store struct {
	cfg    Config
	nc     *client.Client
	stream *client.Stream
	grants *client.KV
	logger *slog.Logger
}

// New ensures the sample stream and grant bucket exist.
func New(ctx context.Context, nc *client.Client, cfg Config) (*Store, error) {
	if nc == nil {
		return nil, errors.New("nats client is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	storage := jetstream.FileStorage
	if cfg.OnMemory {
		storage = jetstream.MemoryStorage
	}
	stream, err := nc.EnsureStream(ctx, client.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.SubjectPrefix + ".>"},
		Storage:    storage,
		MaxAge:     cfg.MaxAge,
		Duplicates: defaultDuplicates,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure sample stream: %w", err)
	}

	grants, err := nc.KeyValue(ctx, client.BucketConfig{
		Name:     cfg.GrantBucket,
		History:  5,
		OnMemory: cfg.OnMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("open grant bucket: %w", err)
	}

	return &Store{
		cfg:    cfg,
		nc:     nc,
		stream: stream,
		grants: grants,
		logger: slog.Default().With("component", "sensor.natsstore", "stream", cfg.Stream),
	}, nil
}

// Subject returns the subject samples of sampleType from device are stored on.
func (s *Store) Subject(device observer.Device, sampleType string) (string, error) {
	if err := client.ValidateToken(device.ID); err != nil {
		return "", fmt.Errorf("device id: %w", err)
	}
	if err := client.ValidateToken(sampleType); err != nil {
		return "", fmt.Errorf("sample type: %w", err)
	}
	return s.cfg.SubjectPrefix + "." + device.ID + "." + sampleType, nil
}

// Available implements observer.Service.
func (s *Store) Available(ctx context.Context) bool {
	if !s.nc.IsConnected() {
		return false
	}
	if _, err := s.stream.Info(ctx); err != nil {
		s.logger.Warn("sample stream unavailable", "error", err)
		return false
	}
	return true
}

// RequestAuthorization implements observer.Service. Every capability must be
// granted. An undecided capability is granted and recorded when AutoGrant is
// set, and denied otherwise.
func (s *Store) RequestAuthorization(ctx context.Context, caps observer.CapabilitySet) error {
	if len(caps) == 0 {
		return errors.New("empty capability set")
	}
	for _, c := range caps {
		key := c.String()
		value, err := s.grants.Get(ctx, key)
		switch {
		case errors.Is(err, client.ErrKeyNotFound):
			if !s.cfg.AutoGrant {
				return fmt.Errorf("%w: %s was never granted", observer.ErrAuthorizationDenied, key)
			}
			if err := s.grants.Put(ctx, key, []byte(GrantAllowed)); err != nil {
				return fmt.Errorf("record grant %s: %w", key, err)
			}
			s.logger.Info("capability auto-granted", "capability", key)
		case err != nil:
			return fmt.Errorf("read grant %s: %w", key, err)
		case string(value) != GrantAllowed:
			return fmt.Errorf("%w: %s is %s", observer.ErrAuthorizationDenied, key, value)
		}
	}
	return nil
}

// Grant records caps as allowed.
func (s *Store) Grant(ctx context.Context, caps observer.CapabilitySet) error {
	return s.setGrants(ctx, caps, GrantAllowed)
}

// Revoke records caps as denied.
func (s *Store) Revoke(ctx context.Context, caps observer.CapabilitySet) error {
	return s.setGrants(ctx, caps, GrantDenied)
}

func (s *Store) setGrants(ctx context.Context, caps observer.CapabilitySet, value string) error {
	for _, c := range caps {
		if err := s.grants.Put(ctx, c.String(), []byte(value)); err != nil {
			return err
		}
		s.logger.Info("capability updated", "capability", c.String(), "grant", value)
	}
	return nil
}

// Grants returns every recorded capability decision.
func (s *Store) Grants(ctx context.Context) (map[string]string, error) {
	keys, err := s.grants.Keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := s.grants.Get(ctx, key)
		if errors.Is(err, client.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = string(value)
	}
	return out, nil
}

// Emit stores a sample on its device subject. The sample id deduplicates
// retries.
func (s *Store) Emit(ctx context.Context, sample observer.Sample) error {
	subject, err := s.Subject(sample.Device, sample.Type)
	if err != nil {
		return err
	}
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	if _, err := s.stream.Publish(ctx, subject, data, sample.ID.String()); err != nil {
		return err
	}
	return nil
}

// OpenQuery implements observer.Service.
func (s *Store) OpenQuery(ctx context.Context, spec observer.QuerySpec) (observer.Query, error) {
	if spec.Limit < 0 {
		return nil, fmt.Errorf("invalid query limit %d", spec.Limit)
	}
	filters, err := s.filterSubjects(spec)
	if err != nil {
		return nil, err
	}

	consCfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: filters,
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if spec.Anchor != nil {
		consCfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consCfg.OptStartSeq = spec.Anchor.Sequence + 1
	}

	info, err := s.stream.Info(ctx)
	if err != nil {
		return nil, err
	}
	cons, err := s.stream.OrderedConsumer(ctx, consCfg)
	if err != nil {
		return nil, err
	}

	q := newQuery(cons, spec, info.State.LastSeq, s.cfg, s.logger)
	go q.run()
	s.logger.Debug("query opened", "filters", filters, "backlog_until", info.State.LastSeq)
	return q, nil
}

func (s *Store) filterSubjects(spec observer.QuerySpec) ([]string, error) {
	if err := client.ValidateToken(spec.Type.Identifier); err != nil {
		return nil, fmt.Errorf("sample type: %w", err)
	}
	if len(spec.Devices) == 0 {
		return []string{s.cfg.SubjectPrefix + ".*." + spec.Type.Identifier}, nil
	}
	filters := make([]string, 0, len(spec.Devices))
	for _, d := range spec.Devices {
		subject, err := s.Subject(d, spec.Type.Identifier)
		if err != nil {
			return nil, err
		}
		filters = append(filters, subject)
	}
	return filters, nil
}
