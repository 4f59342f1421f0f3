package natsstore

import (
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/telepair/pulsewatch/internal/observer"
)

type fakeMsg struct {
	jetstream.Msg
	seq  uint64
	data []byte
}

func (m *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{Sequence: jetstream.SequencePair{Stream: m.seq, Consumer: m.seq}}, nil
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return "pulse.samples.watch-1.heart_rate" }

type fakeBatch struct {
	msgs chan jetstream.Msg
	err  error
}

func (b *fakeBatch) Messages() <-chan jetstream.Msg { return b.msgs }
func (b *fakeBatch) Error() error                   { return b.err }

type fakeConsumer struct {
	jetstream.Consumer
	batch *fakeBatch
}

func (c *fakeConsumer) Fetch(int, ...jetstream.FetchOpt) (jetstream.MessageBatch, error) {
	return c.batch, nil
}

func newFakeBatch(t *testing.T, err error, payloads ...[]byte) *fakeBatch {
	t.Helper()
	b := &fakeBatch{msgs: make(chan jetstream.Msg, len(payloads)), err: err}
	for i, p := range payloads {
		b.msgs <- &fakeMsg{seq: uint64(i + 1), data: p}
	}
	close(b.msgs)
	return b
}

func encodedSample(t *testing.T, value float64) []byte {
	t.Helper()
	data, err := json.Marshal(observer.NewQuantitySample(observer.HeartRate, watch, value,
		observer.UnitCountPerMinute, time.Now()))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	return data
}

func TestFetchKeepsSamplesOnBatchError(t *testing.T) {
	missed := errors.New("heartbeat missed")
	tests := []struct {
		name     string
		payloads [][]byte
		err      error
		want     int
		wantErr  bool
		wantSeq  uint64
	}{
		{
			name:     "idle window",
			payloads: [][]byte{encodedSample(t, 60), encodedSample(t, 61)},
			err:      jetstream.ErrNoMessages,
			want:     2,
			wantSeq:  2,
		},
		{
			name:     "error after messages",
			payloads: [][]byte{encodedSample(t, 60), encodedSample(t, 61), encodedSample(t, 62)},
			err:      missed,
			want:     3,
			wantErr:  true,
			wantSeq:  3,
		},
		{
			name:     "undecodable and error",
			payloads: [][]byte{encodedSample(t, 60), []byte("{"), encodedSample(t, 62)},
			err:      missed,
			want:     2,
			wantErr:  true,
			wantSeq:  3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cons := &fakeConsumer{batch: newFakeBatch(t, tt.err, tt.payloads...)}
			spec := observer.QuerySpec{Type: observer.HeartRate, Devices: []observer.Device{watch}}
			q := newQuery(cons, spec, 0, cfg, slog.Default())

			batch, err := q.fetch()
			if err != nil {
				t.Fatalf("fetch() error = %v", err)
			}
			if len(batch.Samples) != tt.want {
				t.Errorf("fetch() samples = %d, want %d", len(batch.Samples), tt.want)
			}
			if (batch.Err != nil) != tt.wantErr {
				t.Errorf("batch.Err = %v, wantErr %v", batch.Err, tt.wantErr)
			}
			if tt.err == missed && !errors.Is(batch.Err, missed) {
				t.Errorf("batch.Err = %v, want it to wrap %v", batch.Err, missed)
			}
			if batch.Anchor == nil || batch.Anchor.Sequence != tt.wantSeq {
				t.Errorf("batch.Anchor = %v, want sequence %d", batch.Anchor, tt.wantSeq)
			}
		})
	}
}
