package observer

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestQuantityIn(t *testing.T) {
	tests := []struct {
		name    string
		q       Quantity
		target  Unit
		want    float64
		wantErr bool
	}{
		{"same unit", Quantity{Value: 72, Unit: UnitCountPerMinute}, UnitCountPerMinute, 72, false},
		{"per second", Quantity{Value: 1.5, Unit: UnitCountPerSecond}, UnitCountPerMinute, 90, false},
		{"per hour", Quantity{Value: 3600, Unit: UnitCountPerHour}, UnitCountPerMinute, 60, false},
		{"to per second", Quantity{Value: 120, Unit: UnitCountPerMinute}, UnitCountPerSecond, 2, false},
		{"unknown source", Quantity{Value: 5, Unit: "mg/dL"}, UnitCountPerMinute, 0, true},
		{"unknown target", Quantity{Value: 5, Unit: UnitCountPerMinute}, "bpm", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.q.In(tt.target)
			if tt.wantErr {
				if !errors.Is(err, ErrUnitMismatch) {
					t.Fatalf("In() error = %v, want ErrUnitMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("In() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("In() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLookupSampleType(t *testing.T) {
	st, ok := LookupSampleType("heart_rate")
	if !ok || st != HeartRate {
		t.Errorf("LookupSampleType(heart_rate) = %v, %v", st, ok)
	}
	if _, ok := LookupSampleType("steps"); ok {
		t.Error("LookupSampleType(steps) should fail")
	}

	ids := SampleTypes()
	if len(ids) != 3 {
		t.Fatalf("SampleTypes() = %v", ids)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] > ids[i] {
			t.Errorf("SampleTypes() not sorted: %v", ids)
		}
	}
}

func TestNewCapabilitySet(t *testing.T) {
	caps := NewCapabilitySet(HeartRate)
	want := []string{"heart_rate.read", "heart_rate.share"}
	if len(caps) != len(want) {
		t.Fatalf("NewCapabilitySet() = %v", caps)
	}
	for i, c := range caps {
		if c.String() != want[i] {
			t.Errorf("caps[%d] = %q, want %q", i, c.String(), want[i])
		}
	}
}

func TestConvert(t *testing.T) {
	dev := Device{ID: "watch"}
	at := time.Unix(1700000000, 0)

	r, _, err := convert(HeartRate, NewQuantitySample(HeartRate, dev, 61.5, UnitCountPerMinute, at))
	if err != nil {
		t.Fatalf("convert() error = %v", err)
	}
	if r.Value != 61.5 || r.Int() != 61 || !r.Timestamp.Equal(at) {
		t.Errorf("convert() = %+v", r)
	}

	wrongType := NewQuantitySample(RespiratoryRate, dev, 14, UnitCountPerMinute, at)
	if _, reason, err := convert(HeartRate, wrongType); err == nil || reason != DropType {
		t.Errorf("convert(wrong type) reason = %q, err = %v", reason, err)
	}

	correlation := NewQuantitySample(HeartRate, dev, 60, UnitCountPerMinute, at)
	correlation.Kind = KindCorrelation
	if _, reason, err := convert(HeartRate, correlation); err == nil || reason != DropKind {
		t.Errorf("convert(correlation) reason = %q, err = %v", reason, err)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    Command
		wantErr bool
	}{
		{"start", CommandStart, false},
		{" STOP\n", CommandStop, false},
		{"restart", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCommand(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEventKindString(t *testing.T) {
	if KindReading.String() != "reading" || KindStreamEnded.String() != "stream_ended" ||
		KindFault.String() != "fault" {
		t.Error("unexpected EventKind names")
	}
	if got := EventKind(42).String(); got != "unknown(42)" {
		t.Errorf("EventKind(42).String() = %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() without device id should fail")
	}
	cfg.DeviceID = "watch-1"
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if cfg.DeviceName != "watch-1" {
		t.Errorf("DeviceName = %q, want device id", cfg.DeviceName)
	}

	cfg = Config{DeviceID: "watch-1"}
	cfg.SetDefaults()
	if cfg.SampleType != defaultSampleType || cfg.QueueSize != defaultQueueSize ||
		cfg.SubscriberBuffer != defaultSubscriberBuffer {
		t.Errorf("SetDefaults() = %+v", cfg)
	}
}
