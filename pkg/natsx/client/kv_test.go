package client

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

func TestBucketConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  BucketConfig
		wantErr bool
	}{
		{"valid", BucketConfig{Name: "pulse-grants", History: 5, TTL: time.Hour}, false},
		{"empty name", BucketConfig{}, true},
		{"leading hyphen", BucketConfig{Name: "-grants"}, true},
		{"special characters", BucketConfig{Name: "grants@home"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBucketConfigStorage(t *testing.T) {
	file := BucketConfig{Name: "a", History: 3, MaxBytes: 1024}
	cfg := file.keyValueConfig()
	if cfg.Storage != jetstream.FileStorage || cfg.Bucket != "a" || cfg.History != 3 || cfg.MaxBytes != 1024 {
		t.Errorf("keyValueConfig() = %+v", cfg)
	}

	mem := BucketConfig{Name: "b", OnMemory: true}
	if got := mem.keyValueConfig().Storage; got != jetstream.MemoryStorage {
		t.Errorf("OnMemory storage = %v, want memory", got)
	}
}
