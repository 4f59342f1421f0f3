package client

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateNATSURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"nats scheme", "nats://localhost:4222", false},
		{"tls scheme", "tls://broker.example.com:4222", false},
		{"websocket", "wss://broker.example.com", false},
		{"empty", "", true},
		{"http scheme", "http://localhost:4222", true},
		{"no host", "nats://:4222", true},
		{"long host", "nats://" + strings.Repeat("a", MaxHostnameLength+1) + ":4222", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateNATSURL(tt.url); (err != nil) != tt.wantErr {
				t.Errorf("ValidateNATSURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSubject(t *testing.T) {
	tests := []struct {
		subject string
		wantErr bool
	}{
		{"pulse.samples.watch-1.heart_rate", false},
		{"pulse.samples.>", false},
		{"pulse.*.watch", false},
		{"pulse.>.watch", true},
		{"pulse..watch", true},
		{"pulse.samples.", true},
		{"pulse samples", true},
		{"", true},
		{strings.Repeat("a", MaxSubjectLength+1), true},
	}
	for _, tt := range tests {
		err := ValidateSubject(tt.subject)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSubject(%q) error = %v, wantErr %v", tt.subject, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidSubject) {
			t.Errorf("ValidateSubject(%q) error = %v, want ErrInvalidSubject", tt.subject, err)
		}
	}
}

func TestValidateToken(t *testing.T) {
	for _, ok := range []string{"watch-1", "Pixel_Watch", "abc123"} {
		if err := ValidateToken(ok); err != nil {
			t.Errorf("ValidateToken(%q) error = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a.b", "a b", "*", ">"} {
		if err := ValidateToken(bad); err == nil {
			t.Errorf("ValidateToken(%q) should fail", bad)
		}
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"heart_rate.read", false},
		{"a-b_c.d", false},
		{"", true},
		{".leading", true},
		{"trailing.", true},
		{"double..dot", true},
		{"bad/char", true},
		{strings.Repeat("k", MaxKeyLength+1), true},
	}
	for _, tt := range tests {
		err := ValidateKey(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidKey) {
			t.Errorf("ValidateKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
		}
	}
}

func TestValidateBucketName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"pulse-grants", false},
		{"bucket_1", false},
		{"", true},
		{"-leading", true},
		{"has.dot", true},
		{"has space", true},
		{strings.Repeat("b", MaxBucketNameLength+1), true},
	}
	for _, tt := range tests {
		if err := ValidateBucketName(tt.name); (err != nil) != tt.wantErr {
			t.Errorf("ValidateBucketName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestValidateValue(t *testing.T) {
	if err := ValidateValue(nil); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ValidateValue(nil) error = %v", err)
	}
	if err := ValidateValue([]byte{}); err != nil {
		t.Errorf("ValidateValue(empty) error = %v", err)
	}
	if err := ValidateValue(make([]byte, MaxValueSize+1)); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ValidateValue(oversized) error = %v", err)
	}
}

func TestCheckConnectivity(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := CheckConnectivity(ctx, "invalid-url"); err == nil {
		t.Error("CheckConnectivity(invalid-url) should fail")
	}
	if err := CheckConnectivity(ctx, "nats://127.0.0.1:1"); err == nil {
		t.Error("CheckConnectivity() to a closed port should fail")
	}

	expired, cancelExpired := context.WithTimeout(context.Background(), -time.Second)
	defer cancelExpired()
	if err := CheckConnectivity(expired, "nats://localhost:4222"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CheckConnectivity() with expired ctx error = %v", err)
	}
}
