package device

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v4/host"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"watch-1", "watch-1"},
		{"Pixel Watch 2", "pixel-watch-2"},
		{"host.local", "host-local"},
		{"  --a..b--  ", "a-b"},
		{"under_score", "under_score"},
		{"***", ""},
		{"", ""},
		{strings.Repeat("x", 80), strings.Repeat("x", maxIDLength)},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func stubHost(t *testing.T, info *host.InfoStat, err error) {
	t.Helper()
	orig := hostInfo
	hostInfo = func(context.Context) (*host.InfoStat, error) { return info, err }
	t.Cleanup(func() { hostInfo = orig })
}

func TestLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("override", func(t *testing.T) {
		stubHost(t, nil, errors.New("must not be called"))
		d, err := Local(ctx, "My Watch")
		if err != nil {
			t.Fatalf("Local() error = %v", err)
		}
		if d.ID != "my-watch" || d.Name != "My Watch" {
			t.Errorf("Local() = %+v", d)
		}
	})

	t.Run("hostname", func(t *testing.T) {
		stubHost(t, &host.InfoStat{Hostname: "bench.lab", Platform: "ubuntu", PlatformVersion: "24.04"}, nil)
		d, err := Local(ctx, "")
		if err != nil {
			t.Fatalf("Local() error = %v", err)
		}
		if d.ID != "bench-lab" || d.Name != "bench.lab (ubuntu 24.04)" {
			t.Errorf("Local() = %+v", d)
		}
	})

	t.Run("host id fallback", func(t *testing.T) {
		stubHost(t, &host.InfoStat{Hostname: "???", HostID: "ABC-123"}, nil)
		d, err := Local(ctx, "")
		if err != nil {
			t.Fatalf("Local() error = %v", err)
		}
		if d.ID != "abc-123" {
			t.Errorf("Local() id = %q", d.ID)
		}
	})

	t.Run("host error", func(t *testing.T) {
		stubHost(t, nil, errors.New("no host"))
		if _, err := Local(ctx, ""); err == nil {
			t.Error("Local() should fail when host info fails")
		}
	})

	t.Run("real host", func(t *testing.T) {
		d, err := Local(ctx, "")
		if err != nil {
			t.Skipf("host info unavailable: %v", err)
		}
		if d.ID == "" || d.ID != Sanitize(d.ID) {
			t.Errorf("Local() id = %q is not a clean token", d.ID)
		}
	})
}
