package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("PULSE_DATA", "/var/lib/pulse")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"~", home},
		{"~/data", filepath.Join(home, "data")},
		{"./data", filepath.Join(cwd, "data")},
		{"/tmp/x/../y", "/tmp/y"},
		{"$PULSE_DATA/nats", "/var/lib/pulse/nats"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandPath(tt.in)
			if err != nil {
				t.Fatalf("ExpandPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")
	got, err := EnsureDir(dir)
	if err != nil || got != dir {
		t.Fatalf("EnsureDir() = %q, %v", got, err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	if _, err := EnsureDir(dir); err != nil {
		t.Errorf("EnsureDir() on existing dir error = %v", err)
	}

	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := EnsureDir(file); err == nil {
		t.Error("EnsureDir() on a file expected error")
	}
}

func TestEnsureParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "pulse.log")
	if _, err := EnsureParent(path); err != nil {
		t.Fatalf("EnsureParent() error = %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("parent not created: %v", err)
	}
}

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":9091", false},
		{"127.0.0.1:0", false},
		{"", true},
		{"localhost", true},
		{"host:port:extra", true},
		{"[::1]:9091", false},
		{"metrics.local:9091", false},
		{"localhost:99999", true},
		{"localhost:http", true},
		{"bad host:80", true},
	}
	for _, tt := range tests {
		if err := ValidateAddr(tt.addr); (err != nil) != tt.wantErr {
			t.Errorf("ValidateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
		}
	}
}
