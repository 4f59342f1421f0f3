package embed

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"
)

func startServer(t *testing.T, cfg *ServerConfig) *EmbeddedServer {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping embedded NATS server in short mode")
	}
	srv, err := NewEmbeddedServer(cfg)
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func TestServerConfigValidate(t *testing.T) {
	user, err := nkeys.CreateUser()
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	pub, err := user.PublicKey()
	if err != nil {
		t.Fatalf("PublicKey() error = %v", err)
	}

	tests := []struct {
		name     string
		config   ServerConfig
		wantErr  bool
		wantPort int
	}{
		{"zero values get defaults", ServerConfig{}, false, DefaultPort},
		{"random port kept", ServerConfig{Port: RandomPort}, false, RandomPort},
		{"port out of range", ServerConfig{Port: 70000}, true, 0},
		{"bad log level", ServerConfig{LogLevel: "verbose"}, true, 0},
		{"lowercase log level", ServerConfig{LogLevel: "debug"}, false, DefaultPort},
		{"valid nkey user", ServerConfig{NKeyUsers: []string{pub}}, false, DefaultPort},
		{"invalid nkey user", ServerConfig{NKeyUsers: []string{"not-a-key"}}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if cfg.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cfg.Port, tt.wantPort)
			}
			if cfg.Host == "" || cfg.StorePath == "" || cfg.MaxMemory <= 0 || cfg.WriteDeadline <= 0 {
				t.Errorf("Validate() left zero values: %+v", cfg)
			}
		})
	}
}

func TestServerOptions(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.LogLevel = "OFF"
	opts := cfg.options()
	if !opts.JetStream || !opts.NoLog || !opts.NoSigs {
		t.Errorf("options() = %+v", opts)
	}
	cfg.LogLevel = "TRACE"
	if opts := cfg.options(); opts.NoLog || !opts.Trace {
		t.Errorf("TRACE options() = %+v", opts)
	}
}

func TestEmbeddedServerLifecycle(t *testing.T) {
	srv := startServer(t, &ServerConfig{Port: RandomPort, StorePath: t.TempDir(), LogLevel: "OFF"})

	if !srv.IsRunning() {
		t.Fatal("IsRunning() = false after Start")
	}
	if err := srv.HealthCheck(); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	nc, err := nats.Connect(srv.ClientURL(), nats.Timeout(time.Second))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	nc.Close()

	stats, err := srv.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Connections < 0 {
		t.Errorf("Stats() = %+v", stats)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if srv.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
	if err := srv.HealthCheck(); err == nil {
		t.Error("HealthCheck() should fail after Stop")
	}
}

func TestEmbeddedServerNKeyAuth(t *testing.T) {
	user, err := nkeys.CreateUser()
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	pub, _ := user.PublicKey()

	srv := startServer(t, &ServerConfig{
		Port:      RandomPort,
		StorePath: t.TempDir(),
		LogLevel:  "OFF",
		NKeyUsers: []string{pub},
	})

	if nc, err := nats.Connect(srv.ClientURL(), nats.Timeout(time.Second)); err == nil {
		nc.Close()
		t.Fatal("anonymous connection should be rejected")
	}

	nc, err := nats.Connect(srv.ClientURL(), nats.Nkey(pub, user.Sign), nats.Timeout(time.Second))
	if err != nil {
		t.Fatalf("nkey connection error = %v", err)
	}
	nc.Close()
}
