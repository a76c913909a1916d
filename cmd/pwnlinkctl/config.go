package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/session"
	"github.com/SolidHal/pwnagotchi-flipper/internal/server"
	"github.com/SolidHal/pwnagotchi-flipper/internal/supervisor"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport"
	"github.com/spf13/pflag"
)

const defaultStatusAddr = "127.0.0.1:8667"

type appConfig struct {
	Transport    transport.Config
	Supervisor   supervisor.Config
	SnapshotFile string
	Status       server.Config
}

type fileConfig struct {
	Port              string   `toml:"port"`
	Baud              int      `toml:"baud"`
	ReadTimeout       string   `toml:"read_timeout"`
	HandshakeInterval string   `toml:"handshake_interval"`
	BackoffMultiplier float64  `toml:"handshake_backoff_multiplier"`
	BackoffMax        string   `toml:"handshake_backoff_max"`
	BackoffJitter     bool     `toml:"handshake_backoff_jitter"`
	ErrorBudget       int      `toml:"error_budget"`
	SendPlaceholders  bool     `toml:"send_placeholders"`
	SnapshotFile      string   `toml:"snapshot_file"`
	StatusAddr        string   `toml:"status_addr"`
	StatusCORSOrigins []string `toml:"status_cors_origins"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Transport:  transport.DefaultConfig(),
		Supervisor: supervisor.DefaultConfig(),
		Status:     server.Config{Addr: defaultStatusAddr},
	}
}

// loadConfig overlays the keys present in path onto the defaults. An empty
// path yields the defaults.
func loadConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return appConfig{}, fmt.Errorf("load pwnlink config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return appConfig{}, fmt.Errorf("load pwnlink config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Transport.Path = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		cfg.Transport.BaudRate = raw.Baud
	}
	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		cfg.Transport.ReadTimeout = d
	}
	if meta.IsDefined("handshake_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HandshakeInterval))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse handshake_interval: %w", err)
		}
		cfg.Supervisor.Session = session.Config{
			HandshakeInterval: d,
			ErrorBudget:       cfg.Supervisor.Session.ErrorBudget,
		}.WithDefaults()
	}
	if meta.IsDefined("handshake_backoff_multiplier") {
		if raw.BackoffMultiplier < 1 {
			return appConfig{}, fmt.Errorf("handshake_backoff_multiplier must be at least 1")
		}
		cfg.Supervisor.Session.Backoff.Multiplier = raw.BackoffMultiplier
	}
	if meta.IsDefined("handshake_backoff_max") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.BackoffMax))
		if err != nil {
			return appConfig{}, fmt.Errorf("parse handshake_backoff_max: %w", err)
		}
		cfg.Supervisor.Session.Backoff.MaxDelay = d
	}
	if meta.IsDefined("handshake_backoff_jitter") {
		cfg.Supervisor.Session.Backoff.Jitter = raw.BackoffJitter
	}
	if meta.IsDefined("error_budget") {
		cfg.Supervisor.Session.ErrorBudget = raw.ErrorBudget
	}
	if meta.IsDefined("send_placeholders") {
		cfg.Supervisor.Dispatch.SendPlaceholders = raw.SendPlaceholders
	}
	if meta.IsDefined("snapshot_file") {
		cfg.SnapshotFile = strings.TrimSpace(raw.SnapshotFile)
	}
	if meta.IsDefined("status_addr") {
		cfg.Status.Addr = strings.TrimSpace(raw.StatusAddr)
	}
	if meta.IsDefined("status_cors_origins") {
		cfg.Status.CORSOrigins = normalizeOrigins(raw.StatusCORSOrigins)
	}

	return cfg, cfg.validate()
}

func (c appConfig) validate() error {
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if c.Supervisor.Session.HandshakeInterval <= 0 {
		return fmt.Errorf("handshake_interval must be positive")
	}
	if c.Supervisor.Session.ErrorBudget <= 0 {
		return fmt.Errorf("error_budget must be positive")
	}
	if b := c.Supervisor.Session.Backoff; b.MaxDelay < b.InitialDelay {
		return fmt.Errorf("handshake_backoff_max must not be below handshake_interval")
	}
	return nil
}

type overrideFlags struct {
	port       string
	baud       int
	statusAddr string
	snapshot   string
}

func (o *overrideFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.port, "port", "", "serial device (overrides config)")
	fs.IntVar(&o.baud, "baud", 0, "baud rate (overrides config)")
	fs.StringVar(&o.statusAddr, "status-addr", "", "status server address, \"off\" to disable (overrides config)")
	fs.StringVar(&o.snapshot, "snapshot-file", "", "UI snapshot TOML file (overrides config)")
}

func (o *overrideFlags) apply(fs *pflag.FlagSet, cfg *appConfig) {
	if fs.Changed("port") {
		cfg.Transport.Path = strings.TrimSpace(o.port)
	}
	if fs.Changed("baud") {
		cfg.Transport.BaudRate = o.baud
	}
	if fs.Changed("status-addr") {
		addr := strings.TrimSpace(o.statusAddr)
		if addr == "off" {
			addr = ""
		}
		cfg.Status.Addr = addr
	}
	if fs.Changed("snapshot-file") {
		cfg.SnapshotFile = strings.TrimSpace(o.snapshot)
	}
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		v := strings.TrimSpace(origin)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
