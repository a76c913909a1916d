package transport

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Path = ""
	if err := cfg.Validate(); !errors.Is(err, ErrPortRequired) {
		t.Fatalf("expected ErrPortRequired, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.BaudRate = 0
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidBaudRate) {
		t.Fatalf("expected ErrInvalidBaudRate, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.ReadTimeout = -time.Second
	if _, err := NewSerialOpener(cfg); !errors.Is(err, ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}
}

func TestSerialOpenerMissingDevice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = "/dev/pwnlink-does-not-exist"
	opener, err := NewSerialOpener(cfg)
	if err != nil {
		t.Fatalf("new opener: %v", err)
	}
	if _, err := opener.Open(); err == nil {
		t.Fatalf("expected open failure for missing device")
	}
}
