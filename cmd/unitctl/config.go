package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/unitconsole/internal/controller"
)

type fileConfig struct {
	ControllerID string            `toml:"controller_id"`
	ListenAddr   string            `toml:"listen_addr"`
	AdminAddr    string            `toml:"admin_addr"`
	AdminToken   string            `toml:"admin_token"`
	UnitsFile    string            `toml:"units_file"`
	CORSOrigins  []string          `toml:"cors_origins"`
	Session      sessionFileConfig `toml:"session"`
}

type sessionFileConfig struct {
	HandshakeTimeoutMS int64 `toml:"handshake_timeout_ms"`
	IdleTimeoutMS      int64 `toml:"idle_timeout_ms"`
	WriteTimeoutMS     int64 `toml:"write_timeout_ms"`
	RequestTimeoutMS   int64 `toml:"request_timeout_ms"`
}

func loadServiceConfig(path string) (controller.ServiceConfig, error) {
	cfg := controller.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return controller.ServiceConfig{}, fmt.Errorf("load controller config: %w", err)
	}

	if meta.IsDefined("controller_id") {
		if id := strings.TrimSpace(raw.ControllerID); id != "" {
			cfg.ControllerID = id
		}
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}

	if meta.IsDefined("admin_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminAddr)
	}

	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}

	if meta.IsDefined("units_file") {
		units := strings.TrimSpace(raw.UnitsFile)
		if units != "" && !filepath.IsAbs(units) {
			units = filepath.Join(filepath.Dir(path), units)
		}
		cfg.UnitsFile = units
	}

	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeOrigins(raw.CORSOrigins)
	}

	if meta.IsDefined("session", "handshake_timeout_ms") {
		cfg.Session.HandshakeTimeout = millis(raw.Session.HandshakeTimeoutMS)
	}
	if meta.IsDefined("session", "idle_timeout_ms") {
		cfg.Session.IdleTimeout = millis(raw.Session.IdleTimeoutMS)
	}
	if meta.IsDefined("session", "write_timeout_ms") {
		cfg.Session.WriteTimeout = millis(raw.Session.WriteTimeoutMS)
	}
	if meta.IsDefined("session", "request_timeout_ms") {
		cfg.Session.RequestTimeout = millis(raw.Session.RequestTimeoutMS)
	}

	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return controller.ServiceConfig{}, fmt.Errorf("load controller config: listen_addr must not be empty")
	}
	return cfg, nil
}

func millis(ms int64) time.Duration {
	if ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
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
