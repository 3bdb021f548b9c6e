package main

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// serverConfig is the demo server's runtime configuration.
type serverConfig struct {
	Listen        string
	IdleTimeout   time.Duration
	DrainTimeout  time.Duration
	SendBuffer    int
	MaxFrameBytes int
	LogLevel      string
}

func defaultConfig() serverConfig {
	return serverConfig{
		Listen:      "127.0.0.1:4000",
		IdleTimeout: 30 * time.Second,
		SendBuffer:  8,
		LogLevel:    "info",
	}
}

// fileConfig mirrors the TOML file; absent keys leave defaults untouched.
type fileConfig struct {
	Listen        string `toml:"listen"`
	IdleTimeout   string `toml:"idle_timeout"`
	DrainTimeout  string `toml:"drain_timeout"`
	SendBuffer    int    `toml:"send_buffer"`
	MaxFrameBytes int    `toml:"max_frame_bytes"`
	LogLevel      string `toml:"log_level"`
}

func loadConfig(path string) (serverConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serverConfig{}, errors.Wrap(err, "load server config")
	}

	if meta.IsDefined("listen") {
		if addr := strings.TrimSpace(raw.Listen); addr != "" {
			cfg.Listen = addr
		}
	}

	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return serverConfig{}, errors.Wrap(err, "parse idle_timeout")
		}
		cfg.IdleTimeout = d
	}

	if meta.IsDefined("drain_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DrainTimeout))
		if err != nil {
			return serverConfig{}, errors.Wrap(err, "parse drain_timeout")
		}
		cfg.DrainTimeout = d
	}

	if meta.IsDefined("send_buffer") {
		cfg.SendBuffer = raw.SendBuffer
	}

	if meta.IsDefined("max_frame_bytes") {
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}

	return cfg, nil
}
