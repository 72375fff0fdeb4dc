package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

// envOverrides are read on every parse and win over the file.
type envOverrides struct {
	Token      string `env:"TOKEN"`
	ProxyLower string `env:"http_proxy"`
	ProxyUpper string `env:"HTTP_PROXY"`
	LogLevel   string `env:"LOG_LEVEL"`
	HTTPToken  string `env:"REMINDBOT_HTTP_TOKEN"`
}

// ApplyEnv overlays environment variables on cfg. A nil environ reads the process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	var o envOverrides
	var err error
	if environ == nil {
		err = env.Parse(&o)
	} else {
		err = env.ParseWithOptions(&o, env.Options{Environment: environ})
	}
	if err != nil {
		return fmt.Errorf("env: %w", err)
	}

	if v := strings.TrimSpace(o.Token); v != "" {
		cfg.Telegram.Token = v
	}
	if strings.TrimSpace(cfg.Telegram.Proxy) == "" {
		for _, v := range []string{o.ProxyLower, o.ProxyUpper} {
			if v = strings.TrimSpace(v); v != "" {
				cfg.Telegram.Proxy = v
				break
			}
		}
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(o.HTTPToken); v != "" {
		cfg.HTTP.Token = v
	}
	return nil
}
