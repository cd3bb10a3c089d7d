package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
	kStringList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "FRONTDESK_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FRONTDESK_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "escalation.request_timeout", typ: kDuration, env: "FRONTDESK_REQUEST_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Escalation.RequestTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Escalation.RequestTimeout },
	},
	{
		key: "escalation.sweep_interval", typ: kDuration, env: "FRONTDESK_SWEEP_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Escalation.SweepInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Escalation.SweepInterval },
	},
	{
		key: "escalation.reminder_lead", typ: kDuration, env: "FRONTDESK_REMINDER_LEAD",
		apply:   func(cfg *Config, v any) { cfg.Escalation.ReminderLead = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Escalation.ReminderLead },
	},
	{
		key: "business.name", typ: kString, env: "FRONTDESK_BUSINESS_NAME",
		apply:   func(cfg *Config, v any) { cfg.Business.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Business.Name },
	},
	{
		key: "business.hours", typ: kString, env: "FRONTDESK_BUSINESS_HOURS",
		apply:   func(cfg *Config, v any) { cfg.Business.Hours = v.(string) },
		extract: func(cfg Config) any { return cfg.Business.Hours },
	},
	{
		key: "business.phone", typ: kString, env: "FRONTDESK_BUSINESS_PHONE",
		apply:   func(cfg *Config, v any) { cfg.Business.Phone = v.(string) },
		extract: func(cfg Config) any { return cfg.Business.Phone },
	},
	{
		key: "business.address", typ: kString, env: "FRONTDESK_BUSINESS_ADDRESS",
		apply:   func(cfg *Config, v any) { cfg.Business.Address = v.(string) },
		extract: func(cfg Config) any { return cfg.Business.Address },
	},
	{
		key: "matching.stop_words", typ: kStringList, env: "FRONTDESK_STOP_WORDS",
		apply:   func(cfg *Config, v any) { cfg.Matching.StopWords = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Matching.StopWords, ",") },
	},
	{
		key: "log.level", typ: kString, env: "FRONTDESK_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		case kStringList:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				s.apply(cfg, splitList(v))
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kStringList:
			s.apply(cfg, splitList(raw))
		}
	}
}

// splitList parses a comma-separated list, trimming whitespace and dropping
// empty items.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
