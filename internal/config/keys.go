package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "LARDER_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "LARDER_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LARDER_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "models.dir", typ: kString, env: "LARDER_MODELS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Models.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Dir },
	},
	{
		key: "models.version", typ: kString, env: "LARDER_MODELS_VERSION",
		apply:   func(cfg *Config, v any) { cfg.Models.Version = v.(string) },
		extract: func(cfg Config) any { return cfg.Models.Version },
	},
	{
		key: "policy.high_threshold", typ: kFloat, env: "LARDER_POLICY_HIGH_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Policy.HighThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Policy.HighThreshold },
	},
	{
		key: "policy.mid_threshold", typ: kFloat, env: "LARDER_POLICY_MID_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Policy.MidThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Policy.MidThreshold },
	},
	{
		key: "policy.reorder_window_days", typ: kInt, env: "LARDER_POLICY_REORDER_WINDOW_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Policy.ReorderWindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Policy.ReorderWindowDays },
	},
	{
		key: "categorizer.confidence_floor", typ: kFloat, env: "LARDER_CATEGORIZER_CONFIDENCE_FLOOR",
		apply:   func(cfg *Config, v any) { cfg.Categorizer.ConfidenceFloor = v.(float64) },
		extract: func(cfg Config) any { return cfg.Categorizer.ConfidenceFloor },
	},
	{
		key: "log.level", typ: kString, env: "LARDER_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
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
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					s.apply(cfg, f)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse float from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
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
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
