package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
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
		key: "server.port", typ: kInt, env: "RELAYOUT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RELAYOUT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "RELAYOUT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "RELAYOUT_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
	},
	{
		key: "hotkey.binding", typ: kString, env: "RELAYOUT_HOTKEY_BINDING",
		apply:   func(cfg *Config, v any) { cfg.Hotkey.Binding = v.(string) },
		extract: func(cfg Config) any { return cfg.Hotkey.Binding },
	},
	{
		key: "pipeline.terminal_apps", typ: kString, env: "RELAYOUT_PIPELINE_TERMINAL_APPS",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.TerminalApps = v.(string) },
		extract: func(cfg Config) any { return cfg.Pipeline.TerminalApps },
	},
	{
		key: "pipeline.backspace_ceiling", typ: kInt, env: "RELAYOUT_PIPELINE_BACKSPACE_CEILING",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.BackspaceCeiling = v.(int) },
		extract: func(cfg Config) any { return cfg.Pipeline.BackspaceCeiling },
	},
	{
		key: "pipeline.backspace_slack", typ: kInt, env: "RELAYOUT_PIPELINE_BACKSPACE_SLACK",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.BackspaceSlack = v.(int) },
		extract: func(cfg Config) any { return cfg.Pipeline.BackspaceSlack },
	},
	{
		key: "pipeline.keystroke_interval", typ: kDuration, env: "RELAYOUT_PIPELINE_KEYSTROKE_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.KeystrokeInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.KeystrokeInterval },
	},
	{
		key: "pipeline.paste_restore_delay", typ: kDuration, env: "RELAYOUT_PIPELINE_PASTE_RESTORE_DELAY",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.PasteRestoreDelay = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.PasteRestoreDelay },
	},
	{
		key: "pipeline.clipboard_poll_initial", typ: kDuration, env: "RELAYOUT_PIPELINE_CLIPBOARD_POLL_INITIAL",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.ClipboardPollInitial = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.ClipboardPollInitial },
	},
	{
		key: "pipeline.clipboard_poll_max", typ: kDuration, env: "RELAYOUT_PIPELINE_CLIPBOARD_POLL_MAX",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.ClipboardPollMax = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.ClipboardPollMax },
	},
	{
		key: "pipeline.clipboard_timeout", typ: kDuration, env: "RELAYOUT_PIPELINE_CLIPBOARD_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.ClipboardTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.ClipboardTimeout },
	},
	{
		key: "pipeline.trigger_timeout", typ: kDuration, env: "RELAYOUT_PIPELINE_TRIGGER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.TriggerTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Pipeline.TriggerTimeout },
	},
	{
		key: "pipeline.switch_layout", typ: kBool, env: "RELAYOUT_PIPELINE_SWITCH_LAYOUT",
		apply:   func(cfg *Config, v any) { cfg.Pipeline.SwitchLayout = v.(bool) },
		extract: func(cfg Config) any { return cfg.Pipeline.SwitchLayout },
	},
	{
		key: "api.token", typ: kString, env: "RELAYOUT_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) {},
		extract: func(cfg Config) any { return "" },
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
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
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
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
