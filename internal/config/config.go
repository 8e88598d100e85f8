package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Hotkey   HotkeyConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level  string
	Format string
}

type HotkeyConfig struct {
	Binding string
}

type PipelineConfig struct {
	// TerminalApps is a comma-separated list of terminal bundle ids.
	TerminalApps         string
	BackspaceCeiling     int
	BackspaceSlack       int
	KeystrokeInterval    time.Duration
	PasteRestoreDelay    time.Duration
	ClipboardPollInitial time.Duration
	ClipboardPollMax     time.Duration
	ClipboardTimeout     time.Duration
	TriggerTimeout       time.Duration
	SwitchLayout         bool
}

// TerminalAppList splits TerminalApps into bundle ids.
func (p PipelineConfig) TerminalAppList() []string {
	var out []string
	for _, id := range strings.Split(p.TerminalApps, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// defaultTerminalApps mirrors terminal.DefaultApps; config stays a leaf package.
var defaultTerminalApps = []string{
	"com.apple.Terminal",
	"com.googlecode.iterm2",
	"io.alacritty",
	"net.kovidgoyal.kitty",
	"com.github.wez.wezterm",
	"dev.warp.Warp-Stable",
	"co.zeit.hyper",
	"com.mitchellh.ghostty",
	"org.tabby",
}

func defaultHotkey() string {
	if runtime.GOOS == "darwin" {
		return "ctrl+option+space"
	}
	return "ctrl+alt+space"
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Hotkey: HotkeyConfig{
			Binding: defaultHotkey(),
		},
		Pipeline: PipelineConfig{
			TerminalApps:         strings.Join(defaultTerminalApps, ","),
			BackspaceCeiling:     300,
			BackspaceSlack:       2,
			KeystrokeInterval:    3 * time.Millisecond,
			PasteRestoreDelay:    300 * time.Millisecond,
			ClipboardPollInitial: time.Millisecond,
			ClipboardPollMax:     20 * time.Millisecond,
			ClipboardTimeout:     300 * time.Millisecond,
			TriggerTimeout:       2 * time.Second,
			SwitchLayout:         true,
		},
	}
}

// Load reads configuration from the platform-native backend and environment
// variables.
//
// On macOS the backend is UserDefaults (domain: com.relayout.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/relayout/config.json.
//
// Environment variables (RELAYOUT_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid config: log.format %q (want text or json)", c.Log.Format)
	}
	p := c.Pipeline
	if p.BackspaceCeiling <= 0 {
		return fmt.Errorf("invalid config: pipeline.backspace_ceiling must be positive")
	}
	if p.BackspaceSlack < 0 {
		return fmt.Errorf("invalid config: pipeline.backspace_slack must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"pipeline.clipboard_poll_initial": p.ClipboardPollInitial,
		"pipeline.clipboard_poll_max":     p.ClipboardPollMax,
		"pipeline.clipboard_timeout":      p.ClipboardTimeout,
		"pipeline.trigger_timeout":        p.TriggerTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid config: %s must be positive", name)
		}
	}
	if p.ClipboardPollMax < p.ClipboardPollInitial {
		return fmt.Errorf("invalid config: pipeline.clipboard_poll_max below pipeline.clipboard_poll_initial")
	}
	return nil
}
