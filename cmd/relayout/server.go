package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/relayout/internal/api"
	"github.com/kalambet/relayout/internal/config"
	"github.com/kalambet/relayout/internal/host"
	"github.com/kalambet/relayout/internal/hotkey"
	"github.com/kalambet/relayout/internal/pipeline"
	"github.com/kalambet/relayout/internal/profile"
	"github.com/kalambet/relayout/internal/replace"
	"github.com/kalambet/relayout/internal/storage"
	"github.com/kalambet/relayout/internal/transform"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relayout daemon (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP over stdio")
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running relayout daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show relayout status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "relayout.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// pipelineSettings maps the pipeline config keys onto pipeline.Settings.
func pipelineSettings(p config.PipelineConfig) pipeline.Settings {
	s := pipeline.DefaultSettings()
	if apps := p.TerminalAppList(); len(apps) > 0 {
		s.TerminalApps = apps
	}
	s.SwitchLayout = p.SwitchLayout
	s.TriggerTimeout = p.TriggerTimeout
	s.Backoff = host.Backoff{
		Initial: p.ClipboardPollInitial,
		Max:     p.ClipboardPollMax,
		Timeout: p.ClipboardTimeout,
	}
	s.Replace = replace.DefaultOptions()
	s.Replace.RestoreDelay = p.PasteRestoreDelay
	s.Replace.BackspaceCeiling = p.BackspaceCeiling
	s.Replace.BackspaceSlack = p.BackspaceSlack
	s.Replace.KeystrokeInterval = p.KeystrokeInterval
	return s
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "relayout version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(cfg.Log))

	binding, err := hotkey.Parse(cfg.Hotkey.Binding)
	if err != nil {
		return fmt.Errorf("hotkey.binding: %w", err)
	}

	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("relayout is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("relayout is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	profiles := profile.NewManager(store)
	if err := profiles.Load(); err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	transformer := transform.New(profiles)

	h, err := host.New()
	if err != nil {
		return fmt.Errorf("initializing host: %w", err)
	}
	if !host.AccessibilityTrusted() {
		slog.Warn("accessibility access not granted; selection will be read through the clipboard")
	}

	pl := pipeline.New(h, transformer, pipelineSettings(cfg.Pipeline),
		pipeline.WithLogger(slog.Default()),
		pipeline.WithRecorder(store),
	)

	appHandler := api.NewAppHandler(api.AppDeps{
		Profiles:    profiles,
		Transformer: transformer,
		Pipeline:    pl,
		History:     store,
		Token:       apiToken,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "relayout listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return hotkey.Listen(gctx, binding, slog.Default(), func(ctx context.Context) {
			pl.HandleTrigger(ctx)
		})
	})

	g.Go(func() error {
		err := config.Watch(gctx, func(c config.Config) {
			pl.UpdateSettings(pipelineSettings(c.Pipeline))
			if c.Hotkey.Binding != cfg.Hotkey.Binding {
				slog.Warn("hotkey.binding changed; restart relayout to apply", "binding", c.Hotkey.Binding)
			}
		})
		if err != nil {
			slog.Warn("config watching disabled", "error", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Profiles:    profiles,
			Transformer: transformer,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), pl.Settings().Replace.RestoreDelay+time.Second)
	defer cancel()
	if derr := pl.Drain(drainCtx); derr != nil {
		slog.Warn("clipboard restore still pending at exit", "error", derr)
	}
	return err
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("relayout is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop relayout (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to relayout (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	if running {
		if c, err := newAPIClient(); err == nil {
			if r, err := c.get(ctx, "/profiles/active"); err == nil {
				var p profile.Profile
				if decodeJSON(r, &p) == nil {
					printStatus("Active profile", "%s (%s)", p.Name, p.ID)
				} else {
					printStatus("Active profile", "none")
				}
			}
		}
	}

	if host.AccessibilityTrusted() {
		printStatus("Accessibility", "granted")
	} else {
		printStatus("Accessibility", "not granted")
	}
	printStatus("Hotkey", "%s", cfg.Hotkey.Binding)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
