// Package pipeline sequences acquisition, transformation and replacement for
// one hotkey trigger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/relayout/internal/acquire"
	"github.com/kalambet/relayout/internal/host"
	"github.com/kalambet/relayout/internal/replace"
	"github.com/kalambet/relayout/internal/storage"
	"github.com/kalambet/relayout/internal/terminal"
	"github.com/kalambet/relayout/internal/transform"
)

// Paths a trigger can take.
const (
	PathTerminal = "terminal"
	PathStandard = "standard"
)

// TerminalValue names the terminal acquisition in reports.
const TerminalValue = "terminal_value"

// historyLimit is how many trigger records are kept.
const historyLimit = 500

// State is a step of one trigger.
type State int

const (
	Idle State = iota
	Dispatching
	TerminalPath
	StandardPath
	Done
)

func (s State) String() string {
	switch s {
	case Dispatching:
		return "dispatching"
	case TerminalPath:
		return "terminal_path"
	case StandardPath:
		return "standard_path"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

// Settings are the tunables a config reload may change.
type Settings struct {
	TerminalApps   []string
	SwitchLayout   bool
	TriggerTimeout time.Duration
	Backoff        host.Backoff
	Replace        replace.Options
}

// DefaultSettings returns the stock settings.
func DefaultSettings() Settings {
	return Settings{
		TerminalApps:   terminal.DefaultApps,
		SwitchLayout:   true,
		TriggerTimeout: 2 * time.Second,
		Backoff:        host.DefaultBackoff,
		Replace:        replace.DefaultOptions(),
	}
}

// Recorder persists trigger history. Implemented by storage.Store.
type Recorder interface {
	SaveTrigger(r storage.TriggerRecord) error
	PruneTriggers(keep int) error
}

// Report describes what one trigger did. It never holds the converted text.
type Report struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	BundleID   string        `json:"bundle_id"`
	Path       string        `json:"path"`
	AcquiredBy string        `json:"acquired_by,omitempty"`
	ReplacedBy string        `json:"replaced_by,omitempty"`
	Changed    bool          `json:"changed"`
	Err        error         `json:"-"`
}

// ErrorMessage returns the swallowed error message, or "".
func (r Report) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithRecorder records every trigger.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithStateObserver calls fn on every state transition.
func WithStateObserver(fn func(id string, s State)) Option {
	return func(p *Pipeline) { p.observe = fn }
}

// runtime is the settings snapshot one trigger works with.
type runtime struct {
	settings Settings
	apps     terminal.AllowList
	acquirer *acquire.Chain
	replacer *replace.Replacer
}

// Pipeline handles hotkey triggers. Each HandleTrigger call works only on
// local state and a settings snapshot, so overlapping triggers are safe.
type Pipeline struct {
	host        host.Host
	transformer *transform.Transformer
	logger      *slog.Logger
	recorder    Recorder
	observe     func(id string, s State)

	rt atomic.Pointer[runtime]

	// restores counts scheduled clipboard restores across settings reloads.
	restores sync.WaitGroup
}

// New creates a Pipeline.
func New(h host.Host, tr *transform.Transformer, s Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		host:        h,
		transformer: tr,
		logger:      slog.Default(),
		observe:     func(string, State) {},
	}
	for _, o := range opts {
		o(p)
	}
	p.UpdateSettings(s)
	return p
}

// UpdateSettings swaps in new settings for subsequent triggers.
func (p *Pipeline) UpdateSettings(s Settings) {
	apps := s.TerminalApps
	if apps == nil {
		apps = terminal.DefaultApps
	}
	p.rt.Store(&runtime{
		settings: s,
		apps:     terminal.NewAllowList(apps),
		acquirer: acquire.New(p.host, s.Backoff, p.logger),
		replacer: replace.New(p.host, p.trackRestores(s.Replace), p.logger),
	})
}

// trackRestores wraps the restore scheduler so Drain can wait for it.
func (p *Pipeline) trackRestores(opts replace.Options) replace.Options {
	after := opts.After
	if after == nil {
		after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	opts.After = func(d time.Duration, fn func()) {
		p.restores.Add(1)
		after(d, func() {
			defer p.restores.Done()
			fn()
		})
	}
	return opts
}

// Drain waits until every scheduled clipboard restore has run, or ctx ends.
// Call it on shutdown so a pasted conversion never stays on the clipboard.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.restores.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Settings returns the current settings.
func (p *Pipeline) Settings() Settings {
	return p.rt.Load().settings
}

// HandleTrigger runs one conversion. Failures are logged and reported, never
// returned: an uncooperative application is an expected outcome.
func (p *Pipeline) HandleTrigger(ctx context.Context) Report {
	rt := p.rt.Load()
	if rt.settings.TriggerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.settings.TriggerTimeout)
		defer cancel()
	}

	rep := Report{ID: uuid.NewString(), StartedAt: time.Now()}
	p.observe(rep.ID, Dispatching)

	bundle, err := p.host.FrontmostBundleID()
	if err != nil {
		p.logger.Debug("frontmost application unknown", "error", err)
	}
	rep.BundleID = bundle

	if bundle != "" && rt.apps.Contains(bundle) {
		rep.Path = PathTerminal
		p.observe(rep.ID, TerminalPath)
		p.runTerminal(ctx, rt, &rep)
	} else {
		rep.Path = PathStandard
		p.observe(rep.ID, StandardPath)
		p.runStandard(ctx, rt, &rep)
	}

	rep.Duration = time.Since(rep.StartedAt)
	p.observe(rep.ID, Done)

	if rep.Err != nil {
		level := slog.LevelInfo
		if !errors.Is(rep.Err, acquire.ErrAcquisitionFailed) && !errors.Is(rep.Err, replace.ErrReplacementFailed) {
			level = slog.LevelWarn
		}
		p.logger.Log(ctx, level, "trigger finished without conversion",
			"path", rep.Path, "bundle", rep.BundleID, "error", rep.Err)
	} else {
		p.logger.Debug("trigger finished",
			"path", rep.Path, "bundle", rep.BundleID, "changed", rep.Changed,
			"acquired_by", rep.AcquiredBy, "replaced_by", rep.ReplacedBy, "duration", rep.Duration)
	}

	p.record(rep)
	p.observe(rep.ID, Idle)
	return rep
}

func (p *Pipeline) runTerminal(ctx context.Context, rt *runtime, rep *Report) {
	v, err := p.host.FocusedValue()
	if err != nil {
		rep.Err = fmt.Errorf("%w: reading terminal value: %w", acquire.ErrAcquisitionFailed, err)
		return
	}
	cmd := terminal.ExtractCommand(v.Text)
	if cmd == "" {
		rep.Err = fmt.Errorf("%w: empty command line", acquire.ErrAcquisitionFailed)
		return
	}
	rep.AcquiredBy = TerminalValue
	p.logger.Debug("terminal command extracted", "length", len(cmd))

	out := p.transformer.Transform(cmd)
	if out == cmd {
		return
	}

	by, err := rt.replacer.ReplaceTerminal(ctx, cmd, out)
	if err != nil {
		rep.Err = err
		return
	}
	rep.ReplacedBy = by
	rep.Changed = true
	p.switchLayout(rt)
}

func (p *Pipeline) runStandard(ctx context.Context, rt *runtime, rep *Report) {
	text, by, err := rt.acquirer.Acquire(ctx)
	if err != nil {
		rep.Err = err
		return
	}
	rep.AcquiredBy = by

	text = terminal.CleanSelection(text)
	out := p.transformer.Transform(text)
	if out == text {
		return
	}

	by, err = rt.replacer.Replace(ctx, out)
	if err != nil {
		rep.Err = err
		return
	}
	rep.ReplacedBy = by
	rep.Changed = true
	p.switchLayout(rt)
}

func (p *Pipeline) switchLayout(rt *runtime) {
	if !rt.settings.SwitchLayout {
		return
	}
	if err := p.host.SwitchToNextLayout(); err != nil {
		p.logger.Debug("switching input source", "error", err)
	}
}

func (p *Pipeline) record(rep Report) {
	if p.recorder == nil {
		return
	}
	rec := storage.TriggerRecord{
		ID:         rep.ID,
		CreatedAt:  rep.StartedAt,
		BundleID:   rep.BundleID,
		Path:       rep.Path,
		AcquiredBy: rep.AcquiredBy,
		ReplacedBy: rep.ReplacedBy,
		Changed:    rep.Changed,
		Error:      rep.ErrorMessage(),
	}
	if err := p.recorder.SaveTrigger(rec); err != nil {
		p.logger.Error("saving trigger record", "error", err)
		return
	}
	if err := p.recorder.PruneTriggers(historyLimit); err != nil {
		p.logger.Error("pruning trigger history", "error", err)
	}
}
