// Package replace writes converted text back into the focused application.
package replace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rivo/uniseg"

	"github.com/kalambet/relayout/internal/host"
	"github.com/kalambet/relayout/internal/strategy"
)

// ErrReplacementFailed is returned when no strategy wrote the text.
var ErrReplacementFailed = errors.New("replacement failed")

// Strategy names, reported in pipeline reports and the trigger log.
const (
	AXDirect       = "ax_direct"
	ClipboardPaste = "clipboard_paste"
	TerminalErase  = "terminal_erase"
)

// Host is the subset of host.Host the chain uses.
type Host interface {
	host.Accessibility
	host.Input
	host.Clipboard
}

// Options tunes the replacement chain.
type Options struct {
	// RestoreDelay is how long the pasted text stays on the clipboard
	// before the previous contents come back.
	RestoreDelay time.Duration
	// BackspaceCeiling caps the backspaces sent when erasing a command.
	BackspaceCeiling int
	// BackspaceSlack is added to the command length to absorb trimming
	// differences.
	BackspaceSlack int
	// KeystrokeInterval separates injected backspaces.
	KeystrokeInterval time.Duration

	// After schedules fn after d. Defaults to time.AfterFunc.
	After func(d time.Duration, fn func())
	// Sleep defaults to time.Sleep.
	Sleep func(d time.Duration)
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		RestoreDelay:      300 * time.Millisecond,
		BackspaceCeiling:  300,
		BackspaceSlack:    2,
		KeystrokeInterval: 3 * time.Millisecond,
	}
}

// Replacer runs the replacement chains.
type Replacer struct {
	host   Host
	opts   Options
	logger *slog.Logger
}

// New creates a Replacer.
func New(h Host, opts Options, logger *slog.Logger) *Replacer {
	if opts.After == nil {
		opts.After = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Replacer{host: h, opts: opts, logger: logger}
}

// Replace writes text over the current selection: a direct accessibility
// set first, then a clipboard paste.
func (r *Replacer) Replace(ctx context.Context, text string) (string, error) {
	_, name, err := strategy.Run(ctx, r.logger, []strategy.Step[string]{
		{Name: AXDirect, Run: func(context.Context) strategy.Result[string] { return r.axDirect(text) }},
		{Name: ClipboardPaste, Run: func(ctx context.Context) strategy.Result[string] { return r.paste(ctx, text) }},
	})
	if err != nil {
		return "", r.wrap(ctx, err)
	}
	return name, nil
}

// ReplaceTerminal erases the command currently on the prompt line, then
// pastes text. cleaned is the command as extracted; its length bounds the
// erase. Nothing is pasted when the erase fails.
func (r *Replacer) ReplaceTerminal(ctx context.Context, cleaned, text string) (string, error) {
	erased := false
	_, _, err := strategy.Run(ctx, r.logger, []strategy.Step[string]{
		{Name: TerminalErase, Run: func(ctx context.Context) strategy.Result[string] {
			if err := r.erase(ctx, cleaned); err != nil {
				return strategy.Fail[string](err)
			}
			erased = true
			return strategy.Defer[string]()
		}},
		{Name: ClipboardPaste, Run: func(ctx context.Context) strategy.Result[string] {
			if !erased {
				return strategy.Defer[string]()
			}
			return r.paste(ctx, text)
		}},
	})
	if err != nil {
		return "", r.wrap(ctx, err)
	}
	return TerminalErase, nil
}

func (r *Replacer) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return fmt.Errorf("%w: %w", ErrReplacementFailed, err)
}

func (r *Replacer) axDirect(text string) strategy.Result[string] {
	err := r.host.SetFocusedSelection(text)
	switch {
	case errors.Is(err, host.ErrUnsupported), errors.Is(err, host.ErrNoFocus):
		return strategy.Defer[string]()
	case err != nil:
		return strategy.Fail[string](err)
	default:
		return strategy.FoundValue(text)
	}
}

// BackspaceCount returns how many backspaces erase cleaned.
func (r *Replacer) BackspaceCount(cleaned string) int {
	n := uniseg.GraphemeClusterCount(cleaned) + r.opts.BackspaceSlack
	if r.opts.BackspaceCeiling > 0 && n > r.opts.BackspaceCeiling {
		n = r.opts.BackspaceCeiling
	}
	return n
}

// erase moves to the end of the line and sends backspaces with no
// modifiers, so keys still held from the hotkey do not turn them into
// word or line deletions.
func (r *Replacer) erase(ctx context.Context, cleaned string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.host.Shortcut(host.ShortcutEndOfLine); err != nil {
		return fmt.Errorf("end of line: %w", err)
	}
	r.opts.Sleep(r.opts.KeystrokeInterval)

	n := r.BackspaceCount(cleaned)
	for i := 0; i < n; i++ {
		if err := r.host.Keystroke(host.KeyBackspace, 0); err != nil {
			return fmt.Errorf("backspace %d of %d: %w", i+1, n, err)
		}
		r.opts.Sleep(r.opts.KeystrokeInterval)
	}
	return nil
}

// paste puts text on the clipboard as transient content, sends the paste
// shortcut and schedules the previous clipboard to come back. The restore
// runs exactly once: immediately when the paste fails, otherwise after
// RestoreDelay.
func (r *Replacer) paste(ctx context.Context, text string) strategy.Result[string] {
	if err := ctx.Err(); err != nil {
		return strategy.Fail[string](err)
	}
	saved, err := r.host.Snapshot()
	if err != nil {
		return strategy.Fail[string](fmt.Errorf("snapshot: %w", err))
	}
	restore := r.restoreOnce(saved)

	if err := r.host.WriteTransient(text); err != nil {
		restore()
		return strategy.Fail[string](fmt.Errorf("writing clipboard: %w", err))
	}
	if err := r.host.Shortcut(host.ShortcutPaste); err != nil {
		restore()
		return strategy.Fail[string](fmt.Errorf("paste shortcut: %w", err))
	}

	r.opts.After(r.opts.RestoreDelay, restore)
	return strategy.FoundValue(text)
}

func (r *Replacer) restoreOnce(saved host.Snapshot) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Error("clipboard restore panicked", "panic", p)
				}
			}()
			if err := r.host.Restore(saved); err != nil {
				r.logger.Warn("restoring clipboard", "error", err)
			}
		})
	}
}
