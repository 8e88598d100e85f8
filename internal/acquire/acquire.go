// Package acquire obtains the text the user wants converted from the
// focused application.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kalambet/relayout/internal/host"
	"github.com/kalambet/relayout/internal/strategy"
)

// ErrAcquisitionFailed is returned when every strategy came back empty.
var ErrAcquisitionFailed = errors.New("acquisition failed")

// Strategy names, reported in pipeline reports and the trigger log.
const (
	SelectedText  = "selected_text"
	ValueRange    = "value_range"
	ClipboardCopy = "clipboard_copy"
)

// Host is the subset of host.Host the chain uses.
type Host interface {
	host.Accessibility
	host.Input
	host.Clipboard
}

// Chain tries the direct selection query, then the focused value sliced by
// its selection range, then a clipboard round-trip.
type Chain struct {
	host    Host
	backoff host.Backoff
	logger  *slog.Logger
}

// New creates a Chain polling the clipboard with backoff.
func New(h Host, backoff host.Backoff, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{host: h, backoff: backoff, logger: logger}
}

// Acquire returns the first non-empty text and the strategy that produced it.
func (c *Chain) Acquire(ctx context.Context) (string, string, error) {
	text, name, err := strategy.Run(ctx, c.logger, []strategy.Step[string]{
		{Name: SelectedText, Run: c.selectedText},
		{Name: ValueRange, Run: c.valueRange},
		{Name: ClipboardCopy, Run: c.clipboardCopy},
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", "", err
		}
		return "", "", fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}
	return text, name, nil
}

// accessibilityResult defers on expected misses and fails on anything else.
func accessibilityResult(text string, err error) strategy.Result[string] {
	switch {
	case errors.Is(err, host.ErrUnsupported), errors.Is(err, host.ErrNoFocus):
		return strategy.Defer[string]()
	case err != nil:
		return strategy.Fail[string](err)
	case text == "":
		return strategy.Defer[string]()
	default:
		return strategy.FoundValue(text)
	}
}

func (c *Chain) selectedText(context.Context) strategy.Result[string] {
	return accessibilityResult(c.host.FocusedSelection())
}

func (c *Chain) valueRange(context.Context) strategy.Result[string] {
	v, err := c.host.FocusedValue()
	if err != nil {
		return accessibilityResult("", err)
	}
	return accessibilityResult(v.Selected(), nil)
}

// clipboardCopy sends the copy shortcut and waits for the clipboard to
// change. The previous clipboard contents are put back before returning.
func (c *Chain) clipboardCopy(ctx context.Context) strategy.Result[string] {
	saved, err := c.host.Snapshot()
	if err != nil {
		return strategy.Fail[string](fmt.Errorf("snapshot: %w", err))
	}
	before, err := c.host.ChangeCount()
	if err != nil {
		return strategy.Fail[string](fmt.Errorf("change count: %w", err))
	}

	if err := c.host.Shortcut(host.ShortcutCopy); err != nil {
		return strategy.Fail[string](fmt.Errorf("copy shortcut: %w", err))
	}

	if _, err := host.WaitForChange(ctx, c.host, before, c.backoff); err != nil {
		return strategy.Fail[string](err)
	}

	text, readErr := c.host.ReadString()
	if err := c.host.Restore(saved); err != nil {
		c.logger.Warn("restoring clipboard after copy", "error", err)
	}
	if readErr != nil {
		return strategy.Fail[string](fmt.Errorf("reading clipboard: %w", readErr))
	}
	if text == "" {
		return strategy.Defer[string]()
	}
	return strategy.FoundValue(text)
}
