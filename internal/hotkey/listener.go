package hotkey

import (
	"context"
	"fmt"
	"log/slog"

	"golang.design/x/hotkey"
)

// Listen registers b and calls onTrigger on every key-down until ctx is
// done. Triggers are delivered sequentially; a slow handler delays the next
// one rather than overlapping it.
func Listen(ctx context.Context, b Binding, logger *slog.Logger, onTrigger func(context.Context)) error {
	if logger == nil {
		logger = slog.Default()
	}

	hk := hotkey.New(b.Mods, b.Key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("registering hotkey %s: %w", b, err)
	}
	defer func() {
		if err := hk.Unregister(); err != nil {
			logger.Warn("unregistering hotkey failed", "binding", b.String(), "error", err)
		}
	}()
	logger.Info("hotkey registered", "binding", b.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-hk.Keydown():
			if !ok {
				return nil
			}
			logger.Debug("hotkey pressed", "binding", b.String())
			onTrigger(ctx)
		}
	}
}
