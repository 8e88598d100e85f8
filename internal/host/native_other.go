//go:build !darwin

package host

import (
	"crypto/sha256"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

// uinput needs time to register the virtual keyboard before the first event.
const linuxBondingDelay = 2 * time.Second

// native backs the clipboard with atotto/clipboard and injects keys through
// keybd_event. Neither exposes focus, accessibility or input sources.
type native struct {
	kbMu sync.Mutex
	kb   keybd_event.KeyBonding

	readAll  func() (string, error)
	writeAll func(string) error

	cbMu     sync.Mutex
	count    int64
	lastHash [sha256.Size]byte
	seen     bool
}

// New returns the portable host.
func New() (Host, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("creating key bonding: %w", err)
	}
	if runtime.GOOS == "linux" {
		time.Sleep(linuxBondingDelay)
	}
	return &native{kb: kb, readAll: clipboard.ReadAll, writeAll: clipboard.WriteAll}, nil
}

// AccessibilityTrusted is always false off macOS.
func AccessibilityTrusted() bool { return false }

func (n *native) FrontmostBundleID() (string, error) { return "", ErrUnsupported }

func (n *native) FocusedSelection() (string, error) { return "", ErrUnsupported }

func (n *native) FocusedValue() (Value, error) { return Value{}, ErrUnsupported }

func (n *native) SetFocusedSelection(string) error { return ErrUnsupported }

func (n *native) SwitchToNextLayout() error { return ErrUnsupported }

func vkCode(k Key) (int, error) {
	switch k {
	case KeyBackspace:
		return keybd_event.VK_BACKSPACE, nil
	case KeyEnd:
		return keybd_event.VK_END, nil
	case KeyC:
		return keybd_event.VK_C, nil
	case KeyE:
		return keybd_event.VK_E, nil
	case KeyV:
		return keybd_event.VK_V, nil
	default:
		return 0, fmt.Errorf("unknown key %d", k)
	}
}

func (n *native) Keystroke(key Key, mods Modifier) error {
	code, err := vkCode(key)
	if err != nil {
		return err
	}

	n.kbMu.Lock()
	defer n.kbMu.Unlock()

	n.kb.SetKeys(code)
	n.kb.HasSHIFT(mods&ModShift != 0)
	n.kb.HasCTRL(mods&ModControl != 0)
	n.kb.HasALT(mods&ModOption != 0)
	n.kb.HasSuper(mods&ModCommand != 0)
	return n.kb.Launching()
}

func (n *native) Shortcut(s Shortcut) error {
	switch s {
	case ShortcutCopy:
		return n.Keystroke(KeyC, ModControl)
	case ShortcutPaste:
		return n.Keystroke(KeyV, ModControl)
	case ShortcutEndOfLine:
		return n.Keystroke(KeyEnd, 0)
	default:
		return fmt.Errorf("unknown shortcut %d", s)
	}
}

// ChangeCount emulates a change counter by hashing the clipboard text on
// every call; the count advances when the hash differs from the last one.
// An unreadable clipboard is an error, not a change.
func (n *native) ChangeCount() (int64, error) {
	text, err := n.readAll()
	if err != nil {
		return 0, fmt.Errorf("reading clipboard: %w", err)
	}
	sum := sha256.Sum256([]byte(text))

	n.cbMu.Lock()
	defer n.cbMu.Unlock()
	if n.seen && sum != n.lastHash {
		n.count++
	}
	n.lastHash = sum
	n.seen = true
	return n.count, nil
}

func (n *native) ReadString() (string, error) {
	return n.readAll()
}

// Snapshot captures the plain-text representation only; richer flavors are
// not reachable through the portable clipboard. A failed read is returned so
// callers never overwrite contents they could not save.
func (n *native) Snapshot() (Snapshot, error) {
	text, err := n.readAll()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading clipboard: %w", err)
	}
	if text == "" {
		return Snapshot{}, nil
	}
	return TextSnapshot(text), nil
}

func (n *native) Restore(s Snapshot) error {
	return n.writeAll(s.String())
}

func (n *native) WriteTransient(text string) error {
	return n.writeAll(text)
}
