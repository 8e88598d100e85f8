// Package hosttest provides an in-memory host.Host for tests.
package hosttest

import (
	"sort"
	"sync"
	"time"

	"github.com/kalambet/relayout/internal/host"
)

// Keystroke is one recorded host.Input.Keystroke call.
type Keystroke struct {
	Key  host.Key
	Mods host.Modifier
}

// Host simulates focus, accessibility, input and a multi-representation
// clipboard with a change counter. Exported fields configure responses and
// must be set before the host is used concurrently.
type Host struct {
	BundleID  string
	BundleErr error

	Selection    string
	SelectionErr error
	Value        host.Value
	ValueErr     error
	SetErr       error

	// CopyText, when non-nil, is placed on the clipboard by ShortcutCopy.
	CopyText *string
	// ShortcutErr fails the named shortcut.
	ShortcutErr map[host.Shortcut]error
	KeystrokeErr error
	SnapshotErr  error
	RestoreErr   error
	LayoutErr    error

	mu         sync.Mutex
	clip       host.Snapshot
	count      int64
	keys       []Keystroke
	shortcuts  []host.Shortcut
	setCalls   []string
	pasted     []string
	switches   int
	transients int
	restores   int
}

// New returns a Host with an empty clipboard.
func New() *Host {
	return &Host{}
}

// Text returns a pointer to s, for CopyText.
func Text(s string) *string { return &s }

func (h *Host) FrontmostBundleID() (string, error) {
	return h.BundleID, h.BundleErr
}

func (h *Host) FocusedSelection() (string, error) {
	return h.Selection, h.SelectionErr
}

func (h *Host) FocusedValue() (host.Value, error) {
	return h.Value, h.ValueErr
}

func (h *Host) SetFocusedSelection(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setCalls = append(h.setCalls, text)
	return h.SetErr
}

func (h *Host) Keystroke(key host.Key, mods host.Modifier) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.KeystrokeErr != nil {
		return h.KeystrokeErr
	}
	h.keys = append(h.keys, Keystroke{Key: key, Mods: mods})
	return nil
}

func (h *Host) Shortcut(s host.Shortcut) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.ShortcutErr[s]; err != nil {
		return err
	}
	h.shortcuts = append(h.shortcuts, s)
	switch s {
	case host.ShortcutCopy:
		if h.CopyText != nil {
			h.setClipLocked(host.TextSnapshot(*h.CopyText))
		}
	case host.ShortcutPaste:
		h.pasted = append(h.pasted, h.clip.String())
	}
	return nil
}

func (h *Host) ChangeCount() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count, nil
}

func (h *Host) Snapshot() (host.Snapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.SnapshotErr != nil {
		return host.Snapshot{}, h.SnapshotErr
	}
	return h.clip.Clone(), nil
}

func (h *Host) Restore(s host.Snapshot) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.RestoreErr != nil {
		return h.RestoreErr
	}
	h.restores++
	h.setClipLocked(s.Clone())
	return nil
}

func (h *Host) WriteTransient(text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transients++
	h.setClipLocked(host.Snapshot{Items: []host.Item{{Representations: []host.Representation{
		{Type: host.TypePlainText, Data: []byte(text)},
		{Type: host.TypeTransient},
	}}}})
	return nil
}

func (h *Host) ReadString() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clip.String(), nil
}

func (h *Host) SwitchToNextLayout() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.LayoutErr != nil {
		return h.LayoutErr
	}
	h.switches++
	return nil
}

// SetClipboard replaces the clipboard as another application would.
func (h *Host) SetClipboard(s host.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.setClipLocked(s.Clone())
}

func (h *Host) setClipLocked(s host.Snapshot) {
	h.clip = s
	h.count++
}

// Clipboard returns a copy of the current clipboard.
func (h *Host) Clipboard() host.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clip.Clone()
}

// Keystrokes returns recorded keystrokes in order.
func (h *Host) Keystrokes() []Keystroke {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Keystroke(nil), h.keys...)
}

// Shortcuts returns recorded shortcuts in order.
func (h *Host) Shortcuts() []host.Shortcut {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]host.Shortcut(nil), h.shortcuts...)
}

// SetCalls returns the texts passed to SetFocusedSelection.
func (h *Host) SetCalls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.setCalls...)
}

// Pasted returns the clipboard text seen by each paste.
func (h *Host) Pasted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.pasted...)
}

// LayoutSwitches returns how many times the input source was switched.
func (h *Host) LayoutSwitches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.switches
}

// Restores returns how many times the clipboard was restored.
func (h *Host) Restores() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restores
}

// Scheduler records delayed continuations so tests can fire them on demand.
type Scheduler struct {
	mu      sync.Mutex
	pending []scheduled
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

// After records fn to run after d.
func (s *Scheduler) After(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, scheduled{delay: d, fn: fn})
}

// Pending returns the number of continuations not yet run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Delays returns the delays of pending continuations.
func (s *Scheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.pending))
	for i, p := range s.pending {
		out[i] = p.delay
	}
	return out
}

// RunAll runs pending continuations in delay order.
func (s *Scheduler) RunAll() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	sort.SliceStable(pending, func(i, j int) bool { return pending[i].delay < pending[j].delay })
	for _, p := range pending {
		p.fn()
	}
}
