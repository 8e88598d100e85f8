// Package host defines the primitives the pipeline consumes from the
// operating system: the frontmost application, the accessibility tree,
// input injection, the clipboard and input-source switching.
package host

import (
	"errors"
	"unicode/utf16"
)

var (
	// ErrTimeout is returned when a bounded wait elapses without the
	// expected state change.
	ErrTimeout = errors.New("timeout exceeded")
	// ErrUnsupported is returned by primitives the platform cannot provide.
	ErrUnsupported = errors.New("unsupported on this platform")
	// ErrNoFocus is returned when no focused element answers the query.
	ErrNoFocus = errors.New("no focused element")
)

// Modifier is a bit set of keyboard modifiers.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModControl
	ModOption
	ModCommand
)

// Key identifies a key for injected keystrokes.
type Key int

const (
	KeyBackspace Key = iota + 1
	KeyEnd
	KeyC
	KeyE
	KeyV
)

// Shortcut is a named host shortcut. Each backend maps it to the platform's
// native chord.
type Shortcut int

const (
	ShortcutCopy Shortcut = iota + 1
	ShortcutPaste
	ShortcutEndOfLine
)

func (s Shortcut) String() string {
	switch s {
	case ShortcutCopy:
		return "copy"
	case ShortcutPaste:
		return "paste"
	case ShortcutEndOfLine:
		return "end_of_line"
	default:
		return "unknown"
	}
}

// Range is a selection in UTF-16 code units, as accessibility APIs report it.
type Range struct {
	Location int
	Length   int
}

// Value is the full text of a focused element and its selection.
type Value struct {
	Text      string
	Selection Range
}

// Selected returns the selected slice of v.Text, or "" when the range is
// empty or out of bounds.
func (v Value) Selected() string {
	if v.Selection.Length <= 0 || v.Selection.Location < 0 {
		return ""
	}
	units := utf16.Encode([]rune(v.Text))
	end := v.Selection.Location + v.Selection.Length
	if end > len(units) {
		return ""
	}
	return string(utf16.Decode(units[v.Selection.Location:end]))
}

// Workspace reports the frontmost application.
type Workspace interface {
	FrontmostBundleID() (string, error)
}

// Accessibility reads and writes the focused UI element.
type Accessibility interface {
	FocusedSelection() (string, error)
	FocusedValue() (Value, error)
	SetFocusedSelection(text string) error
}

// Input injects keystrokes. Keystroke sends exactly the given modifiers,
// clearing any the user is still holding.
type Input interface {
	Keystroke(key Key, mods Modifier) error
	Shortcut(s Shortcut) error
}

// Clipboard is the system clipboard. ChangeCount increases whenever the
// clipboard contents are replaced.
type Clipboard interface {
	ChangeCount() (int64, error)
	Snapshot() (Snapshot, error)
	Restore(s Snapshot) error
	WriteTransient(text string) error
	ReadString() (string, error)
}

// Layouts switches the active input source.
type Layouts interface {
	SwitchToNextLayout() error
}

// Host bundles every primitive.
type Host interface {
	Workspace
	Accessibility
	Input
	Clipboard
	Layouts
}
