// Package hotkey registers the global trigger chord.
package hotkey

import (
	"fmt"
	"sort"
	"strings"

	"golang.design/x/hotkey"
)

// Binding is a parsed chord such as "ctrl+option+space".
type Binding struct {
	Mods []hotkey.Modifier
	Key  hotkey.Key
	text string
}

func (b Binding) String() string { return b.text }

// Parse converts a "+"-separated chord into modifiers and a key. At least
// one modifier is required; names are case-insensitive.
func Parse(s string) (Binding, error) {
	parts := strings.Split(s, "+")
	if len(parts) < 2 {
		return Binding{}, fmt.Errorf("invalid binding %q: need modifier+key", s)
	}

	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = strings.ToLower(strings.TrimSpace(p))
		if norm[i] == "" {
			return Binding{}, fmt.Errorf("invalid binding %q: empty component", s)
		}
	}

	b := Binding{text: strings.Join(norm, "+")}
	seen := make(map[string]bool)
	for _, name := range norm[:len(norm)-1] {
		m, ok := modMap[name]
		if !ok {
			return Binding{}, fmt.Errorf("unknown modifier %q (available: %s)", name, strings.Join(modifierNames(), ", "))
		}
		if seen[name] {
			return Binding{}, fmt.Errorf("duplicate modifier %q", name)
		}
		seen[name] = true
		b.Mods = append(b.Mods, m)
	}

	k, ok := keyMap[norm[len(norm)-1]]
	if !ok {
		return Binding{}, fmt.Errorf("unknown key %q", norm[len(norm)-1])
	}
	b.Key = k
	return b, nil
}

func modifierNames() []string {
	names := make([]string, 0, len(modMap))
	for n := range modMap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var keyMap = map[string]hotkey.Key{
	"space": hotkey.KeySpace,
	"return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,
	"delete": hotkey.KeyDelete,
	"tab":    hotkey.KeyTab,
	"left":   hotkey.KeyLeft, "right": hotkey.KeyRight,
	"up": hotkey.KeyUp, "down": hotkey.KeyDown,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}
