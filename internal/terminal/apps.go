package terminal

import "strings"

// DefaultApps lists bundle identifiers of known terminal emulators.
var DefaultApps = []string{
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

// AllowList matches bundle identifiers case-insensitively.
type AllowList struct {
	ids map[string]struct{}
}

// NewAllowList builds an AllowList from ids, ignoring blanks.
func NewAllowList(ids []string) AllowList {
	a := AllowList{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			a.ids[id] = struct{}{}
		}
	}
	return a
}

// Contains reports whether bundleID is a known terminal.
func (a AllowList) Contains(bundleID string) bool {
	_, ok := a.ids[strings.ToLower(bundleID)]
	return ok
}

// Len returns the number of entries.
func (a AllowList) Len() int { return len(a.ids) }
