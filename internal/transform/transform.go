// Package transform converts text between the two sides of the active
// conversion profile.
package transform

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Tables provides the active profile's forward mapping and its inverse.
// Implemented by profile.Manager.
type Tables interface {
	Tables() (forward, inverse map[string]string)
}

// Side is the result of DetectDominantSide.
type Side int

const (
	SideTie Side = iota
	SideForward
	SideReverse
)

func (s Side) String() string {
	switch s {
	case SideForward:
		return "forward"
	case SideReverse:
		return "reverse"
	default:
		return "tie"
	}
}

// Transformer keeps no tables of its own; every call reads the currently
// active profile.
type Transformer struct {
	tables Tables
}

// New returns a Transformer reading tables on every call.
func New(tables Tables) *Transformer {
	return &Transformer{tables: tables}
}

// Transform maps text grapheme by grapheme. The forward table is consulted
// before the inverse table; unmapped graphemes pass through unchanged.
func (t *Transformer) Transform(text string) string {
	forward, inverse := t.tables.Tables()

	var b strings.Builder
	b.Grow(len(text))
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		c := g.Str()
		if v, ok := forward[c]; ok {
			b.WriteString(v)
		} else if v, ok := inverse[c]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(c)
		}
	}
	return b.String()
}

// DetectDominantSide counts the distinct lower-cased graphemes of text found
// among forward keys and among inverse keys. The larger count wins.
func (t *Transformer) DetectDominantSide(text string) Side {
	forward, inverse := t.tables.Tables()

	seen := make(map[string]struct{})
	var fwd, rev int
	g := uniseg.NewGraphemes(strings.ToLower(text))
	for g.Next() {
		c := g.Str()
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if _, ok := forward[c]; ok {
			fwd++
		}
		if _, ok := inverse[c]; ok {
			rev++
		}
	}

	switch {
	case fwd > rev:
		return SideForward
	case rev > fwd:
		return SideReverse
	default:
		return SideTie
	}
}
