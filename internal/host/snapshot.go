package host

import "bytes"

// Common representation types.
const (
	TypePlainText = "public.utf8-plain-text"
	TypeRTF       = "public.rtf"
	TypeHTML      = "public.html"
	// TypeTransient marks content clipboard-history tools should ignore.
	TypeTransient = "org.nspasteboard.TransientType"
)

// Representation is one flavor of a clipboard item.
type Representation struct {
	Type string
	Data []byte
}

// Item is one logical clipboard item with its representations in the order
// the owner declared them.
type Item struct {
	Representations []Representation
}

// Snapshot is a full structural copy of the clipboard.
type Snapshot struct {
	Items []Item
}

// Empty reports whether the snapshot holds no items.
func (s Snapshot) Empty() bool { return len(s.Items) == 0 }

// String returns the first plain-text representation.
func (s Snapshot) String() string {
	for _, it := range s.Items {
		for _, r := range it.Representations {
			if r.Type == TypePlainText {
				return string(r.Data)
			}
		}
	}
	return ""
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Items: make([]Item, len(s.Items))}
	for i, it := range s.Items {
		reps := make([]Representation, len(it.Representations))
		for j, r := range it.Representations {
			reps[j] = Representation{Type: r.Type, Data: append([]byte(nil), r.Data...)}
		}
		out.Items[i] = Item{Representations: reps}
	}
	return out
}

// Equal reports whether s and o hold the same items, representations and bytes.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Items) != len(o.Items) {
		return false
	}
	for i := range s.Items {
		a, b := s.Items[i].Representations, o.Items[i].Representations
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j].Type != b[j].Type || !bytes.Equal(a[j].Data, b[j].Data) {
				return false
			}
		}
	}
	return true
}

// TextSnapshot builds a single-item snapshot holding plain text.
func TextSnapshot(text string) Snapshot {
	return Snapshot{Items: []Item{{Representations: []Representation{{Type: TypePlainText, Data: []byte(text)}}}}}
}
