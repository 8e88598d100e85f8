package profile

import (
	"errors"
	"time"
)

var (
	// ErrProfileNotFound is returned when an id does not name a stored profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileNotEditable is returned when updating a built-in profile.
	ErrProfileNotEditable = errors.New("profile is not editable")
	// ErrInvalidMapping is returned when a mapping key is not a single character.
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrInvalidFile is returned when an imported profile cannot be decoded.
	ErrInvalidFile = errors.New("invalid profile file")
)

// Profile is a named character-mapping table. Mapping keys are single
// grapheme clusters; values may be longer. Keys are case-sensitive.
type Profile struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Editable bool              `json:"editable"`
	Mapping  map[string]string `json:"mapping"`

	// UpdatedAt is when the profile was created or last edited.
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	cp := p
	cp.Mapping = cloneMapping(p.Mapping)
	return cp
}

func cloneMapping(m map[string]string) map[string]string {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
