package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Profile is the persisted form of a conversion profile. Position is implied
// by slice order when saving and loading.
type Profile struct {
	ID        string
	Name      string
	Editable  bool
	Mapping   map[string]string
	UpdatedAt time.Time
}

// TriggerRecord is one pipeline invocation. It never carries the converted
// text itself, only what happened.
type TriggerRecord struct {
	ID         string
	CreatedAt  time.Time
	BundleID   string
	Path       string // "terminal" or "standard"
	AcquiredBy string
	ReplacedBy string
	Changed    bool
	Error      string
}
