package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"

	"github.com/kalambet/relayout/internal/storage"
)

// Settings keys owned by the Manager.
const (
	activeProfileKey = "active_profile_id"
	legacyMappingKey = "legacy_mapping"
)

const (
	defaultNewName    = "New Profile"
	legacyProfileName = "Custom"
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	LoadProfiles() ([]storage.Profile, error)
	SaveProfiles(profiles []storage.Profile) error
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	DeleteSetting(key string) error
}

// Manager owns the profile set and the active profile. It is constructed once
// per process and shared by the pipeline and the management surfaces.
//
// The forward and inverse tables of the active profile are replaced, never
// mutated, so a pair returned by Tables stays consistent after later writes.
type Manager struct {
	store  Store
	newID  func() string
	now    func() time.Time
	logger *slog.Logger

	mu       sync.RWMutex
	profiles []Profile
	activeID string
	forward  map[string]string
	inverse  map[string]string
}

// NewManager creates a Manager backed by store. Call Load before use.
func NewManager(store Store) *Manager {
	return &Manager{
		store:   store,
		newID:   uuid.NewString,
		now:     time.Now,
		logger:  slog.Default(),
		forward: map[string]string{},
		inverse: map[string]string{},
	}
}

// Load reads persisted profiles, seeds the built-ins on first run, migrates a
// legacy flat mapping and resolves the active profile.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.LoadProfiles()
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(records))
	for _, r := range records {
		profiles = append(profiles, fromRecord(r))
	}

	dirty := false
	if len(profiles) == 0 {
		profiles = Builtins()
		seeded := m.now()
		for i := range profiles {
			profiles[i].UpdatedAt = seeded
		}
		dirty = true
	}

	migrated, legacy := m.migrateLegacy(profiles)
	if legacy {
		profiles = migrated
		dirty = true
	}

	if dirty {
		if err := m.store.SaveProfiles(toRecords(profiles)); err != nil {
			return fmt.Errorf("saving profiles: %w", err)
		}
	}
	if legacy {
		if err := m.store.DeleteSetting(legacyMappingKey); err != nil {
			return fmt.Errorf("removing legacy mapping: %w", err)
		}
	}

	persisted, err := m.store.GetSetting(activeProfileKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("reading active profile: %w", err)
	}

	activeID := resolveActive(profiles, persisted)
	if activeID != persisted {
		if err := m.persistActive(activeID); err != nil {
			return err
		}
	}

	m.profiles = profiles
	m.activeID = activeID
	m.rebuild()
	m.logger.Debug("profiles loaded", "count", len(profiles), "active", activeID)
	return nil
}

// migrateLegacy wraps a legacy flat mapping, if present, into a new editable
// profile appended to profiles.
func (m *Manager) migrateLegacy(profiles []Profile) ([]Profile, bool) {
	raw, err := m.store.GetSetting(legacyMappingKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("reading legacy mapping", "error", err)
		}
		return profiles, false
	}

	var mapping map[string]string
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		m.logger.Warn("malformed legacy mapping, leaving it in place", "error", err)
		return profiles, false
	}

	p := Profile{
		ID:        m.newID(),
		Name:      uniqueName(profiles, legacyProfileName),
		Editable:  true,
		Mapping:   cloneMapping(mapping),
		UpdatedAt: m.now(),
	}
	m.logger.Info("migrated legacy mapping", "profile", p.ID, "entries", len(mapping))
	return append(profiles, p), true
}

func resolveActive(profiles []Profile, persisted string) string {
	if persisted != "" && indexOf(profiles, persisted) >= 0 {
		return persisted
	}
	if indexOf(profiles, DefaultProfileID) >= 0 {
		return DefaultProfileID
	}
	if len(profiles) > 0 {
		return profiles[0].ID
	}
	return ""
}

// List returns copies of all profiles in display order.
func (m *Manager) List() []Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Profile, len(m.profiles))
	for i, p := range m.profiles {
		out[i] = p.Clone()
	}
	return out
}

// Get returns a copy of the profile with the given id.
func (m *Manager) Get(id string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := indexOf(m.profiles, id)
	if i < 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	return m.profiles[i].Clone(), nil
}

// ActiveID returns the active profile id, or "" when the store is empty.
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// Active returns a copy of the active profile.
func (m *Manager) Active() (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := indexOf(m.profiles, m.activeID)
	if i < 0 {
		return Profile{}, false
	}
	return m.profiles[i].Clone(), true
}

// Tables returns the active profile's forward mapping and its derived
// inverse. Callers must not modify the returned maps.
func (m *Manager) Tables() (forward, inverse map[string]string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forward, m.inverse
}

// SetActive makes id the active profile. The inverse table is rebuilt before
// SetActive returns.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if indexOf(m.profiles, id) < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if id == m.activeID {
		return nil
	}
	if err := m.persistActive(id); err != nil {
		return err
	}
	m.activeID = id
	m.rebuild()
	return nil
}

// Create adds a new editable profile. When basedOn is non-empty the new
// profile starts with a copy of that profile's mapping.
func (m *Manager) Create(name, basedOn string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping := map[string]string{}
	if basedOn != "" {
		i := indexOf(m.profiles, basedOn)
		if i < 0 {
			return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, basedOn)
		}
		mapping = cloneMapping(m.profiles[i].Mapping)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = defaultNewName
	}

	p := Profile{
		ID:        m.newID(),
		Name:      uniqueName(m.profiles, name),
		Editable:  true,
		Mapping:   mapping,
		UpdatedAt: m.now(),
	}
	if err := m.insert(p); err != nil {
		return Profile{}, err
	}
	return p.Clone(), nil
}

// Duplicate copies an existing profile into a new editable one named
// "<name> (copy)", "<name> (copy 2)" and so on.
func (m *Manager) Duplicate(id string) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOf(m.profiles, id)
	if i < 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	src := m.profiles[i]

	p := Profile{
		ID:        m.newID(),
		Name:      copyName(m.profiles, src.Name),
		Editable:  true,
		Mapping:   cloneMapping(src.Mapping),
		UpdatedAt: m.now(),
	}
	if err := m.insert(p); err != nil {
		return Profile{}, err
	}
	return p.Clone(), nil
}

// Update replaces the name and mapping of an editable profile.
func (m *Manager) Update(p Profile) (Profile, error) {
	if err := ValidateMapping(p.Mapping); err != nil {
		return Profile{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOf(m.profiles, p.ID)
	if i < 0 {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotFound, p.ID)
	}
	cur := m.profiles[i]
	if !cur.Editable {
		return Profile{}, fmt.Errorf("%w: %s", ErrProfileNotEditable, cur.Name)
	}

	updated := Profile{
		ID:        cur.ID,
		Name:      cur.Name,
		Editable:  true,
		Mapping:   cloneMapping(p.Mapping),
		UpdatedAt: m.now(),
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		updated.Name = name
	}

	next := append([]Profile(nil), m.profiles...)
	next[i] = updated
	if err := m.store.SaveProfiles(toRecords(next)); err != nil {
		return Profile{}, fmt.Errorf("saving profiles: %w", err)
	}
	m.profiles = next
	if cur.ID == m.activeID {
		m.rebuild()
	}
	return updated.Clone(), nil
}

// Delete removes a profile. Deleting the active profile promotes the first
// remaining profile, or leaves no active profile when none remain.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := indexOf(m.profiles, id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}

	next := make([]Profile, 0, len(m.profiles)-1)
	next = append(next, m.profiles[:i]...)
	next = append(next, m.profiles[i+1:]...)

	if err := m.store.SaveProfiles(toRecords(next)); err != nil {
		return fmt.Errorf("saving profiles: %w", err)
	}
	m.profiles = next

	if id == m.activeID {
		activeID := ""
		if len(next) > 0 {
			activeID = next[0].ID
		}
		if err := m.persistActive(activeID); err != nil {
			m.logger.Error("persisting active profile", "error", err)
		}
		m.activeID = activeID
		m.rebuild()
	}
	return nil
}

// insert appends p and persists the set. Caller holds m.mu.
func (m *Manager) insert(p Profile) error {
	next := append(append([]Profile(nil), m.profiles...), p)
	if err := m.store.SaveProfiles(toRecords(next)); err != nil {
		return fmt.Errorf("saving profiles: %w", err)
	}
	m.profiles = next
	if m.activeID == "" {
		if err := m.persistActive(p.ID); err != nil {
			m.logger.Error("persisting active profile", "error", err)
		}
		m.activeID = p.ID
		m.rebuild()
	}
	return nil
}

func (m *Manager) persistActive(id string) error {
	var err error
	if id == "" {
		err = m.store.DeleteSetting(activeProfileKey)
	} else {
		err = m.store.SetSetting(activeProfileKey, id)
	}
	if err != nil {
		return fmt.Errorf("saving active profile: %w", err)
	}
	return nil
}

// rebuild recomputes the forward and inverse tables. Caller holds m.mu.
func (m *Manager) rebuild() {
	i := indexOf(m.profiles, m.activeID)
	if i < 0 {
		m.forward, m.inverse = map[string]string{}, map[string]string{}
		return
	}
	m.forward = cloneMapping(m.profiles[i].Mapping)
	m.inverse = invert(m.forward)
}

// invert maps every target back to its source. Sources are visited in sorted
// order so a collision deterministically resolves to the last source.
func invert(forward map[string]string) map[string]string {
	keys := make([]string, 0, len(forward))
	for k := range forward {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	inv := make(map[string]string, len(forward))
	for _, k := range keys {
		inv[forward[k]] = k
	}
	return inv
}

// ValidateMapping checks that every key is exactly one grapheme cluster and
// every value is non-empty.
func ValidateMapping(mapping map[string]string) error {
	for k, v := range mapping {
		if uniseg.GraphemeClusterCount(k) != 1 {
			return fmt.Errorf("%w: key %q is not a single character", ErrInvalidMapping, k)
		}
		if v == "" {
			return fmt.Errorf("%w: key %q maps to an empty string", ErrInvalidMapping, k)
		}
	}
	return nil
}

var copySuffix = regexp.MustCompile(`^(.*) \(copy(?: (\d+))?\)$`)

// copyName returns "<base> (copy)" or the first free "<base> (copy N)",
// where base is name without any existing copy suffix.
func copyName(profiles []Profile, name string) string {
	base := name
	if sm := copySuffix.FindStringSubmatch(name); sm != nil {
		base = sm[1]
	}
	candidate := base + " (copy)"
	for n := 2; nameTaken(profiles, candidate); n++ {
		candidate = base + " (copy " + strconv.Itoa(n) + ")"
	}
	return candidate
}

// uniqueName returns name if no profile uses it, otherwise a copy-style name.
func uniqueName(profiles []Profile, name string) string {
	if !nameTaken(profiles, name) {
		return name
	}
	return copyName(profiles, name)
}

func nameTaken(profiles []Profile, name string) bool {
	for _, p := range profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

func indexOf(profiles []Profile, id string) int {
	for i, p := range profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func fromRecord(r storage.Profile) Profile {
	mapping := r.Mapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	return Profile{ID: r.ID, Name: r.Name, Editable: r.Editable, Mapping: mapping, UpdatedAt: r.UpdatedAt}
}

func toRecords(profiles []Profile) []storage.Profile {
	out := make([]storage.Profile, len(profiles))
	for i, p := range profiles {
		out[i] = storage.Profile{
			ID:        p.ID,
			Name:      p.Name,
			Editable:  p.Editable,
			Mapping:   p.Mapping,
			UpdatedAt: p.UpdatedAt,
		}
	}
	return out
}
