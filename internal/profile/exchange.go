package profile

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
)

// exchangeFile is the TOML layout used for profile import and export:
//
//	name = "Russian ⇄ English"
//
//	[mapping]
//	"й" = "q"
type exchangeFile struct {
	Name    string            `toml:"name"`
	Mapping map[string]string `toml:"mapping"`
}

// Export writes the profile with the given id as TOML.
func (m *Manager) Export(id string, w io.Writer) error {
	p, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(w).Encode(exchangeFile{Name: p.Name, Mapping: p.Mapping}); err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return nil
}

// Import reads a TOML profile and stores it as a new editable profile. The
// imported name is de-duplicated against existing profiles.
func (m *Manager) Import(r io.Reader) (Profile, error) {
	var f exchangeFile
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := ValidateMapping(f.Mapping); err != nil {
		return Profile{}, err
	}

	name := strings.TrimSpace(f.Name)
	if name == "" {
		name = "Imported"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := Profile{
		ID:        m.newID(),
		Name:      uniqueName(m.profiles, name),
		Editable:  true,
		Mapping:   cloneMapping(f.Mapping),
		UpdatedAt: m.now(),
	}
	if err := m.insert(p); err != nil {
		return Profile{}, err
	}
	return p.Clone(), nil
}
