package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding conversion profiles, settings and
// the trigger log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "relayout.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Profiles ---

// LoadProfiles returns every stored profile in display order.
func (s *Store) LoadProfiles() ([]Profile, error) {
	rows, err := s.db.Query(`SELECT id, name, editable, mapping, updated_at FROM profiles ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Profile
	for rows.Next() {
		var p Profile
		var editable int
		var mappingJSON, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &editable, &mappingJSON, &updatedAt); err != nil {
			return nil, err
		}
		p.Editable = editable != 0
		if err := json.Unmarshal([]byte(mappingJSON), &p.Mapping); err != nil {
			return nil, fmt.Errorf("decoding mapping of profile %s: %w", p.ID, err)
		}
		t, err := time.Parse(time.RFC3339, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		p.UpdatedAt = t
		results = append(results, p)
	}
	return results, rows.Err()
}

// SaveProfiles replaces the stored profile set with profiles, preserving
// slice order as display order. The write is atomic.
func (s *Store) SaveProfiles(profiles []Profile) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM profiles`); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing profiles: %w", err)
	}

	for i, p := range profiles {
		mapping := p.Mapping
		if mapping == nil {
			mapping = map[string]string{}
		}
		b, err := json.Marshal(mapping)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding mapping of profile %s: %w", p.ID, err)
		}
		updatedAt := p.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}
		editable := 0
		if p.Editable {
			editable = 1
		}
		if _, err := tx.Exec(`
			INSERT INTO profiles (id, position, name, editable, mapping, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, i, p.Name, editable, string(b), updatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting profile %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// --- Settings ---

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

func (s *Store) DeleteSetting(key string) error {
	_, err := s.db.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}

// --- Trigger log ---

// Fixed-width so that created_at sorts lexically.
const triggerTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) SaveTrigger(r TriggerRecord) error {
	changed := 0
	if r.Changed {
		changed = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO trigger_log (id, created_at, bundle_id, path, acquired_by, replaced_by, changed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(triggerTimeLayout), r.BundleID, r.Path,
		r.AcquiredBy, r.ReplacedBy, changed, r.Error,
	)
	return err
}

func (s *Store) GetRecentTriggers(limit int) ([]TriggerRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, bundle_id, path, acquired_by, replaced_by, changed, error
		FROM trigger_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TriggerRecord
	for rows.Next() {
		var r TriggerRecord
		var createdAt string
		var changed int
		if err := rows.Scan(&r.ID, &createdAt, &r.BundleID, &r.Path, &r.AcquiredBy, &r.ReplacedBy, &changed, &r.Error); err != nil {
			return nil, err
		}
		t, err := time.Parse(triggerTimeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		r.Changed = changed != 0
		results = append(results, r)
	}
	return results, rows.Err()
}

// PruneTriggers keeps only the newest keep records.
func (s *Store) PruneTriggers(keep int) error {
	_, err := s.db.Exec(`
		DELETE FROM trigger_log WHERE id NOT IN (
			SELECT id FROM trigger_log ORDER BY created_at DESC LIMIT ?
		)`, keep)
	return err
}
