// Package storage is the persistence collaborator around the risk engine:
// item snapshots and resolved outcomes in SQLite. The engine itself never
// touches it; the API layer and the trainer do.
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/larder-app/larder/internal/pantry"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dateLayout = "2006-01-02"

// Store wraps a SQLite database holding items and outcomes.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used
// by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "larder.db")
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

// migrate applies embedded SQL migration files that haven't been run yet.
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

// --- Items ---

// SaveItem inserts or replaces an item snapshot.
func (s *Store) SaveItem(item pantry.Item, createdAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO items (id, name, category, quantity, unit, purchase_date, expiry_date, last_used_date, storage_location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			quantity = excluded.quantity,
			unit = excluded.unit,
			purchase_date = excluded.purchase_date,
			expiry_date = excluded.expiry_date,
			last_used_date = excluded.last_used_date,
			storage_location = excluded.storage_location`,
		item.ID, item.Name, categoryOrUnknown(item.Category), item.Quantity, item.Unit,
		dateOrNil(item.PurchaseDate), dateOrNil(item.ExpiryDate), dateOrNil(item.LastUsedDate),
		locationOrPantry(item.Location), createdAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetItem returns one item by ID.
func (s *Store) GetItem(id string) (pantry.Item, error) {
	row := s.db.QueryRow(`
		SELECT id, name, category, quantity, unit, purchase_date, expiry_date, last_used_date, storage_location
		FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return pantry.Item{}, ErrNotFound
	}
	return item, err
}

// ListItems returns all item snapshots, oldest first.
func (s *Store) ListItems() ([]pantry.Item, error) {
	rows, err := s.db.Query(`
		SELECT id, name, category, quantity, unit, purchase_date, expiry_date, last_used_date, storage_location
		FROM items ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []pantry.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteItem removes an item by ID.
func (s *Store) DeleteItem(id string) error {
	res, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Outcomes ---

// SaveOutcome records a resolved item for later training.
func (s *Store) SaveOutcome(o Outcome) error {
	spoiled := 0
	if o.Spoiled {
		spoiled = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO outcomes (id, item_id, name, category, quantity, unit, purchase_date, expiry_date, last_used_date, storage_location, spoiled, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ItemID, o.Name, categoryOrUnknown(o.Category), o.Quantity, o.Unit,
		dateOrNil(o.PurchaseDate), dateOrNil(o.ExpiryDate), dateOrNil(o.LastUsedDate),
		locationOrPantry(o.Location), spoiled, o.ResolvedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// ListOutcomes returns all recorded outcomes, oldest first.
func (s *Store) ListOutcomes() ([]Outcome, error) {
	rows, err := s.db.Query(`
		SELECT id, item_id, name, category, quantity, unit, purchase_date, expiry_date, last_used_date, storage_location, spoiled, resolved_at
		FROM outcomes ORDER BY resolved_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		var purchase, expiry, lastUsed sql.NullString
		var spoiled int
		var resolvedAt string
		if err := rows.Scan(&o.ID, &o.ItemID, &o.Name, &o.Category, &o.Quantity, &o.Unit,
			&purchase, &expiry, &lastUsed, &o.Location, &spoiled, &resolvedAt); err != nil {
			return nil, err
		}
		o.Spoiled = spoiled != 0
		var err error
		if o.PurchaseDate, err = parseDate(purchase); err != nil {
			return nil, fmt.Errorf("outcome %s: %w", o.ID, err)
		}
		if o.ExpiryDate, err = parseDate(expiry); err != nil {
			return nil, fmt.Errorf("outcome %s: %w", o.ID, err)
		}
		if o.LastUsedDate, err = parseDate(lastUsed); err != nil {
			return nil, fmt.Errorf("outcome %s: %w", o.ID, err)
		}
		t, err := time.Parse(time.RFC3339, resolvedAt)
		if err != nil {
			return nil, fmt.Errorf("outcome %s: parsing resolved_at: %w", o.ID, err)
		}
		o.ResolvedAt = t
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// CountOutcomes returns the number of recorded outcomes.
func (s *Store) CountOutcomes() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM outcomes`).Scan(&n)
	return n, err
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (pantry.Item, error) {
	var item pantry.Item
	var purchase, expiry, lastUsed sql.NullString
	if err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Quantity, &item.Unit,
		&purchase, &expiry, &lastUsed, &item.Location); err != nil {
		return pantry.Item{}, err
	}
	var err error
	if item.PurchaseDate, err = parseDate(purchase); err != nil {
		return pantry.Item{}, fmt.Errorf("item %s: %w", item.ID, err)
	}
	if item.ExpiryDate, err = parseDate(expiry); err != nil {
		return pantry.Item{}, fmt.Errorf("item %s: %w", item.ID, err)
	}
	if item.LastUsedDate, err = parseDate(lastUsed); err != nil {
		return pantry.Item{}, fmt.Errorf("item %s: %w", item.ID, err)
	}
	return item, nil
}

func dateOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", s.String, err)
	}
	return &t, nil
}

func categoryOrUnknown(c pantry.Category) pantry.Category {
	if c == "" {
		return pantry.CategoryUnknown
	}
	return c
}

func locationOrPantry(l pantry.StorageLocation) pantry.StorageLocation {
	if l == "" {
		return pantry.LocationPantry
	}
	return l
}
