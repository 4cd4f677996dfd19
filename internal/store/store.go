package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"gitlab.com/tozd/go/errors"
)

// Store is the SQLite-backed symbol graph: symbols, their occurrences, and
// the relations recorded on each occurrence.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, errors.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return errors.Errorf("migrate: %w", err)
	}
	return nil
}

// relations.related_usr deliberately has no foreign key: relations may point
// at declarations from modules that were never indexed.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS symbols (
  usr             TEXT PRIMARY KEY,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS occurrences (
  id              INTEGER PRIMARY KEY,
  usr             TEXT NOT NULL REFERENCES symbols(usr),
  roles           INTEGER NOT NULL,
  path            TEXT NOT NULL,
  line            INTEGER NOT NULL,
  utf8_column     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS relations (
  id              INTEGER PRIMARY KEY,
  occurrence_id   INTEGER NOT NULL REFERENCES occurrences(id),
  related_usr     TEXT NOT NULL,
  roles           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_occurrences_usr ON occurrences(usr);
CREATE INDEX IF NOT EXISTS idx_occurrences_path ON occurrences(path);
CREATE INDEX IF NOT EXISTS idx_relations_occurrence ON relations(occurrence_id);
CREATE INDEX IF NOT EXISTS idx_relations_related ON relations(related_usr);
`

// Metadata keys written by ImportFixture.
const (
	MetadataModule = "module"
)

// SetMetadata upserts a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return errors.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// GetMetadata returns the value for key, or "" if unset.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}
