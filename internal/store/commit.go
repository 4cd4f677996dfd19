package store

import (
	"gitlab.com/tozd/go/errors"
)

// CommitBatch writes every buffered symbol, occurrence, and relation of
// batch plus the given metadata in a single transaction. On error nothing
// is written. Occurrence IDs are filled in on success.
func (s *Store) CommitBatch(batch *Batch, metadata map[string]string) error {
	batch.mu.Lock()
	defer batch.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for _, usr := range batch.order {
		if err := insertSymbolTx(tx, batch.symbols[usr]); err != nil {
			return errors.Errorf("commit batch: %w", err)
		}
	}
	for _, occ := range batch.occurrences {
		if _, err := insertOccurrenceTx(tx, occ); err != nil {
			return errors.Errorf("commit batch: %w", err)
		}
	}
	for key, value := range metadata {
		if _, err := tx.Exec(
			`INSERT INTO metadata (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return errors.Errorf("commit batch: metadata %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Errorf("commit batch: %w", err)
	}
	return nil
}
