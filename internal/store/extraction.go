package store

import (
	"database/sql"

	"gitlab.com/tozd/go/errors"
)

// Write paths used to seed a graph through CommitBatch. The analysis engine
// never calls these.

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertSymbolTx(ex execer, sym *Symbol) error {
	if sym.USR == "" {
		return errors.New("insert symbol: empty USR")
	}
	_, err := ex.Exec(
		`INSERT INTO symbols (usr, name, kind) VALUES (?, ?, ?)
		 ON CONFLICT(usr) DO UPDATE SET name = excluded.name, kind = excluded.kind`,
		string(sym.USR), sym.Name, string(sym.Kind),
	)
	if err != nil {
		return errors.Errorf("insert symbol %s: %w", sym.USR, err)
	}
	return nil
}

func insertOccurrenceTx(ex execer, occ *Occurrence) (int64, error) {
	if occ.Symbol == nil {
		return 0, errors.New("insert occurrence: nil symbol")
	}
	res, err := ex.Exec(
		`INSERT INTO occurrences (usr, roles, path, line, utf8_column) VALUES (?, ?, ?, ?, ?)`,
		string(occ.Symbol.USR), int64(occ.Roles), occ.Location.Path, occ.Location.Line, occ.Location.UTF8Column,
	)
	if err != nil {
		return 0, errors.Errorf("insert occurrence of %s: %w", occ.Symbol.USR, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Errorf("last insert id: %w", err)
	}
	occ.ID = id

	for _, rel := range occ.Relations {
		if rel.Symbol == nil {
			return 0, errors.Errorf("insert relation on occurrence %d: nil symbol", id)
		}
		if _, err := ex.Exec(
			`INSERT INTO relations (occurrence_id, related_usr, roles) VALUES (?, ?, ?)`,
			id, string(rel.Symbol.USR), int64(rel.Roles),
		); err != nil {
			return 0, errors.Errorf("insert relation %d -> %s: %w", id, rel.Symbol.USR, err)
		}
	}
	return id, nil
}
