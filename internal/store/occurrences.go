package store

import (
	"database/sql"

	"gitlab.com/tozd/go/errors"
)

// occurrenceCols selects an occurrence joined with its symbol. Queries using
// it must alias occurrences as o and symbols as s.
const occurrenceCols = `o.id, o.roles, o.path, o.line, o.utf8_column, s.usr, s.name, s.kind`

// Occurrences returns occurrences of usr carrying any of roles, in insertion order.
func (s *Store) Occurrences(usr USR, roles Role) ([]*Occurrence, error) {
	occs, err := s.queryOccurrences(
		`SELECT `+occurrenceCols+`
		 FROM occurrences o JOIN symbols s ON s.usr = o.usr
		 WHERE o.usr = ? AND (o.roles & ?) != 0
		 ORDER BY o.id`,
		string(usr), int64(roles),
	)
	if err != nil {
		return nil, errors.Errorf("occurrences of %s: %w", usr, err)
	}
	return occs, nil
}

// RelatedOccurrences returns occurrences that hold a relation to usr whose
// relation roles intersect roles. For example, the superclass reference in
// "class Leaf: Mid" is an occurrence of Mid related to Leaf by baseOf.
func (s *Store) RelatedOccurrences(usr USR, roles Role) ([]*Occurrence, error) {
	occs, err := s.queryOccurrences(
		`SELECT `+occurrenceCols+`
		 FROM occurrences o JOIN symbols s ON s.usr = o.usr
		 WHERE o.id IN (
		   SELECT r.occurrence_id FROM relations r
		   WHERE r.related_usr = ? AND (r.roles & ?) != 0
		 )
		 ORDER BY o.id`,
		string(usr), int64(roles),
	)
	if err != nil {
		return nil, errors.Errorf("occurrences related to %s: %w", usr, err)
	}
	return occs, nil
}

// CanonicalOccurrences returns the canonical occurrence of every declaration
// named name.
func (s *Store) CanonicalOccurrences(name string) ([]*Occurrence, error) {
	occs, err := s.queryOccurrences(
		`SELECT `+occurrenceCols+`
		 FROM occurrences o JOIN symbols s ON s.usr = o.usr
		 WHERE s.name = ? AND (o.roles & ?) != 0
		 ORDER BY o.id`,
		name, int64(RoleCanonical),
	)
	if err != nil {
		return nil, errors.Errorf("canonical occurrences of %q: %w", name, err)
	}
	return occs, nil
}

// SymbolsInFile returns the symbols declared or defined in path, ordered by
// first declaration.
func (s *Store) SymbolsInFile(path string) ([]*Symbol, error) {
	rows, err := s.db.Query(
		`SELECT s.usr, s.name, s.kind
		 FROM symbols s JOIN occurrences o ON o.usr = s.usr
		 WHERE o.path = ? AND (o.roles & ?) != 0
		 GROUP BY s.usr
		 ORDER BY MIN(o.id)`,
		path, int64(RoleDeclaration|RoleDefinition),
	)
	if err != nil {
		return nil, errors.Errorf("symbols in file %s: %w", path, err)
	}
	defer rows.Close()

	var syms []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, errors.Errorf("symbols in file %s: scan: %w", path, err)
		}
		syms = append(syms, sym)
	}
	return syms, rows.Err()
}

// SymbolByUSR returns the symbol for usr, or nil if it is not in the graph.
func (s *Store) SymbolByUSR(usr USR) (*Symbol, error) {
	sym, err := scanSymbol(s.db.QueryRow("SELECT usr, name, kind FROM symbols WHERE usr = ?", string(usr)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("symbol %s: %w", usr, err)
	}
	return sym, nil
}

func scanSymbol(scanner interface{ Scan(...any) error }) (*Symbol, error) {
	var usr, name, kind string
	if err := scanner.Scan(&usr, &name, &kind); err != nil {
		return nil, err
	}
	return newSymbol(usr, name, kind), nil
}

func newSymbol(usr, name, kind string) *Symbol {
	return &Symbol{
		USR:         USR(usr),
		Name:        name,
		Kind:        Kind(kind),
		IsFromMacro: IsMacroUSR(USR(usr)),
	}
}

func (s *Store) queryOccurrences(query string, args ...any) ([]*Occurrence, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occs []*Occurrence
	for rows.Next() {
		occ := &Occurrence{}
		var roles int64
		var usr, name, kind string
		if err := rows.Scan(&occ.ID, &roles, &occ.Location.Path, &occ.Location.Line,
			&occ.Location.UTF8Column, &usr, &name, &kind); err != nil {
			return nil, errors.Errorf("scan occurrence: %w", err)
		}
		occ.Roles = Role(roles)
		occ.Symbol = newSymbol(usr, name, kind)
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachRelations(occs); err != nil {
		return nil, err
	}
	return occs, nil
}

// attachRelations loads relations for all occurrences in one query. Related
// USRs missing from the symbols table come back with kind "unknown".
func (s *Store) attachRelations(occs []*Occurrence) error {
	if len(occs) == 0 {
		return nil
	}
	ids := make([]int64, len(occs))
	byID := make(map[int64]*Occurrence, len(occs))
	for i, occ := range occs {
		ids[i] = occ.ID
		byID[occ.ID] = occ
	}

	rows, err := s.db.Query(
		`SELECT r.occurrence_id, r.roles, r.related_usr, COALESCE(s.name, ''), COALESCE(s.kind, 'unknown')
		 FROM relations r LEFT JOIN symbols s ON s.usr = r.related_usr
		 WHERE r.occurrence_id IN (`+placeholderList(len(ids))+`)
		 ORDER BY r.id`,
		int64sToArgs(ids)...,
	)
	if err != nil {
		return errors.Errorf("load relations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var occID, roles int64
		var usr, name, kind string
		if err := rows.Scan(&occID, &roles, &usr, &name, &kind); err != nil {
			return errors.Errorf("scan relation: %w", err)
		}
		occ := byID[occID]
		occ.Relations = append(occ.Relations, Relation{
			Symbol: newSymbol(usr, name, kind),
			Roles:  Role(roles),
		})
	}
	return rows.Err()
}
