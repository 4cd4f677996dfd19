package store

import (
	"io"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Fixture is a YAML dump of a symbol graph. It is how graphs are seeded for
// tests and demos; producing one from real index-store artifacts happens
// outside this repository.
//
//	module: Demo
//	symbols:
//	  - {usr: "s:4Demo3MidC", name: Mid, kind: class}
//	occurrences:
//	  - usr: "s:4Demo3MidC"
//	    roles: [definition, canonical]
//	    path: /src/Mid.swift
//	    line: 3
//	    column: 7
//	    relations:
//	      - {usr: "s:4Demo4BaseC", roles: [baseOf]}
type Fixture struct {
	Module      string              `yaml:"module"`
	Symbols     []FixtureSymbol     `yaml:"symbols"`
	Occurrences []FixtureOccurrence `yaml:"occurrences"`
}

type FixtureSymbol struct {
	USR  string `yaml:"usr"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}

type FixtureOccurrence struct {
	USR       string            `yaml:"usr"`
	Roles     []string          `yaml:"roles"`
	Path      string            `yaml:"path"`
	Line      int               `yaml:"line"`
	Column    int               `yaml:"column"`
	Relations []FixtureRelation `yaml:"relations"`
}

type FixtureRelation struct {
	USR   string   `yaml:"usr"`
	Roles []string `yaml:"roles"`
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, errors.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// ImportFixture writes every symbol, occurrence, and relation of f in a
// single transaction. Nothing is written if any entry is invalid.
func (s *Store) ImportFixture(f *Fixture) error {
	batch := NewBatch()
	for _, fs := range f.Symbols {
		if _, err := batch.AddSymbol(newSymbol(fs.USR, fs.Name, fs.Kind)); err != nil {
			return errors.Errorf("import fixture: %w", err)
		}
	}

	for i, fo := range f.Occurrences {
		sym := batch.Symbol(USR(fo.USR))
		if sym == nil {
			return errors.Errorf("import fixture: occurrence %d references undeclared symbol %s", i, fo.USR)
		}
		roles, err := parseRoles(fo.Roles)
		if err != nil {
			return errors.Errorf("import fixture: occurrence %d: %w", i, err)
		}
		occ := &Occurrence{
			Symbol:   sym,
			Roles:    roles,
			Location: Location{Path: fo.Path, Line: fo.Line, UTF8Column: fo.Column},
		}
		for _, fr := range fo.Relations {
			relRoles, err := parseRoles(fr.Roles)
			if err != nil {
				return errors.Errorf("import fixture: occurrence %d relation %s: %w", i, fr.USR, err)
			}
			// Relations inherit their roles onto the occurrence, matching
			// how the index store reports them.
			occ.Roles |= relRoles
			target := batch.Symbol(USR(fr.USR))
			if target == nil {
				target = newSymbol(fr.USR, "", string(KindUnknown))
			}
			occ.Relations = append(occ.Relations, Relation{Symbol: target, Roles: relRoles})
		}
		if err := batch.AddOccurrence(occ); err != nil {
			return errors.Errorf("import fixture: occurrence %d: %w", i, err)
		}
	}

	var metadata map[string]string
	if f.Module != "" {
		metadata = map[string]string{MetadataModule: f.Module}
	}
	if err := s.CommitBatch(batch, metadata); err != nil {
		return errors.Errorf("import fixture: %w", err)
	}
	return nil
}

func parseRoles(names []string) (Role, error) {
	var roles Role
	for _, name := range names {
		r, ok := ParseRole(name)
		if !ok {
			return 0, errors.Errorf("unknown role %q", name)
		}
		roles |= r
	}
	return roles, nil
}
