// Package invocation holds the compiler arguments used to build each source
// file, keyed by absolute path.
package invocation

import (
	"encoding/json"
	"io"
	"os"
	"slices"

	"gitlab.com/tozd/go/errors"
)

// Table maps a source file to the compiler arguments that built it. Only the
// first invocation recorded for a file is kept. A Table is immutable after
// construction and safe for concurrent reads.
type Table struct {
	args map[string][]string
}

// Entry is one record of a JSON compilation database.
type Entry struct {
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
}

// New builds a table from a path to invocations mapping, keeping the first
// invocation of each file.
func New(invocations map[string][][]string) *Table {
	t := &Table{args: make(map[string][]string, len(invocations))}
	for path, lists := range invocations {
		if len(lists) == 0 {
			continue
		}
		t.args[path] = slices.Clone(lists[0])
	}
	return t
}

// Load reads a JSON compilation database of the form
// [{"file": "/abs/A.swift", "arguments": ["-module-name", "App", ...]}].
func Load(r io.Reader) (*Table, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, errors.Errorf("decode compilation database: %w", err)
	}
	t := &Table{args: make(map[string][]string, len(entries))}
	for i, e := range entries {
		if e.File == "" {
			return nil, errors.Errorf("compilation database entry %d: missing file", i)
		}
		if _, seen := t.args[e.File]; seen {
			continue
		}
		t.args[e.File] = slices.Clone(e.Arguments)
	}
	return t, nil
}

// LoadFile reads a compilation database from disk.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("open compilation database: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Lookup returns a copy of the arguments for path, or nil when unknown.
func (t *Table) Lookup(path string) []string {
	if t == nil {
		return nil
	}
	args, ok := t.args[path]
	if !ok {
		return nil
	}
	return slices.Clone(args)
}

// Files returns every known path, sorted.
func (t *Table) Files() []string {
	if t == nil {
		return nil
	}
	files := make([]string, 0, len(t.args))
	for f := range t.args {
		files = append(files, f)
	}
	slices.Sort(files)
	return files
}

// Len returns the number of files in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.args)
}

// ModuleName returns the value following -module-name, or "" if absent.
func ModuleName(args []string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-module-name" {
			return args[i+1]
		}
	}
	return ""
}

// SubstituteFile returns a copy of args with every argument equal to from
// replaced by to.
func SubstituteFile(args []string, from, to string) []string {
	out := slices.Clone(args)
	for i, a := range out {
		if a == from {
			out[i] = to
		}
	}
	return out
}
