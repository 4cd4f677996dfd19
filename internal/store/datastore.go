package store

// Index is the read-only query surface over the symbol graph. The analysis
// engine only ever talks to the graph through this interface.
type Index interface {
	// Occurrences returns occurrences of usr carrying any of roles.
	Occurrences(usr USR, roles Role) ([]*Occurrence, error)

	// RelatedOccurrences returns occurrences holding a relation to usr whose
	// relation roles intersect roles.
	RelatedOccurrences(usr USR, roles Role) ([]*Occurrence, error)

	// CanonicalOccurrences returns the canonical occurrence of every
	// declaration whose display name is name.
	CanonicalOccurrences(name string) ([]*Occurrence, error)

	// SymbolsInFile returns the symbols declared or defined in path.
	SymbolsInFile(path string) ([]*Symbol, error)
}

// Compile-time check: *Store satisfies Index.
var _ Index = (*Store)(nil)
