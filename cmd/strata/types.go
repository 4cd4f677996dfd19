package main

// CLIResult is the top-level JSON envelope for every command.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
	// Candidates lists every match of a name that did not resolve uniquely.
	Candidates []CLISymbol `json:"candidates,omitempty"`
}

// CLISymbol is a JSON-friendly declaration.
type CLISymbol struct {
	USR       string `json:"usr"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	FromMacro bool   `json:"from_macro,omitempty"`
}

// CLILocation is a 1-based source position; Col counts UTF-8 bytes.
type CLILocation struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col"`
}

// CLISubclass is the answer to an inherits query.
type CLISubclass struct {
	Subclass   string   `json:"subclass"`
	Superclass string   `json:"superclass"`
	IsSubclass bool     `json:"is_subclass"`
	Source     string   `json:"source"`
	Chain      []string `json:"chain"`
	ProbeSteps int      `json:"probe_steps,omitempty"`
}

// CLIConformance is one declared protocol conformance.
type CLIConformance struct {
	Protocol   CLISymbol   `json:"protocol"`
	DeclaredOn CLISymbol   `json:"declared_on"`
	Location   CLILocation `json:"location"`
}

// CLICallSite is one call of an instance method.
type CLICallSite struct {
	Method   CLISymbol   `json:"method"`
	Caller   *CLISymbol  `json:"caller,omitempty"`
	Location CLILocation `json:"location"`
}

// CLIQualifiedName pairs a declaration with its dotted name.
type CLIQualifiedName struct {
	Symbol        CLISymbol `json:"symbol"`
	QualifiedName *string   `json:"qualified_name"`
}

// CLIExprType is the innermost expression type at a position.
type CLIExprType struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Type   string `json:"type"`
}

// CLITypeName is a single type answer, such as a parameter type.
type CLITypeName struct {
	Type string `json:"type"`
}

// CLIImportSummary reports what an import wrote.
type CLIImportSummary struct {
	Database    string `json:"database"`
	Module      string `json:"module,omitempty"`
	Symbols     int    `json:"symbols"`
	Occurrences int    `json:"occurrences"`
}
