package strata

import (
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrMultipleParents is returned when a declaration carries more than one
	// childOf relation.
	ErrMultipleParents = errors.Base("declaration has more than one childOf parent")

	// ErrProbeDepthExceeded is returned when a probe chain climbs past the
	// configured maximum depth without reaching a verdict.
	ErrProbeDepthExceeded = errors.Base("probe depth exceeded")

	// ErrNoSemanticService is returned by queries that need the semantic
	// query service when none is configured.
	ErrNoSemanticService = errors.Base("no semantic query service configured")

	// ErrNoInvocation is returned when a file has no recorded compiler
	// invocation.
	ErrNoInvocation = errors.Base("no compiler invocation for file")
)

// SymbolResolutionError reports a name that matched zero or several
// declarations. Candidates holds every match, possibly none.
type SymbolResolutionError struct {
	Name       string
	Candidates []*Symbol
}

func (e *SymbolResolutionError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no declaration named %q", e.Name)
	}
	usrs := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		usrs[i] = string(c.USR)
	}
	return fmt.Sprintf("%q is ambiguous: %d candidates (%s)", e.Name, len(e.Candidates), strings.Join(usrs, ", "))
}

// DeclarationParseError reports a fully annotated declaration that did not
// contain a class reference.
type DeclarationParseError struct {
	Candidate string
	Decl      string
}

func (e *DeclarationParseError) Error() string {
	return fmt.Sprintf("no superclass reference in declaration of %s: %s", e.Candidate, e.Decl)
}
