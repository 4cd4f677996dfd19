package strata

import (
	"context"
	"strings"

	"github.com/jward/strata/internal/store"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Resolve maps a possibly dotted name to exactly one declaration of any
// kind. Zero or several matches fail with *SymbolResolutionError.
func (e *Engine) Resolve(ctx context.Context, name string) (*Symbol, error) {
	return e.resolveOne(ctx, name, "")
}

// ResolveKind returns every declaration named name with the given kind.
// An empty kind matches all kinds.
func (e *Engine) ResolveKind(ctx context.Context, name string, kind Kind) (syms []*Symbol, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.ResolveKind",
		attribute.String("name", name), attribute.String("kind", string(kind)))
	defer func() { endSpan(span, err) }()

	return e.candidates(ctx, name, kind)
}

// ResolveInFile is ResolveKind restricted to declarations in path.
func (e *Engine) ResolveInFile(ctx context.Context, name string, kind Kind, path string) (syms []*Symbol, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.ResolveInFile",
		attribute.String("name", name), attribute.String("kind", string(kind)), attribute.String("path", path))
	defer func() { endSpan(span, err) }()

	cands, err := e.candidates(ctx, name, kind)
	if err != nil {
		return nil, err
	}
	declared, err := e.index.SymbolsInFile(path)
	if err != nil {
		return nil, errors.Errorf("resolve %s in %s: %w", name, path, err)
	}
	inFile := make(map[USR]bool, len(declared))
	for _, d := range declared {
		inFile[d.USR] = true
	}
	var out []*Symbol
	for _, c := range cands {
		if inFile[c.USR] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (e *Engine) resolveOne(ctx context.Context, name string, kind Kind) (sym *Symbol, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.Resolve",
		attribute.String("name", name), attribute.String("kind", string(kind)))
	defer func() { endSpan(span, err) }()

	cands, err := e.candidates(ctx, name, kind)
	if err != nil {
		return nil, err
	}
	if len(cands) != 1 {
		return nil, &SymbolResolutionError{Name: name, Candidates: cands}
	}
	span.SetAttributes(attribute.String("usr", string(cands[0].USR)))
	return cands[0], nil
}

// candidates applies the resolution rule: look up canonical occurrences of
// the last dotted component, dedupe by USR, keep matching kinds, drop macro
// expansions and, for dotted names, require the qualified path to match.
func (e *Engine) candidates(ctx context.Context, name string, kind Kind) ([]*Symbol, error) {
	tail, qualified := name, ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		tail, qualified = name[i+1:], name
	}
	if tail == "" {
		return nil, nil
	}

	occs, err := e.index.CanonicalOccurrences(tail)
	if err != nil {
		return nil, errors.Errorf("resolve %s: %w", name, err)
	}
	syms := make([]*Symbol, 0, len(occs))
	for _, occ := range occs {
		syms = append(syms, occ.Symbol)
	}

	var out []*Symbol
	for _, sym := range store.DedupeSymbols(syms) {
		if kind != "" && sym.Kind != kind {
			continue
		}
		// Extensions share the extended type's name; a bare name means the type.
		if kind == "" && sym.Kind == store.KindExtension {
			continue
		}
		if sym.IsFromMacro || store.IsMacroUSR(sym.USR) {
			continue
		}
		if qualified != "" {
			path, err := e.qualifiedPath(ctx, sym)
			if err != nil {
				return nil, errors.Errorf("resolve %s: %w", name, err)
			}
			if path != qualified {
				continue
			}
		}
		out = append(out, sym)
	}
	return out, nil
}
