package strata

import (
	"context"
	"os"

	"github.com/jward/strata/internal/sourcekit"
	"github.com/jward/strata/internal/store"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel/attribute"
)

// AnswerSource records which path produced a subclass answer.
type AnswerSource string

const (
	SourceGraph AnswerSource = "graph"
	SourceProbe AnswerSource = "probe"
)

// SubclassAnswer is the result of Engine.IsSubclass.
type SubclassAnswer struct {
	IsSubclass bool
	Source     AnswerSource
	Chain      []string // class names walked, starting at the subclass
	ProbeSteps int
}

// Conformance is one declared protocol conformance.
type Conformance struct {
	Protocol *Symbol
	// DeclaredOn is the type itself or the extension carrying the conformance.
	DeclaredOn *Symbol
	Location   Location
}

// CallSite is a call of an instance method.
type CallSite struct {
	Method   *Symbol
	Caller   *Symbol // nil when the index records no enclosing callable
	Location Location
}

// IsSubclass reports whether sub inherits from super. The symbol graph is
// consulted first; when either name does not resolve to a single class, the
// graph chain ends at a class declared outside the index, or the graph
// lookup fails, the question is handed to the Prober using usage as the
// reference site.
func (e *Engine) IsSubclass(ctx context.Context, sub, super string, usage Location) (ans *SubclassAnswer, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.IsSubclass",
		attribute.String("subclass", sub), attribute.String("superclass", super))
	defer func() { endSpan(span, err) }()

	ans, conclusive, err := e.isSubclassInGraph(ctx, sub, super)
	if err != nil {
		if usage.Path == "" || e.service == nil {
			return nil, err
		}
		slogctx.Warn(ctx, "graph lookup failed, probing", "subclass", sub, "superclass", super, "error", err)
		conclusive = false
	}
	if conclusive {
		span.SetAttributes(attribute.String("source", string(SourceGraph)))
		return ans, nil
	}

	if usage.Path == "" {
		return nil, errors.Errorf("is %s a subclass of %s: graph inconclusive and no usage location to probe from", sub, super)
	}
	slogctx.Debug(ctx, "graph inconclusive, probing", "subclass", sub, "superclass", super, "path", usage.Path)
	res, err := e.Prober().IsSubclass(ctx, sub, super, usage)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("source", string(SourceProbe)))
	return &SubclassAnswer{
		IsSubclass: res.Verdict == VerdictConfirmed,
		Source:     SourceProbe,
		Chain:      res.Chain,
		ProbeSteps: res.Steps,
	}, nil
}

// isSubclassInGraph answers from the graph alone. conclusive is false when
// a probe is needed.
func (e *Engine) isSubclassInGraph(ctx context.Context, sub, super string) (*SubclassAnswer, bool, error) {
	subSym, err := e.resolveOne(ctx, sub, store.KindClass)
	if err != nil {
		return resolutionFallback(ctx, sub, err)
	}
	superSym, err := e.resolveOne(ctx, super, store.KindClass)
	if err != nil {
		return resolutionFallback(ctx, super, err)
	}

	chain, err := e.Superclasses(ctx, subSym)
	if err != nil {
		return nil, false, err
	}
	ans := &SubclassAnswer{Source: SourceGraph, Chain: []string{subSym.Name}}
	for _, c := range chain {
		ans.Chain = append(ans.Chain, c.Name)
		if c.Same(superSym) {
			ans.IsSubclass = true
			return ans, true, nil
		}
	}

	// A chain that stops at a class the index never defined is cut off at
	// a module boundary, not at a real root.
	top := subSym
	if len(chain) > 0 {
		top = chain[len(chain)-1]
	}
	for _, r := range e.terminalRoots {
		if top.Name == r {
			return ans, true, nil
		}
	}
	def, err := e.definitionOf(top.USR)
	if err != nil {
		return nil, false, err
	}
	return ans, def != nil, nil
}

func resolutionFallback(ctx context.Context, name string, err error) (*SubclassAnswer, bool, error) {
	var rerr *SymbolResolutionError
	if errors.As(err, &rerr) {
		slogctx.Debug(ctx, "class did not resolve in graph", "name", name, "candidates", len(rerr.Candidates))
		return nil, false, nil
	}
	return nil, false, err
}

// ConformanceDeclarations returns every protocol conformance declared
// directly on sym or on one of its extensions, with its location.
func (e *Engine) ConformanceDeclarations(ctx context.Context, sym *Symbol) (out []Conformance, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.ConformanceDeclarations", attribute.String("usr", string(sym.USR)))
	defer func() { endSpan(span, err) }()

	sources, err := e.conformanceSources(sym)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		occs, err := e.index.RelatedOccurrences(src.USR, store.RoleBaseOf)
		if err != nil {
			return nil, errors.Errorf("conformance declarations of %s: %w", sym.Name, err)
		}
		for _, occ := range occs {
			if occ.Symbol.Kind != store.KindProtocol {
				continue
			}
			out = append(out, Conformance{Protocol: occ.Symbol, DeclaredOn: src, Location: occ.Location})
		}
	}
	span.SetAttributes(attribute.Int("count", len(out)))
	return out, nil
}

// CallSites returns every call of the instance methods named methodName
// that typeName can dispatch to.
func (e *Engine) CallSites(ctx context.Context, typeName, methodName string) (sites []CallSite, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.CallSites",
		attribute.String("type", typeName), attribute.String("method", methodName))
	defer func() { endSpan(span, err) }()

	typ, err := e.Resolve(ctx, typeName)
	if err != nil {
		return nil, err
	}
	methods, err := e.InstanceMethods(ctx, methodName, typ)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		occs, err := e.index.Occurrences(m.USR, store.RoleCall)
		if err != nil {
			return nil, errors.Errorf("call sites of %s: %w", m.Name, err)
		}
		for _, occ := range occs {
			site := CallSite{Method: m, Location: occ.Location}
			if callers := occ.RelatedBy(store.RoleCalledBy | store.RoleContainedBy); len(callers) > 0 {
				site.Caller = callers[0]
			}
			sites = append(sites, site)
		}
	}
	span.SetAttributes(attribute.Int("count", len(sites)))
	return sites, nil
}

// ExpressionTypeAt returns the type of the innermost expression containing
// loc, or nil when no expression covers it.
func (e *Engine) ExpressionTypeAt(ctx context.Context, loc Location) (et *sourcekit.ExpressionType, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.ExpressionTypeAt",
		attribute.String("path", loc.Path), attribute.Int("line", loc.Line), attribute.Int("column", loc.UTF8Column))
	defer func() { endSpan(span, err) }()

	if e.service == nil {
		return nil, errors.WithStack(ErrNoSemanticService)
	}
	args, offset, err := e.locate(loc)
	if err != nil {
		return nil, err
	}
	types, err := e.service.ExpressionTypes(ctx, sourcekit.ExpressionTypeRequest{
		SourceFile:   loc.Path,
		CompilerArgs: args,
	})
	if err != nil {
		return nil, errors.Errorf("expression types in %s: %w", loc.Path, err)
	}
	for i := range types {
		t := types[i]
		if !t.Contains(offset) {
			continue
		}
		if et == nil || t.Length < et.Length {
			et = &t
		}
	}
	return et, nil
}

// MethodParameterType returns the type of the parameter at position in the
// signature the service reports for method. Instance methods report a
// curried type, so position 0 is the receiver.
func (e *Engine) MethodParameterType(ctx context.Context, method *Symbol, position int) (typ string, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.MethodParameterType",
		attribute.String("usr", string(method.USR)), attribute.Int("position", position))
	defer func() { endSpan(span, err) }()

	sig, err := e.declaredTypeName(ctx, method)
	if err != nil {
		return "", err
	}
	return e.parser.ParameterTypeAt(ctx, position, sig)
}

// DeclaredLeafTypes returns the leaf type identifiers of sym's declared type.
func (e *Engine) DeclaredLeafTypes(ctx context.Context, sym *Symbol) (types []string, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.DeclaredLeafTypes", attribute.String("usr", string(sym.USR)))
	defer func() { endSpan(span, err) }()

	typeName, err := e.declaredTypeName(ctx, sym)
	if err != nil {
		return nil, err
	}
	return e.parser.LeafTypes(ctx, typeName)
}

// declaredTypeName asks the service for the type of sym at its definition.
func (e *Engine) declaredTypeName(ctx context.Context, sym *Symbol) (string, error) {
	if e.service == nil {
		return "", errors.WithStack(ErrNoSemanticService)
	}
	def, err := e.definitionOf(sym.USR)
	if err != nil {
		return "", err
	}
	if def == nil {
		return "", errors.Errorf("%s (%s) has no definition in the graph", sym.Name, sym.USR)
	}
	args, offset, err := e.locate(def.Location)
	if err != nil {
		return "", err
	}
	info, err := e.service.CursorInfo(ctx, sourcekit.CursorInfoRequest{
		SourceFile:   def.Location.Path,
		Offset:       offset,
		CompilerArgs: args,
	})
	if err != nil {
		return "", errors.Errorf("cursor info for %s: %w", sym.Name, err)
	}
	return info.Require(sourcekit.KeyTypeName)
}

// locate returns the compiler arguments for loc's file and loc's byte offset.
func (e *Engine) locate(loc Location) ([]string, int, error) {
	args := e.invocations.Lookup(loc.Path)
	if args == nil {
		return nil, 0, errors.Errorf("%w: %s", ErrNoInvocation, loc.Path)
	}
	src, err := os.ReadFile(loc.Path)
	if err != nil {
		return nil, 0, errors.Errorf("read %s: %w", loc.Path, err)
	}
	offset, err := ByteOffset(src, loc.Line, loc.UTF8Column)
	if err != nil {
		return nil, 0, errors.Errorf("%s: %w", loc.Path, err)
	}
	return args, offset, nil
}
