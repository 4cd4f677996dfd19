package strata

import (
	"context"
	"slices"
	"strings"

	"github.com/jward/strata/internal/store"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel/attribute"
)

// qualifiableKinds are the kinds that have a fully qualified name.
var qualifiableKinds = []Kind{
	store.KindEnum,
	store.KindStruct,
	store.KindClass,
	store.KindProtocol,
	store.KindExtension,
	store.KindTypeAlias,
}

// Superclass returns the direct superclass of sym, or nil for a root class
// or a non-class. Several distinct superclasses indicate an inconsistent
// index; the first is used and a warning is logged.
func (e *Engine) Superclass(ctx context.Context, sym *Symbol) (sup *Symbol, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.Superclass", attribute.String("usr", string(sym.USR)))
	defer func() { endSpan(span, err) }()

	return e.superclass(ctx, sym)
}

func (e *Engine) superclass(ctx context.Context, sym *Symbol) (*Symbol, error) {
	occs, err := e.index.RelatedOccurrences(sym.USR, store.RoleBaseOf)
	if err != nil {
		return nil, errors.Errorf("superclass of %s: %w", sym.Name, err)
	}
	var classes []*Symbol
	for _, occ := range occs {
		if occ.Symbol.Kind == store.KindClass {
			classes = append(classes, occ.Symbol)
		}
	}
	classes = store.DedupeSymbols(classes)
	switch len(classes) {
	case 0:
		return nil, nil
	case 1:
		return classes[0], nil
	}
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.Name
	}
	slogctx.Warn(ctx, "multiple superclasses recorded; using the first",
		"symbol", sym.Name, "usr", string(sym.USR), "superclasses", names)
	return classes[0], nil
}

// Superclasses returns the superclass chain of sym, nearest first. The
// result never contains sym. A cycle stops the walk with a warning.
func (e *Engine) Superclasses(ctx context.Context, sym *Symbol) (chain []*Symbol, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.Superclasses", attribute.String("usr", string(sym.USR)))
	defer func() { endSpan(span, err) }()

	visited := map[USR]bool{sym.USR: true}
	cur := sym
	for {
		sup, err := e.superclass(ctx, cur)
		if err != nil {
			return nil, err
		}
		if sup == nil {
			break
		}
		if visited[sup.USR] {
			slogctx.Warn(ctx, "superclass cycle", "symbol", sym.Name, "at", sup.Name)
			break
		}
		visited[sup.USR] = true
		chain = append(chain, sup)
		cur = sup
	}
	span.SetAttributes(attribute.Int("depth", len(chain)))
	return chain, nil
}

// protocolSet accumulates protocols by USR in discovery order.
type protocolSet struct {
	seen  map[USR]bool
	order []*Symbol
}

func newProtocolSet() protocolSet {
	return protocolSet{seen: make(map[USR]bool)}
}

func (p protocolSet) has(usr USR) bool {
	return p.seen[usr]
}

func (p protocolSet) with(sym *Symbol) protocolSet {
	p.seen[sym.USR] = true
	p.order = append(p.order, sym)
	return p
}

// ConformedProtocols returns the transitive closure of protocols sym
// conforms to: those declared on its definition or any of its extensions,
// plus every protocol those refine.
func (e *Engine) ConformedProtocols(ctx context.Context, sym *Symbol) (protos []*Symbol, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.ConformedProtocols", attribute.String("usr", string(sym.USR)))
	defer func() { endSpan(span, err) }()

	set, err := e.collectConformances(ctx, sym, newProtocolSet())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("count", len(set.order)))
	return set.order, nil
}

func (e *Engine) collectConformances(ctx context.Context, sym *Symbol, acc protocolSet) (protocolSet, error) {
	sources, err := e.conformanceSources(sym)
	if err != nil {
		return acc, err
	}
	for _, src := range sources {
		occs, err := e.index.RelatedOccurrences(src.USR, store.RoleBaseOf)
		if err != nil {
			return acc, errors.Errorf("conformances of %s: %w", src.Name, err)
		}
		for _, occ := range occs {
			proto := occ.Symbol
			if proto.Kind != store.KindProtocol || acc.has(proto.USR) {
				continue
			}
			acc = acc.with(proto)
			if acc, err = e.collectConformances(ctx, proto, acc); err != nil {
				return acc, err
			}
		}
	}
	return acc, nil
}

// conformanceSources returns sym followed by its extensions.
func (e *Engine) conformanceSources(sym *Symbol) ([]*Symbol, error) {
	exts, err := e.extensionsOf(sym)
	if err != nil {
		return nil, err
	}
	return append([]*Symbol{sym}, exts...), nil
}

// extensionsOf returns the extension declarations of sym. The index records
// "extension T" as a reference to T related to the extension by extendedBy.
func (e *Engine) extensionsOf(sym *Symbol) ([]*Symbol, error) {
	occs, err := e.index.Occurrences(sym.USR, store.RoleReference)
	if err != nil {
		return nil, errors.Errorf("extensions of %s: %w", sym.Name, err)
	}
	var exts []*Symbol
	for _, occ := range occs {
		exts = append(exts, occ.RelatedBy(store.RoleExtendedBy)...)
	}
	return store.DedupeSymbols(exts), nil
}

// extendedType returns the type an extension extends, or nil.
func (e *Engine) extendedType(ext *Symbol) (*Symbol, error) {
	occs, err := e.index.RelatedOccurrences(ext.USR, store.RoleExtendedBy)
	if err != nil {
		return nil, errors.Errorf("extended type of %s: %w", ext.USR, err)
	}
	if len(occs) == 0 {
		return nil, nil
	}
	return occs[0].Symbol, nil
}

// InstanceMethods returns the instance methods named name that sym can
// dispatch to: those whose enclosing type is sym, one of its superclasses,
// or one of its conformed protocols. Methods declared in an extension count
// as members of the extended type.
func (e *Engine) InstanceMethods(ctx context.Context, name string, sym *Symbol) (methods []*Symbol, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.InstanceMethods",
		attribute.String("name", name), attribute.String("usr", string(sym.USR)))
	defer func() { endSpan(span, err) }()

	owners := map[USR]bool{sym.USR: true}
	supers, err := e.Superclasses(ctx, sym)
	if err != nil {
		return nil, err
	}
	protos, err := e.ConformedProtocols(ctx, sym)
	if err != nil {
		return nil, err
	}
	for _, s := range slices.Concat(supers, protos) {
		owners[s.USR] = true
	}

	occs, err := e.index.CanonicalOccurrences(name)
	if err != nil {
		return nil, errors.Errorf("instance methods %s: %w", name, err)
	}
	for _, occ := range occs {
		if occ.Symbol.Kind != store.KindInstanceMethod || occ.Symbol.IsFromMacro {
			continue
		}
		parents := occ.RelatedBy(store.RoleChildOf)
		if len(parents) > 1 {
			return nil, errors.Errorf("method %s (%s): %w", occ.Symbol.Name, occ.Symbol.USR, ErrMultipleParents)
		}
		if len(parents) == 0 {
			continue
		}
		owner := parents[0]
		if owner.Kind == store.KindExtension {
			extended, err := e.extendedType(owner)
			if err != nil {
				return nil, err
			}
			if extended == nil {
				continue
			}
			owner = extended
		}
		if owners[owner.USR] {
			methods = append(methods, occ.Symbol)
		}
	}
	return store.DedupeSymbols(methods), nil
}

// FullyQualifiedName joins the names of sym's enclosing types with ".".
// ok is false for kinds other than enum, struct, class, protocol,
// extension and typealias.
func (e *Engine) FullyQualifiedName(ctx context.Context, sym *Symbol) (name string, ok bool, err error) {
	ctx, span := e.startSpan(ctx, "strata.Engine.FullyQualifiedName", attribute.String("usr", string(sym.USR)))
	defer func() { endSpan(span, err) }()

	if !slices.Contains(qualifiableKinds, sym.Kind) {
		return "", false, nil
	}
	name, err = e.qualifiedPath(ctx, sym)
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// qualifiedPath walks childOf parents upward while they are qualifiable,
// without checking the kind of sym itself. A parent that has no qualified
// name ends the walk, leaving sym's own name.
func (e *Engine) qualifiedPath(ctx context.Context, sym *Symbol) (string, error) {
	names := []string{sym.Name}
	visited := map[USR]bool{sym.USR: true}
	cur := sym
	for {
		parent, err := e.parentOf(cur)
		if err != nil {
			return "", err
		}
		if parent == nil || !slices.Contains(qualifiableKinds, parent.Kind) {
			break
		}
		if visited[parent.USR] {
			slogctx.Warn(ctx, "childOf cycle", "symbol", sym.Name, "at", parent.Name)
			break
		}
		visited[parent.USR] = true
		names = append(names, parent.Name)
		cur = parent
	}
	slices.Reverse(names)
	return strings.Join(names, "."), nil
}

// parentOf returns the single childOf parent recorded on sym's definition.
func (e *Engine) parentOf(sym *Symbol) (*Symbol, error) {
	def, err := e.definitionOf(sym.USR)
	if err != nil || def == nil {
		return nil, err
	}
	parents := def.RelatedBy(store.RoleChildOf)
	switch len(parents) {
	case 0:
		return nil, nil
	case 1:
		return parents[0], nil
	}
	return nil, errors.Errorf("%s (%s): %w", sym.Name, sym.USR, ErrMultipleParents)
}

// definitionOf returns the canonical occurrence of usr, falling back to
// its first definition. It returns nil when neither exists.
func (e *Engine) definitionOf(usr USR) (*Occurrence, error) {
	occs, err := e.index.Occurrences(usr, store.RoleCanonical)
	if err != nil {
		return nil, errors.Errorf("definition of %s: %w", usr, err)
	}
	if len(occs) == 0 {
		occs, err = e.index.Occurrences(usr, store.RoleDefinition)
		if err != nil {
			return nil, errors.Errorf("definition of %s: %w", usr, err)
		}
	}
	if len(occs) == 0 {
		return nil, nil
	}
	return occs[0], nil
}
