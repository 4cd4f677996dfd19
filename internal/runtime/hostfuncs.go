package runtime

import (
	"context"

	"github.com/risor-io/risor/object"
	slogctx "github.com/veqryn/slog-context"

	"github.com/jward/strata"
)

// Query host functions. Every function that takes a declaration accepts
// either a name, which is resolved first, or a symbol map returned by an
// earlier call. Errors from the engine are raised in the script.

// resolve(name) → symbol
func makeResolveFn(q Queries) *object.Builtin {
	return object.NewBuiltin("resolve", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("resolve", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("resolve: %v", err)
		}
		sym, err := q.Resolve(ctx, name)
		if err != nil {
			return object.Errorf("resolve: %v", err)
		}
		return symbolToMap(sym)
	})
}

// resolve_kind(name, kind) → [symbol]
func makeResolveKindFn(q Queries) *object.Builtin {
	return object.NewBuiltin("resolve_kind", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("resolve_kind", 2, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("resolve_kind: %v", err)
		}
		kind, err := toString(args[1])
		if err != nil {
			return object.Errorf("resolve_kind: %v", err)
		}
		syms, err := q.ResolveKind(ctx, name, strata.Kind(kind))
		if err != nil {
			return object.Errorf("resolve_kind: %v", err)
		}
		return symbolsToList(syms)
	})
}

// superclasses(decl) → [symbol], nearest first
func makeSuperclassesFn(q Queries) *object.Builtin {
	return makeSymbolListFn("superclasses", q, q.Superclasses)
}

// conformed_protocols(decl) → [symbol]
func makeConformedProtocolsFn(q Queries) *object.Builtin {
	return makeSymbolListFn("conformed_protocols", q, q.ConformedProtocols)
}

func makeSymbolListFn(name string, q Queries, fn func(context.Context, *strata.Symbol) ([]*strata.Symbol, error)) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		sym, err := toSymbol(ctx, q, args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		syms, err := fn(ctx, sym)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return symbolsToList(syms)
	})
}

// conformances(decl) → [{protocol, declared_on, path, line, column}]
func makeConformancesFn(q Queries) *object.Builtin {
	return object.NewBuiltin("conformances", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("conformances", 1, len(args))
		}
		sym, err := toSymbol(ctx, q, args[0])
		if err != nil {
			return object.Errorf("conformances: %v", err)
		}
		confs, err := q.ConformanceDeclarations(ctx, sym)
		if err != nil {
			return object.Errorf("conformances: %v", err)
		}
		results := make([]object.Object, 0, len(confs))
		for _, c := range confs {
			m := locationFields(c.Location)
			m["protocol"] = symbolToMap(c.Protocol)
			m["declared_on"] = symbolToMap(c.DeclaredOn)
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// instance_methods(name, decl) → [symbol]
func makeInstanceMethodsFn(q Queries) *object.Builtin {
	return object.NewBuiltin("instance_methods", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("instance_methods", 2, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("instance_methods: %v", err)
		}
		sym, err := toSymbol(ctx, q, args[1])
		if err != nil {
			return object.Errorf("instance_methods: %v", err)
		}
		methods, err := q.InstanceMethods(ctx, name, sym)
		if err != nil {
			return object.Errorf("instance_methods: %v", err)
		}
		return symbolsToList(methods)
	})
}

// qualified_name(decl) → string, or nil for kinds without one
func makeQualifiedNameFn(q Queries) *object.Builtin {
	return object.NewBuiltin("qualified_name", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("qualified_name", 1, len(args))
		}
		sym, err := toSymbol(ctx, q, args[0])
		if err != nil {
			return object.Errorf("qualified_name: %v", err)
		}
		fqn, ok, err := q.FullyQualifiedName(ctx, sym)
		if err != nil {
			return object.Errorf("qualified_name: %v", err)
		}
		if !ok {
			return object.Nil
		}
		return object.NewString(fqn)
	})
}

// is_subclass(sub, super[, usage]) → {is_subclass, source, chain, probe_steps}
//
// usage is a location map and is only needed when the graph alone cannot
// answer.
func makeIsSubclassFn(q Queries) *object.Builtin {
	return object.NewBuiltin("is_subclass", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 2 || len(args) > 3 {
			return object.Errorf("is_subclass: expected 2 or 3 arguments, got %d", len(args))
		}
		sub, err := toString(args[0])
		if err != nil {
			return object.Errorf("is_subclass: %v", err)
		}
		super, err := toString(args[1])
		if err != nil {
			return object.Errorf("is_subclass: %v", err)
		}
		var usage strata.Location
		if len(args) == 3 {
			if usage, err = toLocation(args[2]); err != nil {
				return object.Errorf("is_subclass: %v", err)
			}
		}
		ans, err := q.IsSubclass(ctx, sub, super, usage)
		if err != nil {
			return object.Errorf("is_subclass: %v", err)
		}
		return object.NewMap(map[string]object.Object{
			"is_subclass": object.NewBool(ans.IsSubclass),
			"source":      object.NewString(string(ans.Source)),
			"chain":       stringsToList(ans.Chain),
			"probe_steps": object.NewInt(int64(ans.ProbeSteps)),
		})
	})
}

// call_sites(type, method) → [{method, caller, path, line, column}]
func makeCallSitesFn(q Queries) *object.Builtin {
	return object.NewBuiltin("call_sites", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("call_sites", 2, len(args))
		}
		typeName, err := toString(args[0])
		if err != nil {
			return object.Errorf("call_sites: %v", err)
		}
		method, err := toString(args[1])
		if err != nil {
			return object.Errorf("call_sites: %v", err)
		}
		sites, err := q.CallSites(ctx, typeName, method)
		if err != nil {
			return object.Errorf("call_sites: %v", err)
		}
		results := make([]object.Object, 0, len(sites))
		for _, s := range sites {
			m := locationFields(s.Location)
			m["method"] = symbolToMap(s.Method)
			m["caller"] = object.Nil
			if s.Caller != nil {
				m["caller"] = symbolToMap(s.Caller)
			}
			results = append(results, object.NewMap(m))
		}
		return object.NewList(results)
	})
}

// expression_type(location) → {offset, length, type}, or nil
func makeExpressionTypeFn(q Queries) *object.Builtin {
	return object.NewBuiltin("expression_type", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("expression_type", 1, len(args))
		}
		loc, err := toLocation(args[0])
		if err != nil {
			return object.Errorf("expression_type: %v", err)
		}
		et, err := q.ExpressionTypeAt(ctx, loc)
		if err != nil {
			return object.Errorf("expression_type: %v", err)
		}
		if et == nil {
			return object.Nil
		}
		return object.NewMap(map[string]object.Object{
			"offset": object.NewInt(int64(et.Offset)),
			"length": object.NewInt(int64(et.Length)),
			"type":   object.NewString(et.Type),
		})
	})
}

// parameter_type_at(method, position) → string
func makeParameterTypeFn(q Queries) *object.Builtin {
	return object.NewBuiltin("parameter_type_at", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("parameter_type_at", 2, len(args))
		}
		method, err := toSymbol(ctx, q, args[0])
		if err != nil {
			return object.Errorf("parameter_type_at: %v", err)
		}
		pos, err := toInt64(args[1])
		if err != nil {
			return object.Errorf("parameter_type_at: %v", err)
		}
		typ, err := q.MethodParameterType(ctx, method, int(pos))
		if err != nil {
			return object.Errorf("parameter_type_at: %v", err)
		}
		return object.NewString(typ)
	})
}

// leaf_types(decl) → [string]
func makeLeafTypesFn(q Queries) *object.Builtin {
	return object.NewBuiltin("leaf_types", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("leaf_types", 1, len(args))
		}
		sym, err := toSymbol(ctx, q, args[0])
		if err != nil {
			return object.Errorf("leaf_types: %v", err)
		}
		types, err := q.DeclaredLeafTypes(ctx, sym)
		if err != nil {
			return object.Errorf("leaf_types: %v", err)
		}
		return stringsToList(types)
	})
}

// newLogModule provides log.info/warn/error, routed to the context logger.
func newLogModule() *object.Module {
	level := func(name string, emit func(ctx context.Context, msg string, args ...any)) *object.Builtin {
		return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) != 1 {
				return object.NewArgsError("log."+name, 1, len(args))
			}
			msg, err := toString(args[0])
			if err != nil {
				msg = args[0].Inspect()
			}
			emit(ctx, msg, "source", "script")
			return object.Nil
		})
	}
	return object.NewBuiltinsModule("log", map[string]object.Object{
		"info":  level("info", slogctx.Info),
		"warn":  level("warn", slogctx.Warn),
		"error": level("error", slogctx.Error),
	})
}
