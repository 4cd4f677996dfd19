package runtime

import (
	"context"

	"github.com/risor-io/risor/object"
	"gitlab.com/tozd/go/errors"

	"github.com/jward/strata"
)

// Risor scripts cannot construct Go structs, so declarations and locations
// cross the boundary as maps with primitive values.

func symbolToMap(sym *strata.Symbol) object.Object {
	if sym == nil {
		return object.Nil
	}
	return object.NewMap(map[string]object.Object{
		"usr":        object.NewString(string(sym.USR)),
		"name":       object.NewString(sym.Name),
		"kind":       object.NewString(string(sym.Kind)),
		"from_macro": object.NewBool(sym.IsFromMacro),
	})
}

func symbolsToList(syms []*strata.Symbol) object.Object {
	results := make([]object.Object, 0, len(syms))
	for _, sym := range syms {
		results = append(results, symbolToMap(sym))
	}
	return object.NewList(results)
}

func stringsToList(values []string) object.Object {
	results := make([]object.Object, 0, len(values))
	for _, v := range values {
		results = append(results, object.NewString(v))
	}
	return object.NewList(results)
}

func locationFields(loc strata.Location) map[string]object.Object {
	return map[string]object.Object{
		"path":   object.NewString(loc.Path),
		"line":   object.NewInt(int64(loc.Line)),
		"column": object.NewInt(int64(loc.UTF8Column)),
	}
}

// toSymbol accepts a declaration name, resolved through q, or a symbol map.
func toSymbol(ctx context.Context, q Queries, obj object.Object) (*strata.Symbol, error) {
	if name, ok := obj.(*object.String); ok {
		return q.Resolve(ctx, name.Value())
	}
	m, err := extractMap(obj)
	if err != nil {
		return nil, errors.Errorf("expected name or symbol: %w", err)
	}
	usr := getString(m, "usr")
	if usr == "" {
		return nil, errors.New("symbol map has no usr")
	}
	return &strata.Symbol{
		USR:         strata.USR(usr),
		Name:        getString(m, "name"),
		Kind:        strata.Kind(getString(m, "kind")),
		IsFromMacro: getBool(m, "from_macro"),
	}, nil
}

func toLocation(obj object.Object) (strata.Location, error) {
	m, err := extractMap(obj)
	if err != nil {
		return strata.Location{}, errors.Errorf("expected location: %w", err)
	}
	loc := strata.Location{
		Path:       getString(m, "path"),
		Line:       getInt(m, "line"),
		UTF8Column: getInt(m, "column"),
	}
	if loc.Path == "" || loc.Line < 1 || loc.UTF8Column < 1 {
		return strata.Location{}, errors.Errorf("location needs path, line and column, got %s", obj.Inspect())
	}
	return loc, nil
}

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, errors.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func getString(m map[string]object.Object, key string) string {
	if s, ok := m[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

func getInt(m map[string]object.Object, key string) int {
	switch v := m[key].(type) {
	case *object.Int:
		return int(v.Value())
	case *object.Float:
		return int(v.Value())
	}
	return 0
}

func getBool(m map[string]object.Object, key string) bool {
	if b, ok := m[key].(*object.Bool); ok {
		return b.Value()
	}
	return false
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, errors.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", errors.Errorf("expected string, got %s", obj.Type())
}
