package strata

import (
	"context"
	"fmt"
	"testing"

	"github.com/jward/strata/internal/invocation"
	"github.com/jward/strata/internal/sourcekit"
	"github.com/jward/strata/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// probingEngine opens fixture with a usage file, its invocation and svc
// wired in. It returns the usage location.
func probingEngine(t *testing.T, fixture string, svc *fakeService) (*Engine, Location) {
	t.Helper()
	path := writeSource(t, "Screen.swift", usageSource)
	tbl := invocation.New(map[string][][]string{path: {{"-module-name", "App", path}}})
	e := newTestEngine(t, fixture,
		WithInvocations(tbl),
		WithSourceKit(svc),
		WithScratchDir(t.TempDir()),
	)
	return e, Location{Path: path, Line: 5, UTF8Column: 16}
}

// =============================================================================
// IsSubclass
// =============================================================================

func TestIsSubclass_GraphConfirms(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	ans, err := e.IsSubclass(context.Background(), "Leaf", "Base", Location{})
	require.NoError(t, err)
	assert.True(t, ans.IsSubclass)
	assert.Equal(t, SourceGraph, ans.Source)
	assert.Equal(t, []string{"Leaf", "Mid", "Base"}, ans.Chain)
}

func TestIsSubclass_GraphRejectsIndexedRoot(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	ans, err := e.IsSubclass(context.Background(), "Base", "Leaf", Location{})
	require.NoError(t, err)
	assert.False(t, ans.IsSubclass)
	assert.Equal(t, SourceGraph, ans.Source)
}

func TestIsSubclass_UnresolvedNameFallsBackToProbe(t *testing.T) {
	t.Parallel()
	svc := &fakeService{t: t, classes: map[string]fakeClass{
		"View":   {super: "UIView", module: "App"},
		"UIView": {super: "UIResponder", module: "UIKit"},
	}}
	e, usage := probingEngine(t, graphFixture, svc)

	ans, err := e.IsSubclass(context.Background(), "View", "UIResponder", usage)
	require.NoError(t, err)
	assert.True(t, ans.IsSubclass)
	assert.Equal(t, SourceProbe, ans.Source)
	assert.Equal(t, 2, ans.ProbeSteps)
	assert.Equal(t, []string{"View", "UIView", "UIResponder"}, ans.Chain)
}

func TestIsSubclass_ChainLeavingIndexFallsBackToProbe(t *testing.T) {
	t.Parallel()
	svc := &fakeService{t: t, classes: map[string]fakeClass{
		"View":        {super: "UIView", module: "App"},
		"UIView":      {super: "UIResponder", module: "UIKit"},
		"UIResponder": {super: "NSObject", module: "UIKit"},
	}}
	e, usage := probingEngine(t, graphFixture, svc)

	ans, err := e.IsSubclass(context.Background(), "View", "Base", usage)
	require.NoError(t, err)
	assert.False(t, ans.IsSubclass)
	assert.Equal(t, SourceProbe, ans.Source)
	assert.Equal(t, 3, ans.ProbeSteps)
}

const multiParentFixture = `
module: App
symbols:
  - {usr: "s:3App4BaseC", name: Base, kind: class}
  - {usr: "s:3App5OuterV", name: Outer, kind: struct}
  - {usr: "s:3App7AnotherV", name: Another, kind: struct}
  - {usr: "s:3App3DupC", name: Dup, kind: class}
occurrences:
  - {usr: "s:3App4BaseC", roles: [definition, canonical], path: /src/Base.swift, line: 1, column: 7}
  - {usr: "s:3App5OuterV", roles: [definition, canonical], path: /src/Outer.swift, line: 1, column: 8}
  - {usr: "s:3App7AnotherV", roles: [definition, canonical], path: /src/Another.swift, line: 1, column: 8}
  - usr: "s:3App3DupC"
    roles: [definition, canonical]
    path: /src/Outer.swift
    line: 2
    column: 11
    relations: [{usr: "s:3App5OuterV", roles: [childOf]}, {usr: "s:3App7AnotherV", roles: [childOf]}]
`

func TestIsSubclass_GraphErrorUsesSemanticService(t *testing.T) {
	t.Parallel()
	svc := &fakeService{t: t, classes: map[string]fakeClass{
		"Dup": {super: "Base", module: "App"},
	}}
	e, usage := probingEngine(t, multiParentFixture, svc)

	ans, err := e.IsSubclass(context.Background(), "Outer.Dup", "Base", usage)
	require.NoError(t, err)
	assert.True(t, ans.IsSubclass)
	assert.Equal(t, SourceProbe, ans.Source)
	assert.Equal(t, 1, ans.ProbeSteps)
	assert.Equal(t, []string{"Dup"}, svc.candidates)
}

func TestIsSubclass_GraphErrorWithoutUsage(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, multiParentFixture)

	_, err := e.IsSubclass(context.Background(), "Outer.Dup", "Base", Location{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMultipleParents))
}

func TestIsSubclass_InconclusiveWithoutUsage(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	_, err := e.IsSubclass(context.Background(), "View", "UIResponder", Location{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usage location")
}

// =============================================================================
// Located results
// =============================================================================

func TestConformanceDeclarations(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)
	ctx := context.Background()

	confs, err := e.ConformanceDeclarations(ctx, mustResolve(t, e, "Leaf"))
	require.NoError(t, err)
	require.Len(t, confs, 1)
	assert.Equal(t, "Printable", confs[0].Protocol.Name)
	assert.Equal(t, store.KindExtension, confs[0].DeclaredOn.Kind)
	assert.Equal(t, Location{Path: "/src/Leaf+Print.swift", Line: 1, UTF8Column: 17}, confs[0].Location)

	confs, err = e.ConformanceDeclarations(ctx, mustResolve(t, e, "Base"))
	require.NoError(t, err)
	require.Len(t, confs, 1, "refined protocols are not declared on the type")
	assert.Equal(t, "Readable", confs[0].Protocol.Name)
}

func TestCallSites(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	sites, err := e.CallSites(context.Background(), "Leaf", "read")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, USR("s:3App4BaseC4readyyF"), sites[0].Method.USR)
	assert.Equal(t, 5, sites[0].Location.Line)
	require.NotNil(t, sites[0].Caller)
	assert.Equal(t, "run", sites[0].Caller.Name)
}

func TestCallSites_UnresolvedType(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	_, err := e.CallSites(context.Background(), "Foo", "read")
	var rerr *SymbolResolutionError
	require.True(t, errors.As(err, &rerr))
}

// =============================================================================
// Semantic service queries
// =============================================================================

func TestExpressionTypeAt_Innermost(t *testing.T) {
	t.Parallel()
	path := writeSource(t, "Total.swift", "let total = price * 2\n")
	svc := &fakeService{t: t, exprTypes: []sourcekit.ExpressionType{
		{Offset: 12, Length: 9, Type: "Double"},
		{Offset: 12, Length: 5, Type: "Price"},
		{Offset: 20, Length: 1, Type: "Int"},
	}}
	e := newTestEngine(t, graphFixture,
		WithSourceKit(svc),
		WithInvocations(invocation.New(map[string][][]string{path: {{path}}})),
	)

	et, err := e.ExpressionTypeAt(context.Background(), Location{Path: path, Line: 1, UTF8Column: 13})
	require.NoError(t, err)
	require.NotNil(t, et)
	assert.Equal(t, "Price", et.Type)

	et, err = e.ExpressionTypeAt(context.Background(), Location{Path: path, Line: 1, UTF8Column: 1})
	require.NoError(t, err)
	assert.Nil(t, et)
}

func TestExpressionTypeAt_Requirements(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)
	_, err := e.ExpressionTypeAt(context.Background(), Location{Path: "/a.swift", Line: 1, UTF8Column: 1})
	assert.True(t, errors.Is(err, ErrNoSemanticService))

	e = newTestEngine(t, graphFixture, WithSourceKit(&fakeService{t: t}))
	_, err = e.ExpressionTypeAt(context.Background(), Location{Path: "/a.swift", Line: 1, UTF8Column: 1})
	assert.True(t, errors.Is(err, ErrNoInvocation))
}

const cacheSource = `final class Cache {
    func store(key: String, count: Int) -> Bool { true }
    var result: Result<User, APIError>
}
`

// cacheEngine indexes Cache.store and Cache.result at their real positions
// in a temp file and answers cursor info with typeNames keyed by offset.
func cacheEngine(t *testing.T, typeNames map[int]string) *Engine {
	t.Helper()
	path := writeSource(t, "Cache.swift", cacheSource)
	fixture := fmt.Sprintf(`
symbols:
  - {usr: "s:3App5CacheC", name: Cache, kind: class}
  - {usr: "s:3App5CacheC5store", name: store, kind: instanceMethod}
  - {usr: "s:3App5CacheC6result", name: result, kind: instanceProperty}
occurrences:
  - {usr: "s:3App5CacheC", roles: [definition, canonical], path: %[1]q, line: 1, column: 13}
  - {usr: "s:3App5CacheC5store", roles: [definition, canonical], path: %[1]q, line: 2, column: 10, relations: [{usr: "s:3App5CacheC", roles: [childOf]}]}
  - {usr: "s:3App5CacheC6result", roles: [definition, canonical], path: %[1]q, line: 3, column: 9, relations: [{usr: "s:3App5CacheC", roles: [childOf]}]}
`, path)

	svc := &fakeService{t: t, cursor: func(req sourcekit.CursorInfoRequest) (*sourcekit.CursorInfo, error) {
		assert.Equal(t, path, req.SourceFile)
		name, ok := typeNames[req.Offset]
		if !ok {
			return &sourcekit.CursorInfo{Kind: "source.lang.swift.decl.function.method.instance"}, nil
		}
		return &sourcekit.CursorInfo{Kind: "source.lang.swift.decl.var.instance", TypeName: name}, nil
	}}
	return newTestEngine(t, fixture,
		WithSourceKit(svc),
		WithInvocations(invocation.New(map[string][][]string{path: {{"-module-name", "App", path}}})),
	)
}

// Byte offsets of the declarations in cacheSource.
const (
	storeOffset  = 20 + 9
	resultOffset = 20 + 57 + 8
)

func TestMethodParameterType(t *testing.T) {
	t.Parallel()
	e := cacheEngine(t, map[int]string{storeOffset: "(Cache) -> (String, Int) -> Bool"})
	ctx := context.Background()
	methods, err := e.ResolveKind(ctx, "store", store.KindInstanceMethod)
	require.NoError(t, err)
	require.Len(t, methods, 1)

	typ, err := e.MethodParameterType(ctx, methods[0], 0)
	require.NoError(t, err)
	assert.Equal(t, "Cache", typ)

	typ, err = e.MethodParameterType(ctx, methods[0], 2)
	require.NoError(t, err)
	assert.Equal(t, "Int", typ)
}

func TestMethodParameterType_MissingTypeName(t *testing.T) {
	t.Parallel()
	e := cacheEngine(t, nil)
	ctx := context.Background()
	methods, err := e.ResolveKind(ctx, "store", store.KindInstanceMethod)
	require.NoError(t, err)

	_, err = e.MethodParameterType(ctx, methods[0], 0)
	var missing *sourcekit.MissingResponseFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, sourcekit.KeyTypeName, missing.Key)
}

func TestDeclaredLeafTypes_ResultKeepsSuccessType(t *testing.T) {
	t.Parallel()
	e := cacheEngine(t, map[int]string{resultOffset: "Result<User, APIError>"})
	ctx := context.Background()
	props, err := e.ResolveKind(ctx, "result", store.KindInstanceProperty)
	require.NoError(t, err)
	require.Len(t, props, 1)

	types, err := e.DeclaredLeafTypes(ctx, props[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"User"}, types)
}
