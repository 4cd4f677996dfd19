package strata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// graphFixture models:
//
//	protocol Named {}
//	protocol Readable: Named {}
//	protocol Printable {}
//	class Base: Readable { func read() }
//	class Mid: Base {}
//	class Leaf: Mid {}
//	extension Leaf: Printable { func describe() }
//	class Other { func read() }
//	class View: UIView {}            // UIView is not indexed
//	struct Outer { struct Foo {} }
//	struct Another { struct Foo {} }
//	@Model-generated struct Foo      // macro expansion
//	func run() { base.read() }
const graphFixture = `
module: App
symbols:
  - {usr: "s:3App4BaseC", name: Base, kind: class}
  - {usr: "s:3App3MidC", name: Mid, kind: class}
  - {usr: "s:3App4LeafC", name: Leaf, kind: class}
  - {usr: "s:3App5OtherC", name: Other, kind: class}
  - {usr: "s:3App4ViewC", name: View, kind: class}
  - {usr: "c:objc(cs)UIView", name: UIView, kind: class}
  - {usr: "s:3App5NamedP", name: Named, kind: protocol}
  - {usr: "s:3App8ReadableP", name: Readable, kind: protocol}
  - {usr: "s:3App9PrintableP", name: Printable, kind: protocol}
  - {usr: "s:e:s:3App4LeafCAA9PrintableP", name: Leaf, kind: extension}
  - {usr: "s:3App4BaseC4readyyF", name: read, kind: instanceMethod}
  - {usr: "s:3App5OtherC4readyyF", name: read, kind: instanceMethod}
  - {usr: "s:3App4LeafC8describeyyF", name: describe, kind: instanceMethod}
  - {usr: "s:3App3runyyF", name: run, kind: function}
  - {usr: "s:3App5OuterV", name: Outer, kind: struct}
  - {usr: "s:3App5OuterV3FooV", name: Foo, kind: struct}
  - {usr: "s:3App7AnotherV", name: Another, kind: struct}
  - {usr: "s:3App7AnotherV3FooV", name: Foo, kind: struct}
  - {usr: "s:3App33_0A1B2C@__swiftmacro_3App5Model3FooV", name: Foo, kind: struct}
occurrences:
  # Base: Readable
  - {usr: "s:3App4BaseC", roles: [definition, canonical], path: /src/Base.swift, line: 1, column: 7}
  - usr: "s:3App8ReadableP"
    roles: [reference]
    path: /src/Base.swift
    line: 1
    column: 14
    relations: [{usr: "s:3App4BaseC", roles: [baseOf]}]
  - usr: "s:3App4BaseC4readyyF"
    roles: [definition, canonical]
    path: /src/Base.swift
    line: 2
    column: 10
    relations: [{usr: "s:3App4BaseC", roles: [childOf]}]
  # Readable: Named
  - {usr: "s:3App8ReadableP", roles: [definition, canonical], path: /src/Base.swift, line: 10, column: 10}
  - usr: "s:3App5NamedP"
    roles: [reference]
    path: /src/Base.swift
    line: 10
    column: 21
    relations: [{usr: "s:3App8ReadableP", roles: [baseOf]}]
  - {usr: "s:3App5NamedP", roles: [definition, canonical], path: /src/Base.swift, line: 14, column: 10}
  # Mid: Base
  - {usr: "s:3App3MidC", roles: [definition, canonical], path: /src/Mid.swift, line: 1, column: 7}
  - usr: "s:3App4BaseC"
    roles: [reference]
    path: /src/Mid.swift
    line: 1
    column: 12
    relations: [{usr: "s:3App3MidC", roles: [baseOf]}]
  # Leaf: Mid
  - {usr: "s:3App4LeafC", roles: [definition, canonical], path: /src/Leaf.swift, line: 1, column: 7}
  - usr: "s:3App3MidC"
    roles: [reference]
    path: /src/Leaf.swift
    line: 1
    column: 13
    relations: [{usr: "s:3App4LeafC", roles: [baseOf]}]
  # extension Leaf: Printable
  - {usr: "s:e:s:3App4LeafCAA9PrintableP", roles: [definition, canonical], path: /src/Leaf+Print.swift, line: 1, column: 11}
  - usr: "s:3App4LeafC"
    roles: [reference]
    path: /src/Leaf+Print.swift
    line: 1
    column: 11
    relations: [{usr: "s:e:s:3App4LeafCAA9PrintableP", roles: [extendedBy]}]
  - usr: "s:3App9PrintableP"
    roles: [reference]
    path: /src/Leaf+Print.swift
    line: 1
    column: 17
    relations: [{usr: "s:e:s:3App4LeafCAA9PrintableP", roles: [baseOf]}]
  - usr: "s:3App4LeafC8describeyyF"
    roles: [definition, canonical]
    path: /src/Leaf+Print.swift
    line: 2
    column: 10
    relations: [{usr: "s:e:s:3App4LeafCAA9PrintableP", roles: [childOf]}]
  - {usr: "s:3App9PrintableP", roles: [definition, canonical], path: /src/Print.swift, line: 1, column: 10}
  # Other
  - {usr: "s:3App5OtherC", roles: [definition, canonical], path: /src/Other.swift, line: 1, column: 7}
  - usr: "s:3App5OtherC4readyyF"
    roles: [definition, canonical]
    path: /src/Other.swift
    line: 2
    column: 10
    relations: [{usr: "s:3App5OtherC", roles: [childOf]}]
  # View: UIView
  - {usr: "s:3App4ViewC", roles: [definition, canonical], path: /src/View.swift, line: 1, column: 7}
  - usr: "c:objc(cs)UIView"
    roles: [reference]
    path: /src/View.swift
    line: 1
    column: 14
    relations: [{usr: "s:3App4ViewC", roles: [baseOf]}]
  # run() calls Base.read
  - {usr: "s:3App3runyyF", roles: [definition, canonical], path: /src/Main.swift, line: 3, column: 6}
  - usr: "s:3App4BaseC4readyyF"
    roles: [call, dynamic]
    path: /src/Main.swift
    line: 5
    column: 9
    relations: [{usr: "s:3App3runyyF", roles: [calledBy, containedBy]}]
  - usr: "s:3App5OtherC4readyyF"
    roles: [call]
    path: /src/Main.swift
    line: 6
    column: 9
    relations: [{usr: "s:3App3runyyF", roles: [calledBy, containedBy]}]
  # Nested Foo types
  - {usr: "s:3App5OuterV", roles: [definition, canonical], path: /src/Nest.swift, line: 1, column: 8}
  - usr: "s:3App5OuterV3FooV"
    roles: [definition, canonical]
    path: /src/Nest.swift
    line: 2
    column: 12
    relations: [{usr: "s:3App5OuterV", roles: [childOf]}]
  - {usr: "s:3App7AnotherV", roles: [definition, canonical], path: /src/Nest.swift, line: 5, column: 8}
  - usr: "s:3App7AnotherV3FooV"
    roles: [definition, canonical]
    path: /src/Nest.swift
    line: 6
    column: 12
    relations: [{usr: "s:3App7AnotherV", roles: [childOf]}]
  - {usr: "s:3App33_0A1B2C@__swiftmacro_3App5Model3FooV", roles: [definition, canonical], path: /src/Model.swift, line: 1, column: 1}
`

// =============================================================================
// Superclasses
// =============================================================================

func TestSuperclass(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)
	ctx := context.Background()

	sup, err := e.Superclass(ctx, mustResolve(t, e, "Leaf"))
	require.NoError(t, err)
	require.NotNil(t, sup)
	assert.Equal(t, "Mid", sup.Name)

	sup, err = e.Superclass(ctx, mustResolve(t, e, "Base"))
	require.NoError(t, err)
	assert.Nil(t, sup, "protocol conformances are not superclasses")
}

func TestSuperclasses_ChainExcludesSelf(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)
	leaf := mustResolve(t, e, "Leaf")

	chain, err := e.Superclasses(context.Background(), leaf)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mid", "Base"}, names(chain))
	for _, c := range chain {
		assert.False(t, c.Same(leaf))
	}
}

func TestSuperclasses_CycleTerminates(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, `
symbols:
  - {usr: "s:A", name: A, kind: class}
  - {usr: "s:B", name: B, kind: class}
occurrences:
  - {usr: "s:A", roles: [definition, canonical], path: /a.swift, line: 1, column: 7}
  - {usr: "s:B", roles: [definition, canonical], path: /b.swift, line: 1, column: 7}
  - {usr: "s:B", roles: [reference], path: /a.swift, line: 1, column: 10, relations: [{usr: "s:A", roles: [baseOf]}]}
  - {usr: "s:A", roles: [reference], path: /b.swift, line: 1, column: 10, relations: [{usr: "s:B", roles: [baseOf]}]}
`)
	a := mustResolve(t, e, "A")

	chain, err := e.Superclasses(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, names(chain))
}

func TestSuperclass_MultipleTakesFirst(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, `
symbols:
  - {usr: "s:X", name: X, kind: class}
  - {usr: "s:P1", name: P1, kind: class}
  - {usr: "s:P2", name: P2, kind: class}
occurrences:
  - {usr: "s:X", roles: [definition, canonical], path: /x.swift, line: 1, column: 7}
  - {usr: "s:P1", roles: [reference], path: /x.swift, line: 1, column: 10, relations: [{usr: "s:X", roles: [baseOf]}]}
  - {usr: "s:P2", roles: [reference], path: /x2.swift, line: 1, column: 10, relations: [{usr: "s:X", roles: [baseOf]}]}
  - {usr: "s:P1", roles: [reference], path: /x3.swift, line: 1, column: 10, relations: [{usr: "s:X", roles: [baseOf]}]}
`)
	sup, err := e.Superclass(context.Background(), mustResolve(t, e, "X"))
	require.NoError(t, err)
	assert.Equal(t, "P1", sup.Name)
}

// =============================================================================
// Conformances
// =============================================================================

func TestConformedProtocols_TransitiveRefinement(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	protos, err := e.ConformedProtocols(context.Background(), mustResolve(t, e, "Base"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Readable", "Named"}, names(protos))
}

func TestConformedProtocols_IncludesExtensions(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	protos, err := e.ConformedProtocols(context.Background(), mustResolve(t, e, "Leaf"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Printable"}, names(protos))
}

func TestConformedProtocols_IdempotentAndClosed(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)
	ctx := context.Background()
	base := mustResolve(t, e, "Base")

	first, err := e.ConformedProtocols(ctx, base)
	require.NoError(t, err)
	second, err := e.ConformedProtocols(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, names(first), names(second))

	members := map[USR]bool{}
	for _, p := range first {
		members[p.USR] = true
	}
	for _, p := range first {
		more, err := e.ConformedProtocols(ctx, p)
		require.NoError(t, err)
		for _, m := range more {
			assert.True(t, members[m.USR], "%s refines %s outside the closure", p.Name, m.Name)
		}
	}
}

func TestConformedProtocols_CyclicRefinementTerminates(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, `
symbols:
  - {usr: "s:T", name: T, kind: struct}
  - {usr: "s:P", name: P, kind: protocol}
  - {usr: "s:Q", name: Q, kind: protocol}
occurrences:
  - {usr: "s:T", roles: [definition, canonical], path: /t.swift, line: 1, column: 8}
  - {usr: "s:P", roles: [definition, canonical], path: /p.swift, line: 1, column: 10}
  - {usr: "s:Q", roles: [definition, canonical], path: /q.swift, line: 1, column: 10}
  - {usr: "s:P", roles: [reference], path: /t.swift, line: 1, column: 11, relations: [{usr: "s:T", roles: [baseOf]}]}
  - {usr: "s:Q", roles: [reference], path: /p.swift, line: 1, column: 13, relations: [{usr: "s:P", roles: [baseOf]}]}
  - {usr: "s:P", roles: [reference], path: /q.swift, line: 1, column: 13, relations: [{usr: "s:Q", roles: [baseOf]}]}
`)
	protos, err := e.ConformedProtocols(context.Background(), mustResolve(t, e, "T"))
	require.NoError(t, err)
	assert.Equal(t, []string{"P", "Q"}, names(protos))
}

// =============================================================================
// Instance methods
// =============================================================================

func TestInstanceMethods_InheritedOnly(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	methods, err := e.InstanceMethods(context.Background(), "read", mustResolve(t, e, "Leaf"))
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, USR("s:3App4BaseC4readyyF"), methods[0].USR)
}

func TestInstanceMethods_ThroughExtension(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	methods, err := e.InstanceMethods(context.Background(), "describe", mustResolve(t, e, "Leaf"))
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "describe", methods[0].Name)

	methods, err = e.InstanceMethods(context.Background(), "describe", mustResolve(t, e, "Base"))
	require.NoError(t, err)
	assert.Empty(t, methods, "a subclass extension does not add methods to the base")
}

func TestInstanceMethods_MultipleParents(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, `
symbols:
  - {usr: "s:A", name: A, kind: class}
  - {usr: "s:B", name: B, kind: class}
  - {usr: "s:m", name: go, kind: instanceMethod}
occurrences:
  - {usr: "s:A", roles: [definition, canonical], path: /a.swift, line: 1, column: 7}
  - {usr: "s:B", roles: [definition, canonical], path: /b.swift, line: 1, column: 7}
  - usr: "s:m"
    roles: [definition, canonical]
    path: /a.swift
    line: 2
    column: 10
    relations: [{usr: "s:A", roles: [childOf]}, {usr: "s:B", roles: [childOf]}]
`)
	_, err := e.InstanceMethods(context.Background(), "go", mustResolve(t, e, "A"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMultipleParents))
}

// =============================================================================
// Qualified names
// =============================================================================

func TestFullyQualifiedName(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)
	ctx := context.Background()

	foo := mustResolve(t, e, "Outer.Foo")
	name, ok, err := e.FullyQualifiedName(ctx, foo)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Outer.Foo", name)

	name, ok, err = e.FullyQualifiedName(ctx, mustResolve(t, e, "Base"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Base", name)
}

func TestFullyQualifiedName_NotATypeKind(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, graphFixture)

	methods, err := e.ResolveKind(context.Background(), "describe", "instanceMethod")
	require.NoError(t, err)
	require.Len(t, methods, 1)

	_, ok, err := e.FullyQualifiedName(context.Background(), methods[0])
	require.NoError(t, err)
	assert.False(t, ok)
}
