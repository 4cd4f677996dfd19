package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_AddSymbol_DedupesByUSR(t *testing.T) {
	t.Parallel()
	b := NewBatch()

	first, err := b.AddSymbol(&Symbol{USR: "s:4Demo3MidC", Name: "Mid", Kind: KindClass})
	require.NoError(t, err)
	second, err := b.AddSymbol(&Symbol{USR: "s:4Demo3MidC", Name: "Middle", Kind: KindClass})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "Middle", b.Symbol("s:4Demo3MidC").Name)
	syms, occs := b.Len()
	assert.Equal(t, 1, syms)
	assert.Equal(t, 0, occs)
}

func TestBatch_RejectsInvalidEntries(t *testing.T) {
	t.Parallel()
	b := NewBatch()

	_, err := b.AddSymbol(&Symbol{Name: "NoUSR"})
	assert.Error(t, err)

	err = b.AddOccurrence(&Occurrence{})
	assert.Error(t, err)

	err = b.AddOccurrence(&Occurrence{Symbol: &Symbol{USR: "s:4Demo5GhostC"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared symbol s:4Demo5GhostC")
}

func TestBatch_ConcurrentProducers(t *testing.T) {
	t.Parallel()
	b := NewBatch()
	sym, err := b.AddSymbol(&Symbol{USR: "s:4Demo4BaseC", Name: "Base", Kind: KindClass})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(line int) {
			defer wg.Done()
			assert.NoError(t, b.AddOccurrence(&Occurrence{
				Symbol:   sym,
				Roles:    RoleReference,
				Location: Location{Path: "/src/Use.swift", Line: line + 1, UTF8Column: 1},
			}))
		}(i)
	}
	wg.Wait()

	_, occs := b.Len()
	assert.Equal(t, 8, occs)
}

func TestCommitBatch_WritesEverything(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatch()

	base, err := b.AddSymbol(&Symbol{USR: "s:4Demo4BaseC", Name: "Base", Kind: KindClass})
	require.NoError(t, err)
	mid, err := b.AddSymbol(&Symbol{USR: "s:4Demo3MidC", Name: "Mid", Kind: KindClass})
	require.NoError(t, err)

	require.NoError(t, b.AddOccurrence(&Occurrence{
		Symbol:   mid,
		Roles:    RoleDefinition | RoleCanonical,
		Location: Location{Path: "/src/Mid.swift", Line: 1, UTF8Column: 7},
	}))
	ref := &Occurrence{
		Symbol:    base,
		Roles:     RoleReference | RoleBaseOf,
		Location:  Location{Path: "/src/Mid.swift", Line: 1, UTF8Column: 12},
		Relations: []Relation{{Symbol: mid, Roles: RoleBaseOf}},
	}
	require.NoError(t, b.AddOccurrence(ref))

	require.NoError(t, s.CommitBatch(b, map[string]string{MetadataModule: "Demo"}))
	assert.NotZero(t, ref.ID)

	got, err := s.SymbolByUSR("s:4Demo3MidC")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Mid", got.Name)

	supers, err := s.RelatedOccurrences("s:4Demo3MidC", RoleBaseOf)
	require.NoError(t, err)
	require.Len(t, supers, 1)
	assert.Equal(t, USR("s:4Demo4BaseC"), supers[0].Symbol.USR)

	mod, err := s.GetMetadata(MetadataModule)
	require.NoError(t, err)
	assert.Equal(t, "Demo", mod)
}

func TestCommitBatch_RollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	b := NewBatch()

	sym, err := b.AddSymbol(&Symbol{USR: "s:4Demo4BaseC", Name: "Base", Kind: KindClass})
	require.NoError(t, err)
	require.NoError(t, b.AddOccurrence(&Occurrence{
		Symbol:    sym,
		Roles:     RoleReference,
		Location:  Location{Path: "/src/Use.swift", Line: 1, UTF8Column: 1},
		Relations: []Relation{{Symbol: nil, Roles: RoleBaseOf}},
	}))

	err = s.CommitBatch(b, nil)
	require.Error(t, err)

	got, err := s.SymbolByUSR("s:4Demo4BaseC")
	require.NoError(t, err)
	assert.Nil(t, got, "nothing is written when the batch fails")
}
