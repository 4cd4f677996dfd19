package store

import (
	"sync"

	"gitlab.com/tozd/go/errors"
)

// Batch buffers graph writes in memory until CommitBatch writes them in a
// single transaction. Symbols are keyed by USR; adding a USR twice keeps
// one entry carrying the latest name and kind.
//
// Thread safety: the mutex protects the symbol map and slice appends, so
// several producers may fill one batch.
type Batch struct {
	mu sync.Mutex

	symbols     map[USR]*Symbol
	order       []USR
	occurrences []*Occurrence
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{symbols: make(map[USR]*Symbol)}
}

// AddSymbol buffers sym and returns the batch's copy for that USR, which
// occurrences should point at.
func (b *Batch) AddSymbol(sym *Symbol) (*Symbol, error) {
	if sym == nil || sym.USR == "" {
		return nil, errors.New("batch: symbol without USR")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.symbols[sym.USR]; ok {
		existing.Name = sym.Name
		existing.Kind = sym.Kind
		return existing, nil
	}
	cp := *sym
	b.symbols[sym.USR] = &cp
	b.order = append(b.order, sym.USR)
	return &cp, nil
}

// Symbol returns the buffered symbol for usr, or nil.
func (b *Batch) Symbol(usr USR) *Symbol {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.symbols[usr]
}

// AddOccurrence buffers occ. Its symbol must already be in the batch;
// relation targets need not be.
func (b *Batch) AddOccurrence(occ *Occurrence) error {
	if occ == nil || occ.Symbol == nil {
		return errors.New("batch: occurrence without symbol")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.symbols[occ.Symbol.USR]; !ok {
		return errors.Errorf("batch: occurrence references undeclared symbol %s", occ.Symbol.USR)
	}
	b.occurrences = append(b.occurrences, occ)
	return nil
}

// Len reports the number of buffered symbols and occurrences.
func (b *Batch) Len() (symbols, occurrences int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order), len(b.occurrences)
}
