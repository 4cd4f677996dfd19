package strata

import "github.com/jward/strata/internal/store"

// Public aliases for the symbol graph model. They are identical to the
// internal types, so no conversion is needed.

type Store = store.Store
type Symbol = store.Symbol
type USR = store.USR
type Kind = store.Kind
type Role = store.Role
type Location = store.Location
type Occurrence = store.Occurrence
type Relation = store.Relation
