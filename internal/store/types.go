package store

import (
	"sort"
	"strings"
)

// USR is the opaque, stable identity of one declaration across the whole
// indexed codebase. It is compared and inspected, never constructed.
type USR string

// macroBufferMarker appears in the USR of every declaration produced by a
// Swift macro expansion.
const macroBufferMarker = "@__swiftmacro_"

// IsMacroUSR reports whether usr names a declaration that originates from a
// macro expansion.
func IsMacroUSR(usr USR) bool {
	return strings.Contains(string(usr), macroBufferMarker)
}

// Kind is a symbol kind as recorded by the index. Values outside the
// constants below are carried through untouched.
type Kind string

const (
	KindClass            Kind = "class"
	KindStruct           Kind = "struct"
	KindEnum             Kind = "enum"
	KindProtocol         Kind = "protocol"
	KindExtension        Kind = "extension"
	KindTypeAlias        Kind = "typealias"
	KindInstanceMethod   Kind = "instanceMethod"
	KindStaticMethod     Kind = "staticMethod"
	KindClassMethod      Kind = "classMethod"
	KindInstanceProperty Kind = "instanceProperty"
	KindFunction         Kind = "function"
	KindVariable         Kind = "variable"
	KindModule           Kind = "module"
	KindUnknown          Kind = "unknown"
)

// Symbol is a declaration materialized from an index query.
type Symbol struct {
	USR         USR
	Name        string
	Kind        Kind
	IsFromMacro bool
}

// Same reports whether s and other denote the same declaration. Display
// names are never compared.
func (s *Symbol) Same(other *Symbol) bool {
	if s == nil || other == nil {
		return false
	}
	return s.USR == other.USR
}

// Location is a 1-based source position as reported by the index store.
// UTF8Column counts bytes, not runes.
type Location struct {
	Path       string
	Line       int
	UTF8Column int
}

// Relation links an occurrence to another declaration.
type Relation struct {
	Symbol *Symbol
	Roles  Role
}

// Occurrence is one recorded appearance of a declaration.
type Occurrence struct {
	ID        int64
	Symbol    *Symbol
	Roles     Role
	Location  Location
	Relations []Relation
}

// RelatedBy returns the symbols this occurrence is related to through any of
// the given roles, in recorded order.
func (o *Occurrence) RelatedBy(roles Role) []*Symbol {
	var out []*Symbol
	for _, rel := range o.Relations {
		if rel.Roles.Has(roles) {
			out = append(out, rel.Symbol)
		}
	}
	return out
}

// Role is a bitset of occurrence and relation roles. Bit positions follow
// the index-store layout; canonical is moved down to bit 19 so the set fits
// a signed SQLite integer.
type Role uint64

const (
	RoleDeclaration Role = 1 << iota
	RoleDefinition
	RoleReference
	RoleRead
	RoleWrite
	RoleCall
	RoleDynamic
	RoleAddressOf
	RoleImplicit
	RoleChildOf
	RoleBaseOf
	RoleOverrideOf
	RoleReceivedBy
	RoleCalledBy
	RoleExtendedBy
	RoleAccessorOf
	RoleContainedBy
	RoleIBTypeOf
	RoleSpecializationOf
	RoleCanonical
)

var roleNames = map[string]Role{
	"declaration":      RoleDeclaration,
	"definition":       RoleDefinition,
	"reference":        RoleReference,
	"read":             RoleRead,
	"write":            RoleWrite,
	"call":             RoleCall,
	"dynamic":          RoleDynamic,
	"addressOf":        RoleAddressOf,
	"implicit":         RoleImplicit,
	"childOf":          RoleChildOf,
	"baseOf":           RoleBaseOf,
	"overrideOf":       RoleOverrideOf,
	"receivedBy":       RoleReceivedBy,
	"calledBy":         RoleCalledBy,
	"extendedBy":       RoleExtendedBy,
	"accessorOf":       RoleAccessorOf,
	"containedBy":      RoleContainedBy,
	"ibTypeOf":         RoleIBTypeOf,
	"specializationOf": RoleSpecializationOf,
	"canonical":        RoleCanonical,
}

// ParseRole converts a role name (e.g. "baseOf") to its bit.
func ParseRole(name string) (Role, bool) {
	r, ok := roleNames[name]
	return r, ok
}

// Has reports whether r shares at least one bit with other.
func (r Role) Has(other Role) bool {
	return r&other != 0
}

// Names returns the role names set in r, sorted.
func (r Role) Names() []string {
	var names []string
	for name, bit := range roleNames {
		if r.Has(bit) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (r Role) String() string {
	return strings.Join(r.Names(), "|")
}
