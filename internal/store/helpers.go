package store

import "strings"

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// int64sToArgs converts []int64 to []any for use with database/sql.
func int64sToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// DedupeSymbols keeps the first symbol seen for each USR, preserving order.
func DedupeSymbols(syms []*Symbol) []*Symbol {
	seen := make(map[USR]bool, len(syms))
	out := make([]*Symbol, 0, len(syms))
	for _, sym := range syms {
		if seen[sym.USR] {
			continue
		}
		seen[sym.USR] = true
		out = append(out, sym)
	}
	return out
}

