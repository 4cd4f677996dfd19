// Package sourcekit talks to the Swift semantic query service. Requests are
// sent through the sourcekitten CLI and every response is validated into a
// typed value before it leaves this package.
package sourcekit

import (
	"context"
)

// Request and response kinds.
const (
	RequestCursorInfo     = "source.request.cursorinfo"
	RequestExpressionType = "source.request.expression.type"

	KindRefClass = "source.lang.swift.ref.class"
)

// Response keys.
const (
	KeyKind               = "key.kind"
	KeyName               = "key.name"
	KeyUSR                = "key.usr"
	KeyTypeName           = "key.typename"
	KeyAnnotatedDecl      = "key.annotated_decl"
	KeyFullyAnnotatedDecl = "key.fully_annotated_decl"
	KeyModuleName         = "key.modulename"
	KeyInternalDiagnostic = "key.internal_diagnostic"
	KeyExpressionTypeList = "key.expression_type_list"
	KeyExpressionOffset   = "key.expression_offset"
	KeyExpressionLength   = "key.expression_length"
	KeyExpressionType     = "key.expression_type"
)

// Service is the subset of the semantic query service the analyzer uses.
type Service interface {
	CursorInfo(ctx context.Context, req CursorInfoRequest) (*CursorInfo, error)
	ExpressionTypes(ctx context.Context, req ExpressionTypeRequest) ([]ExpressionType, error)
}

// CursorInfoRequest asks what is at a byte offset in a file.
type CursorInfoRequest struct {
	SourceFile   string
	Offset       int
	CompilerArgs []string
}

// ExpressionTypeRequest asks for the type of every expression in a file.
type ExpressionTypeRequest struct {
	SourceFile   string
	CompilerArgs []string
}

// CursorInfo is a validated cursor-info response. Only Kind is guaranteed;
// the other fields are empty when the service omitted them.
type CursorInfo struct {
	Kind               string
	Name               string
	USR                string
	TypeName           string
	AnnotatedDecl      string
	FullyAnnotatedDecl string
	ModuleName         string
}

// Require returns the value of an optional key, failing with
// *MissingResponseFieldError when the service did not send it.
func (c *CursorInfo) Require(key string) (string, error) {
	var v string
	switch key {
	case KeyKind:
		v = c.Kind
	case KeyName:
		v = c.Name
	case KeyUSR:
		v = c.USR
	case KeyTypeName:
		v = c.TypeName
	case KeyAnnotatedDecl:
		v = c.AnnotatedDecl
	case KeyFullyAnnotatedDecl:
		v = c.FullyAnnotatedDecl
	case KeyModuleName:
		v = c.ModuleName
	}
	if v == "" {
		return "", &MissingResponseFieldError{Key: key}
	}
	return v, nil
}

// ExpressionType is one typed source range from an expression-type response.
type ExpressionType struct {
	Offset int
	Length int
	Type   string
}

// Contains reports whether offset falls inside the range.
func (e ExpressionType) Contains(offset int) bool {
	return offset >= e.Offset && offset < e.Offset+e.Length
}
