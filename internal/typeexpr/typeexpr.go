// Package typeexpr parses Swift type expressions with tree-sitter: function
// signatures into parameter and return types, and type annotations into the
// leaf type identifiers they mention.
package typeexpr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/swift"
	"gitlab.com/tozd/go/errors"
)

// aliasName is the synthetic typealias every expression is embedded in.
const aliasName = "__StrataProbe"

var (
	swiftLang     *sitter.Language
	swiftLangOnce sync.Once
)

func language() *sitter.Language {
	swiftLangOnce.Do(func() {
		swiftLang = swift.GetLanguage()
	})
	return swiftLang
}

// ParameterParseError reports a function type whose parameters could not be
// read, or a parameter position past the end of the signature.
type ParameterParseError struct {
	Expr   string
	Reason string
}

func (e *ParameterParseError) Error() string {
	return fmt.Sprintf("parse parameters of %q: %s", e.Expr, e.Reason)
}

// ReturnTypeParseError reports a function type whose return type could not
// be read.
type ReturnTypeParseError struct {
	Expr   string
	Reason string
}

func (e *ReturnTypeParseError) Error() string {
	return fmt.Sprintf("parse return type of %q: %s", e.Expr, e.Reason)
}

// Parser parses Swift type expressions. A Parser is not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// New returns a Parser loaded with the Swift grammar.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(language())
	return &Parser{parser: p}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.parser.Close()
}

// FunctionParameters returns the parameter types of a function type such as
// "(A, B) -> C", in order.
func (p *Parser) FunctionParameters(ctx context.Context, expr string) ([]string, error) {
	ft, err := p.functionType(ctx, expr)
	if err != nil {
		return nil, &ParameterParseError{Expr: expr, Reason: err.Error()}
	}
	return ft.params, nil
}

// FunctionReturnType returns the return type of a function type. For a
// curried type "(A) -> (B) -> C" that is "(B) -> C".
func (p *Parser) FunctionReturnType(ctx context.Context, expr string) (string, error) {
	ft, err := p.functionType(ctx, expr)
	if err != nil {
		return "", &ReturnTypeParseError{Expr: expr, Reason: err.Error()}
	}
	if ft.ret == "" {
		return "", &ReturnTypeParseError{Expr: expr, Reason: "function type has no return type"}
	}
	return ft.ret, nil
}

// ParameterTypeAt returns the type of the parameter at position. Both the
// flat form "(A, B, C) -> D" and the curried form "(A) -> (B) -> C" that
// instance methods report are accepted: a tuple with more than one element
// is indexed directly, otherwise the return type is treated as the next
// curried step.
func (p *Parser) ParameterTypeAt(ctx context.Context, position int, expr string) (string, error) {
	if position < 0 {
		return "", &ParameterParseError{Expr: expr, Reason: fmt.Sprintf("negative position %d", position)}
	}
	current := expr
	remaining := position
	for {
		ft, err := p.functionType(ctx, current)
		if err != nil {
			if current == expr {
				return "", &ParameterParseError{Expr: expr, Reason: err.Error()}
			}
			return "", &ParameterParseError{
				Expr:   expr,
				Reason: fmt.Sprintf("position %d exceeds available parameters", position),
			}
		}
		if len(ft.params) > 1 {
			if remaining >= len(ft.params) {
				return "", &ParameterParseError{
					Expr:   expr,
					Reason: fmt.Sprintf("position %d exceeds available parameters", position),
				}
			}
			return ft.params[remaining], nil
		}
		if remaining == 0 {
			if len(ft.params) == 0 {
				return "", &ParameterParseError{Expr: expr, Reason: "function type takes no parameters"}
			}
			return ft.params[0], nil
		}
		current = ft.ret
		remaining--
	}
}

// LeafTypes returns the type identifiers referenced by a type annotation.
// Generic arguments come before their base type, so "Optional<User>" yields
// ["User", "Optional"]. An exact three-identifier result ending in "Result"
// is cut to its success type alone; wider shapes such as nested generics
// inside a Result are not special-cased.
func (p *Parser) LeafTypes(ctx context.Context, expr string) ([]string, error) {
	root, src, err := p.parse(ctx, expr)
	if err != nil {
		return nil, err
	}

	var ids []string
	collectLeafTypes(root, src, &ids)

	out := ids[:0]
	for _, id := range ids {
		if id != aliasName {
			out = append(out, id)
		}
	}
	if len(out) == 3 && out[2] == "Result" {
		out = out[:1]
	}
	return out, nil
}

type functionType struct {
	params []string
	ret    string
}

func (p *Parser) parse(ctx context.Context, expr string) (*sitter.Node, []byte, error) {
	src := []byte("typealias " + aliasName + " = " + strings.TrimSpace(expr) + "\n")
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, nil, errors.Errorf("tree-sitter parse %q: %w", expr, err)
	}
	return tree.RootNode(), src, nil
}

func (p *Parser) functionType(ctx context.Context, expr string) (*functionType, error) {
	root, src, err := p.parse(ctx, expr)
	if err != nil {
		return nil, err
	}

	fns := outermostFunctionTypes(root)
	if len(fns) != 1 {
		return nil, errors.Errorf("expected exactly one function type, found %d", len(fns))
	}
	fn := fns[0]

	paramsNode := fn.ChildByFieldName("params")
	if paramsNode == nil && fn.NamedChildCount() > 0 {
		paramsNode = fn.NamedChild(0)
	}
	retNode := fn.ChildByFieldName("return_type")
	if retNode == nil && fn.NamedChildCount() > 1 {
		retNode = fn.NamedChild(int(fn.NamedChildCount()) - 1)
	}
	if paramsNode == nil {
		return nil, errors.New("function type has no parameter clause")
	}

	ft := &functionType{params: tupleElements(paramsNode, src)}
	if retNode != nil {
		ft.ret = strings.TrimSpace(retNode.Content(src))
	}
	return ft, nil
}

// outermostFunctionTypes returns function_type nodes not nested inside
// another function_type.
func outermostFunctionTypes(n *sitter.Node) []*sitter.Node {
	if n.Type() == "function_type" {
		return []*sitter.Node{n}
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, outermostFunctionTypes(n.NamedChild(i))...)
	}
	return out
}

func tupleElements(n *sitter.Node, src []byte) []string {
	switch n.Type() {
	case "tuple_type":
		var items, others []*sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "tuple_type_item" {
				items = append(items, c)
			} else {
				others = append(others, c)
			}
		}
		if len(items) == 0 {
			items = others
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, elementType(item, src))
		}
		return out
	case "tuple_type_item":
		return []string{elementType(n, src)}
	default:
		return []string{strings.TrimSpace(n.Content(src))}
	}
}

func elementType(item *sitter.Node, src []byte) string {
	if t := item.ChildByFieldName("type"); t != nil {
		return strings.TrimSpace(t.Content(src))
	}
	return trimParens(strings.TrimSpace(item.Content(src)))
}

// trimParens strips one balanced pair of outer parentheses.
func trimParens(s string) string {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return s
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return s
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1])
}

// collectLeafTypes appends type identifiers below n, emitting each node's
// own identifiers after those of its other children.
func collectLeafTypes(n *sitter.Node, src []byte, out *[]string) {
	var own []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == "type_identifier" {
			own = append(own, c.Content(src))
			continue
		}
		collectLeafTypes(c, src, out)
	}
	*out = append(*out, own...)
}
