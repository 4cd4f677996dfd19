package sourcekit

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// DefaultBinary is the CLI used to reach the service.
const DefaultBinary = "sourcekitten"

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client implements Service on top of "sourcekitten request --yaml".
type Client struct {
	binary string
	run    Runner
}

var _ Service = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the sourcekitten executable.
func WithBinary(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.binary = path
		}
	}
}

// WithRunner replaces command execution, for tests.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.run = r
	}
}

// NewClient returns a client that shells out to sourcekitten.
func NewClient(opts ...Option) *Client {
	c := &Client{binary: DefaultBinary, run: execRunner}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CursorInfo sends a cursor-info request.
func (c *Client) CursorInfo(ctx context.Context, req CursorInfoRequest) (*CursorInfo, error) {
	m := newRequest(RequestCursorInfo)
	addString(m, "key.sourcefile", req.SourceFile)
	addInt(m, "key.offset", req.Offset)
	addStrings(m, "key.compilerargs", req.CompilerArgs)

	resp, err := c.send(ctx, m)
	if err != nil {
		return nil, err
	}
	return parseCursorInfo(resp)
}

// ExpressionTypes sends an expression-type request.
func (c *Client) ExpressionTypes(ctx context.Context, req ExpressionTypeRequest) ([]ExpressionType, error) {
	m := newRequest(RequestExpressionType)
	addString(m, "key.sourcefile", req.SourceFile)
	addStrings(m, "key.compilerargs", req.CompilerArgs)

	resp, err := c.send(ctx, m)
	if err != nil {
		return nil, err
	}
	return parseExpressionTypes(resp)
}

func (c *Client) send(ctx context.Context, req *yaml.Node) (map[string]any, error) {
	body, err := yaml.Marshal(req)
	if err != nil {
		return nil, &TransportError{Op: "encode request", Err: err}
	}
	slogctx.Debug(ctx, "sourcekit request", "binary", c.binary, "request", requestKind(req))

	out, err := c.run(ctx, c.binary, "request", "--yaml", string(body))
	if err != nil {
		return nil, &TransportError{Op: "run " + c.binary, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(out))
	dec.UseNumber()
	var resp map[string]any
	if err := dec.Decode(&resp); err != nil {
		return nil, &TransportError{Op: "decode response", Err: err}
	}
	if diag, ok := resp[KeyInternalDiagnostic]; ok {
		return nil, &InternalDiagnosticError{Diagnostic: describe(diag), Response: resp}
	}
	return resp, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, errors.Errorf("%w: %s", err, msg)
		}
		return nil, errors.WithStack(err)
	}
	return out, nil
}

// =============================================================================
// Request encoding
// =============================================================================

// Strings are double-quoted: sourcekitd reads unquoted scalars as UIDs.

func newRequest(kind string) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	addUID(m, "key.request", kind)
	return m
}

func addKey(m *yaml.Node, key string, val *yaml.Node) {
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, val)
}

func addUID(m *yaml.Node, key, uid string) {
	addKey(m, key, &yaml.Node{Kind: yaml.ScalarNode, Value: uid})
}

func addString(m *yaml.Node, key, val string) {
	addKey(m, key, quoted(val))
}

func addInt(m *yaml.Node, key string, val int) {
	addKey(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(val)})
}

func addStrings(m *yaml.Node, key string, vals []string) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range vals {
		seq.Content = append(seq.Content, quoted(v))
	}
	addKey(m, key, seq)
}

func quoted(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: s}
}

func requestKind(m *yaml.Node) string {
	if len(m.Content) >= 2 {
		return m.Content[1].Value
	}
	return ""
}
