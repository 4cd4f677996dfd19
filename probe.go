package strata

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jward/strata/internal/invocation"
	"github.com/jward/strata/internal/sourcekit"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// refClassPattern extracts a class reference from a fully annotated
// declaration, e.g. `<ref.class usr="s:3App4BaseC">Base</ref.class>`.
var refClassPattern = regexp.MustCompile(`<ref\.class[^>]*>(.*?)</ref\.class>`)

const (
	declNameClose   = "</decl.name>"
	whereClauseOpen = "<decl.generic_where_clause>"
	escapedLess     = "&lt;"
	escapedGreater  = "&gt;"
)

const probeIdentPrefix = "__strata_probe_"

// Verdict is the terminal state of a probe chain.
type Verdict int

const (
	VerdictConfirmed Verdict = iota + 1
	VerdictRejected
)

func (v Verdict) String() string {
	switch v {
	case VerdictConfirmed:
		return "confirmed"
	case VerdictRejected:
		return "rejected"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// ProbeResult is the outcome of a probe chain. Chain starts with the probed
// subclass and lists each supertype the service reported, in order.
type ProbeResult struct {
	Verdict Verdict
	Steps   int
	Chain   []string
}

// ProberConfig configures a Prober.
type ProberConfig struct {
	Invocations   *invocation.Table
	Service       sourcekit.Service
	ModuleName    string
	TerminalRoots []string
	MaxDepth      int
	ScratchDir    string
	Tracer        trace.Tracer
}

// Prober answers "is A a subclass of B" by asking the semantic query
// service one inheritance hop at a time. Each hop injects a typed
// declaration into a scratch copy of the usage file and reads the
// superclass out of the cursor info for it.
type Prober struct {
	invocations   *invocation.Table
	service       sourcekit.Service
	moduleName    string
	terminalRoots map[string]bool
	maxDepth      int
	scratchDir    string
	tracer        trace.Tracer
}

// NewProber returns a Prober. Zero values fall back to DefaultTerminalRoots,
// DefaultMaxProbeDepth and the global tracer.
func NewProber(cfg ProberConfig) *Prober {
	roots := cfg.TerminalRoots
	if roots == nil {
		roots = DefaultTerminalRoots
	}
	p := &Prober{
		invocations:   cfg.Invocations,
		service:       cfg.Service,
		moduleName:    cfg.ModuleName,
		terminalRoots: make(map[string]bool, len(roots)),
		maxDepth:      cfg.MaxDepth,
		scratchDir:    cfg.ScratchDir,
		tracer:        cfg.Tracer,
	}
	for _, r := range roots {
		p.terminalRoots[r] = true
	}
	if p.maxDepth <= 0 {
		p.maxDepth = DefaultMaxProbeDepth
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	return p
}

// IsSubclass reports whether subclass, as referenced at usage, transitively
// inherits from superclass. Reaching a terminal root or a non-class yields
// VerdictRejected. Any structural failure is returned as an error.
func (p *Prober) IsSubclass(ctx context.Context, subclass, superclass string, usage Location) (res *ProbeResult, err error) {
	ctx, span := p.tracer.Start(ctx, "strata.Prober.IsSubclass", trace.WithAttributes(
		attribute.String("subclass", subclass),
		attribute.String("superclass", superclass),
		attribute.String("path", usage.Path),
	))
	defer func() { endSpan(span, err) }()

	if p.service == nil {
		return nil, errors.WithStack(ErrNoSemanticService)
	}
	args := p.invocations.Lookup(usage.Path)
	if args == nil {
		return nil, errors.Errorf("probe %s: %w: %s", subclass, ErrNoInvocation, usage.Path)
	}
	src, err := os.ReadFile(usage.Path)
	if err != nil {
		return nil, errors.Errorf("probe %s: read usage file: %w", subclass, err)
	}
	current := p.moduleName
	if current == "" {
		current = invocation.ModuleName(args)
	}

	res = &ProbeResult{Chain: []string{subclass}}
	candidate, hint := subclass, ""
	for {
		if res.Steps >= p.maxDepth {
			return nil, errors.Errorf("probe %s after %d steps: %w", subclass, res.Steps, ErrProbeDepthExceeded)
		}
		res.Steps++
		out, err := p.step(ctx, probeInput{
			source:    src,
			args:      args,
			usage:     usage,
			candidate: candidate,
			hint:      hint,
			current:   current,
		})
		if err != nil {
			return nil, errors.Errorf("probe %s step %d (%s): %w", subclass, res.Steps, candidate, err)
		}
		if out.notClass {
			slogctx.Debug(ctx, "probe candidate is not a class", "candidate", candidate)
			res.Verdict = VerdictRejected
			break
		}
		res.Chain = append(res.Chain, out.supertype)
		if out.supertype == superclass {
			res.Verdict = VerdictConfirmed
			break
		}
		if p.terminalRoots[out.supertype] {
			res.Verdict = VerdictRejected
			break
		}
		candidate, hint = out.supertype, out.module
	}
	span.SetAttributes(attribute.String("verdict", res.Verdict.String()), attribute.Int("steps", res.Steps))
	return res, nil
}

type probeInput struct {
	source    []byte
	args      []string
	usage     Location
	candidate string
	hint      string
	current   string
}

type probeOutput struct {
	notClass  bool
	supertype string
	module    string
}

func (p *Prober) step(ctx context.Context, in probeInput) (out probeOutput, err error) {
	ctx, span := p.tracer.Start(ctx, "strata.Prober.step", trace.WithAttributes(
		attribute.String("candidate", in.candidate),
		attribute.String("module_hint", in.hint),
	))
	defer func() { endSpan(span, err) }()

	ident := probeIdentPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	text, line, col, err := injectProbe(in.source, in.usage.Line, in.candidate, ident, importFor(in.hint, in.current))
	if err != nil {
		return out, err
	}
	offset, err := ByteOffset(text, line, col)
	if err != nil {
		return out, err
	}

	scratch, err := writeScratch(p.scratchDir, text)
	if err != nil {
		return out, err
	}
	defer os.Remove(scratch)

	info, err := p.service.CursorInfo(ctx, sourcekit.CursorInfoRequest{
		SourceFile:   scratch,
		Offset:       offset,
		CompilerArgs: invocation.SubstituteFile(in.args, in.usage.Path, scratch),
	})
	if err != nil {
		return out, err
	}
	if info.Kind != sourcekit.KindRefClass {
		span.SetAttributes(attribute.String("kind", info.Kind))
		return probeOutput{notClass: true}, nil
	}

	decl, err := info.Require(sourcekit.KeyFullyAnnotatedDecl)
	if err != nil {
		return out, err
	}
	parent, ok := inheritedClass(decl)
	if !ok {
		return out, &DeclarationParseError{Candidate: in.candidate, Decl: decl}
	}
	module, err := info.Require(sourcekit.KeyModuleName)
	if err != nil {
		return out, err
	}
	out.supertype = parent
	out.module = module
	span.SetAttributes(attribute.String("supertype", out.supertype), attribute.String("module", module))
	return out, nil
}

// inheritedClass returns the first class named in the inheritance clause of
// a fully annotated class declaration. Class references inside the generic
// parameter list or the where clause are constraints, not superclasses.
func inheritedClass(decl string) (string, bool) {
	clause := decl
	if i := strings.Index(clause, declNameClose); i >= 0 {
		clause = skipGenericParams(clause[i+len(declNameClose):])
	}
	if i := strings.Index(clause, whereClauseOpen); i >= 0 {
		clause = clause[:i]
	}
	m := refClassPattern.FindStringSubmatch(clause)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// skipGenericParams drops a leading escaped "<...>" parameter list,
// honoring nesting. Unbalanced input is returned unchanged.
func skipGenericParams(s string) string {
	rest := strings.TrimLeft(s, " ")
	if !strings.HasPrefix(rest, escapedLess) {
		return s
	}
	depth := 0
	for i := 0; i < len(rest); {
		switch {
		case strings.HasPrefix(rest[i:], escapedLess):
			depth++
			i += len(escapedLess)
		case strings.HasPrefix(rest[i:], escapedGreater):
			depth--
			i += len(escapedGreater)
			if depth == 0 {
				return rest[i:]
			}
		default:
			i++
		}
	}
	return s
}

// importFor returns the module to import for a hint, or "" when the hint is
// empty, the current module, or an underscored internal module.
func importFor(hint, current string) string {
	if hint == "" || hint == current || strings.HasPrefix(hint, "_") {
		return ""
	}
	return hint
}

// injectProbe inserts "let <ident> : <candidate>? = nil" after usageLine
// and, when module is set, "import <module>" as the first line. It returns
// the rewritten text and the 1-based line and byte column of the candidate's
// last name component inside the injected declaration.
func injectProbe(src []byte, usageLine int, candidate, ident, module string) ([]byte, int, int, error) {
	lines := strings.Split(string(src), "\n")
	if usageLine < 1 || usageLine > len(lines) {
		return nil, 0, 0, errors.Errorf("usage line %d outside file of %d lines", usageLine, len(lines))
	}

	prefix := "let " + ident + " : "
	decl := prefix + candidate + "? = nil"

	at := usageLine
	if module != "" {
		lines = append([]string{"import " + module}, lines...)
		at++
	}
	lines = append(lines[:at], append([]string{decl}, lines[at:]...)...)

	// The cursor goes on the last component of a dotted name so the
	// service reports the nested type itself.
	col := len(prefix) + 1
	if i := strings.LastIndex(candidate, "."); i >= 0 {
		col += i + 1
	}
	return []byte(strings.Join(lines, "\n")), at + 1, col, nil
}

// ByteOffset converts a 1-based line and UTF-8 byte column into a byte
// offset within text.
func ByteOffset(text []byte, line, column int) (int, error) {
	if line < 1 || column < 1 {
		return 0, errors.Errorf("invalid position %d:%d", line, column)
	}
	offset := 0
	for l := 1; l < line; l++ {
		i := bytes.IndexByte(text[offset:], '\n')
		if i < 0 {
			return 0, errors.Errorf("line %d past end of text", line)
		}
		offset += i + 1
	}
	end := bytes.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text) - offset
	}
	if column-1 > end {
		return 0, errors.Errorf("column %d past end of line %d", column, line)
	}
	return offset + column - 1, nil
}

func writeScratch(dir string, text []byte) (string, error) {
	f, err := os.CreateTemp(dir, "strata-probe-*.swift")
	if err != nil {
		return "", errors.Errorf("create scratch file: %w", err)
	}
	if _, err := f.Write(text); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Errorf("write scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.Errorf("close scratch file: %w", err)
	}
	return f.Name(), nil
}
