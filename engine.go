package strata

import (
	"context"
	"os"

	"github.com/jward/strata/internal/invocation"
	"github.com/jward/strata/internal/sourcekit"
	"github.com/jward/strata/internal/store"
	"github.com/jward/strata/internal/typeexpr"
	"gitlab.com/tozd/go/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jward/strata"

// DefaultMaxProbeDepth bounds the number of hops a probe chain may take.
const DefaultMaxProbeDepth = 32

// DefaultTerminalRoots are class names that end a probe chain with a
// rejection: they have no supertype worth following.
var DefaultTerminalRoots = []string{"NSObject", "NSProxy"}

// Engine answers semantic questions over a symbol graph. It owns the store
// handle, the compiler-invocation table, the semantic query service and a
// type-expression parser. An Engine is not safe for concurrent use.
type Engine struct {
	store       *store.Store
	index       store.Index
	invocations *invocation.Table
	service     sourcekit.Service
	parser      *typeexpr.Parser
	tracer      trace.Tracer

	moduleName    string
	terminalRoots []string
	maxProbeDepth int
	scratchDir    string
}

// Option configures an Engine.
type Option func(*Engine)

// WithInvocations sets the compiler-invocation table used by probes and
// semantic queries.
func WithInvocations(t *invocation.Table) Option {
	return func(e *Engine) {
		e.invocations = t
	}
}

// WithSourceKit sets the semantic query service.
func WithSourceKit(s sourcekit.Service) Option {
	return func(e *Engine) {
		e.service = s
	}
}

// WithModuleName overrides the module the analyzed sources belong to. By
// default it is read from the graph metadata, then from -module-name in the
// usage file's compiler arguments.
func WithModuleName(name string) Option {
	return func(e *Engine) {
		e.moduleName = name
	}
}

// WithTerminalRoots replaces DefaultTerminalRoots.
func WithTerminalRoots(roots ...string) Option {
	return func(e *Engine) {
		e.terminalRoots = roots
	}
}

// WithMaxProbeDepth replaces DefaultMaxProbeDepth. Values below one are ignored.
func WithMaxProbeDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxProbeDepth = n
		}
	}
}

// WithScratchDir sets where probe scratch files are created. Empty means
// the system temp directory.
func WithScratchDir(dir string) Option {
	return func(e *Engine) {
		e.scratchDir = dir
	}
}

// WithTracer sets the tracer used for query spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// New opens the symbol graph at dbPath. The file must already exist; the
// engine never writes to the graph.
func New(dbPath string, opts ...Option) (*Engine, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, errors.Errorf("strata: open graph: %w", err)
	}
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, errors.Errorf("strata: open graph: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, errors.Errorf("strata: migrate: %w", err)
	}

	e := &Engine{
		store:         s,
		index:         s,
		parser:        typeexpr.New(),
		terminalRoots: DefaultTerminalRoots,
		maxProbeDepth: DefaultMaxProbeDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	if e.moduleName == "" {
		mod, err := s.GetMetadata(store.MetadataModule)
		if err != nil {
			e.Close()
			return nil, errors.Errorf("strata: read module metadata: %w", err)
		}
		e.moduleName = mod
	}
	return e, nil
}

// Close releases the store and parser.
func (e *Engine) Close() error {
	e.parser.Close()
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// ModuleName returns the module the analyzed sources belong to, or "".
func (e *Engine) ModuleName() string {
	return e.moduleName
}

// Prober returns a semantic fallback prober sharing the engine's
// configuration.
func (e *Engine) Prober() *Prober {
	return NewProber(ProberConfig{
		Invocations:   e.invocations,
		Service:       e.service,
		ModuleName:    e.moduleName,
		TerminalRoots: e.terminalRoots,
		MaxDepth:      e.maxProbeDepth,
		ScratchDir:    e.scratchDir,
		Tracer:        e.tracer,
	})
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
