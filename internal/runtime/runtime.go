package runtime

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"gitlab.com/tozd/go/errors"

	"github.com/jward/strata"
	"github.com/jward/strata/internal/sourcekit"
)

// Queries is the engine surface exposed to batch scripts.
type Queries interface {
	Resolve(ctx context.Context, name string) (*strata.Symbol, error)
	ResolveKind(ctx context.Context, name string, kind strata.Kind) ([]*strata.Symbol, error)
	Superclasses(ctx context.Context, sym *strata.Symbol) ([]*strata.Symbol, error)
	ConformedProtocols(ctx context.Context, sym *strata.Symbol) ([]*strata.Symbol, error)
	ConformanceDeclarations(ctx context.Context, sym *strata.Symbol) ([]strata.Conformance, error)
	InstanceMethods(ctx context.Context, name string, sym *strata.Symbol) ([]*strata.Symbol, error)
	FullyQualifiedName(ctx context.Context, sym *strata.Symbol) (string, bool, error)
	IsSubclass(ctx context.Context, sub, super string, usage strata.Location) (*strata.SubclassAnswer, error)
	CallSites(ctx context.Context, typeName, methodName string) ([]strata.CallSite, error)
	ExpressionTypeAt(ctx context.Context, loc strata.Location) (*sourcekit.ExpressionType, error)
	MethodParameterType(ctx context.Context, method *strata.Symbol, position int) (string, error)
	DeclaredLeafTypes(ctx context.Context, sym *strata.Symbol) ([]string, error)
}

var _ Queries = (*strata.Engine)(nil)

// ScriptExt is the extension of batch-query scripts and their modules.
const ScriptExt = ".risor"

// Runtime embeds a Risor VM and exposes engine queries to batch scripts.
type Runtime struct {
	queries    Queries
	scriptsDir string
	fsys       fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts and their imports from fsys instead of disk.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// NewRuntime creates a Runtime answering queries with q. scriptsDir is the
// base for relative script paths and import statements; it may be empty.
func NewRuntime(q Queries, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		queries:    q,
		scriptsDir: scriptsDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript loads and executes a script. The script's final expression is
// returned converted to Go values (maps, slices, strings, numbers).
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) (any, error) {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return nil, err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource executes script source directly.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (any, error) {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) (any, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, errors.Errorf("runtime: script %s: %w", label, err)
	}
	if result == nil || result == object.Nil {
		return nil, nil
	}
	return result.Interface(), nil
}

// buildImporter returns an importer over the configured script source, or
// nil when scripts come from neither an fs.FS nor a directory.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{ScriptExt},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{ScriptExt},
		})
	}
	return nil
}

// LoadScript reads a script from the configured fs.FS, or from disk relative
// to scriptsDir.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", errors.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", errors.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the globals visible to scripts. Query functions
// are only present when the Runtime has an engine.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": newLogModule(),
	}

	if r.queries != nil {
		q := r.queries
		globals["resolve"] = makeResolveFn(q)
		globals["resolve_kind"] = makeResolveKindFn(q)
		globals["superclasses"] = makeSuperclassesFn(q)
		globals["conformed_protocols"] = makeConformedProtocolsFn(q)
		globals["conformances"] = makeConformancesFn(q)
		globals["instance_methods"] = makeInstanceMethodsFn(q)
		globals["qualified_name"] = makeQualifiedNameFn(q)
		globals["is_subclass"] = makeIsSubclassFn(q)
		globals["call_sites"] = makeCallSitesFn(q)
		globals["expression_type"] = makeExpressionTypeFn(q)
		globals["parameter_type_at"] = makeParameterTypeFn(q)
		globals["leaf_types"] = makeLeafTypesFn(q)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}
