package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/jward/strata"
	"github.com/jward/strata/internal/store"
)

var (
	flagKind    string
	flagInFile  string
	flagAt      string
	flagClosure bool
)

var queryCommands = []*cobra.Command{
	resolveCmd,
	inheritsCmd,
	superclassesCmd,
	conformancesCmd,
	methodsCmd,
	callersCmd,
	qualifiedNameCmd,
	exprTypeCmd,
	paramTypeCmd,
	leafTypesCmd,
}

func init() {
	resolveCmd.Flags().StringVar(&flagKind, "kind", "", "only declarations of this kind (e.g. class, protocol, instanceMethod)")
	resolveCmd.Flags().StringVar(&flagInFile, "file", "", "only declarations defined in this file (requires --kind)")
	inheritsCmd.Flags().StringVar(&flagAt, "at", "", "usage site <file:line:col> to probe from when the graph is inconclusive")
	conformancesCmd.Flags().BoolVar(&flagClosure, "closure", false, "every protocol reachable through extensions and refinement, without locations")
}

// --- Helpers ---

// queryFunc runs one query against an open engine and returns its result.
type queryFunc func(ctx context.Context, e *strata.Engine, args []string) (any, error)

// runQuery opens the engine, runs fn, and writes its result or error.
func runQuery(name string, fn queryFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := openEngine(ctx)
		if err != nil {
			return outputError(name, err)
		}
		defer e.Close()

		res, err := fn(ctx, e, args)
		if err != nil {
			return outputError(name, err)
		}
		return outputResult(CLIResult{Command: name, Results: res})
	}
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr. Ambiguous names carry
// their candidates either way.
func outputError(command string, err error) error {
	errorHandled = true
	var candidates []CLISymbol
	var rerr *strata.SymbolResolutionError
	if errors.As(err, &rerr) {
		candidates = symbolsToCLI(rerr.Candidates)
	}

	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		for _, c := range candidates {
			fmt.Fprintf(os.Stderr, "  candidate: %s %s %s\n", c.Kind, c.Name, c.USR)
		}
		return err
	}
	result := CLIResult{
		Command:    command,
		Error:      err.Error(),
		Candidates: candidates,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

func symbolToCLI(sym *strata.Symbol) CLISymbol {
	return CLISymbol{
		USR:       string(sym.USR),
		Name:      sym.Name,
		Kind:      string(sym.Kind),
		FromMacro: sym.IsFromMacro,
	}
}

func symbolsToCLI(syms []*strata.Symbol) []CLISymbol {
	out := make([]CLISymbol, 0, len(syms))
	for _, s := range syms {
		out = append(out, symbolToCLI(s))
	}
	return out
}

func locationToCLI(loc strata.Location) CLILocation {
	return CLILocation{File: loc.Path, Line: loc.Line, Col: loc.UTF8Column}
}

// parseLocationArg parses "<file>:<line>:<col>" with 1-based line and byte
// column. Relative files are resolved against the working directory.
func parseLocationArg(value string) (strata.Location, error) {
	colSep := strings.LastIndex(value, ":")
	if colSep < 0 {
		return strata.Location{}, errors.Errorf("invalid location %q: want <file>:<line>:<col>", value)
	}
	lineSep := strings.LastIndex(value[:colSep], ":")
	if lineSep <= 0 {
		return strata.Location{}, errors.Errorf("invalid location %q: want <file>:<line>:<col>", value)
	}
	line, err := parsePositiveArg(value[lineSep+1:colSep], "line")
	if err != nil {
		return strata.Location{}, err
	}
	col, err := parsePositiveArg(value[colSep+1:], "col")
	if err != nil {
		return strata.Location{}, err
	}
	path, err := filepath.Abs(value[:lineSep])
	if err != nil {
		return strata.Location{}, errors.Errorf("resolving file path %q: %w", value[:lineSep], err)
	}
	return strata.Location{Path: path, Line: line, UTF8Column: col}, nil
}

func parsePositiveArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, errors.Errorf("invalid %s %q: must be a positive integer", name, value)
	}
	return n, nil
}

// --- Declaration lookup ---

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve a simple or dotted name to its declaration",
	Long:  "Resolves a name to exactly one declaration. With --kind, lists every declaration of that kind instead of requiring a unique match.",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("resolve", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		if flagInFile != "" {
			if flagKind == "" {
				return nil, errors.New("--file requires --kind")
			}
			path, err := filepath.Abs(flagInFile)
			if err != nil {
				return nil, errors.Errorf("resolving file path %q: %w", flagInFile, err)
			}
			syms, err := e.ResolveInFile(ctx, args[0], strata.Kind(flagKind), path)
			if err != nil {
				return nil, err
			}
			return symbolsToCLI(syms), nil
		}
		if flagKind != "" {
			syms, err := e.ResolveKind(ctx, args[0], strata.Kind(flagKind))
			if err != nil {
				return nil, err
			}
			return symbolsToCLI(syms), nil
		}
		sym, err := e.Resolve(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return symbolToCLI(sym), nil
	}),
}

var qualifiedNameCmd = &cobra.Command{
	Use:   "qualified-name <name>",
	Short: "Print the dotted, module-relative name of a type declaration",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("qualified-name", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		sym, err := e.Resolve(ctx, args[0])
		if err != nil {
			return nil, err
		}
		fqn, ok, err := e.FullyQualifiedName(ctx, sym)
		if err != nil {
			return nil, err
		}
		res := CLIQualifiedName{Symbol: symbolToCLI(sym)}
		if ok {
			res.QualifiedName = &fqn
		}
		return res, nil
	}),
}

// --- Hierarchy ---

var inheritsCmd = &cobra.Command{
	Use:   "inherits <subclass> <superclass>",
	Short: "Decide whether one class inherits from another",
	Long:  "Answers from the symbol graph when it can. Otherwise probes the compiler from the --at usage site, which must have a recorded compiler invocation.",
	Args:  cobra.ExactArgs(2),
	RunE: runQuery("inherits", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		var usage strata.Location
		if flagAt != "" {
			loc, err := parseLocationArg(flagAt)
			if err != nil {
				return nil, err
			}
			usage = loc
		}
		ans, err := e.IsSubclass(ctx, args[0], args[1], usage)
		if err != nil {
			return nil, err
		}
		return CLISubclass{
			Subclass:   args[0],
			Superclass: args[1],
			IsSubclass: ans.IsSubclass,
			Source:     string(ans.Source),
			Chain:      ans.Chain,
			ProbeSteps: ans.ProbeSteps,
		}, nil
	}),
}

var superclassesCmd = &cobra.Command{
	Use:   "superclasses <class>",
	Short: "List the superclass chain of a class, nearest first",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("superclasses", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		sym, err := e.Resolve(ctx, args[0])
		if err != nil {
			return nil, err
		}
		chain, err := e.Superclasses(ctx, sym)
		if err != nil {
			return nil, err
		}
		return symbolsToCLI(chain), nil
	}),
}

var conformancesCmd = &cobra.Command{
	Use:   "conformances <type>",
	Short: "List protocol conformances declared on a type and its extensions",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("conformances", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		sym, err := e.Resolve(ctx, args[0])
		if err != nil {
			return nil, err
		}
		if flagClosure {
			protos, err := e.ConformedProtocols(ctx, sym)
			if err != nil {
				return nil, err
			}
			return symbolsToCLI(protos), nil
		}
		confs, err := e.ConformanceDeclarations(ctx, sym)
		if err != nil {
			return nil, err
		}
		out := make([]CLIConformance, 0, len(confs))
		for _, c := range confs {
			out = append(out, CLIConformance{
				Protocol:   symbolToCLI(c.Protocol),
				DeclaredOn: symbolToCLI(c.DeclaredOn),
				Location:   locationToCLI(c.Location),
			})
		}
		return out, nil
	}),
}

var methodsCmd = &cobra.Command{
	Use:   "methods <type> <method>",
	Short: "List instance methods with a name declared on a type, its superclasses, or its protocols",
	Args:  cobra.ExactArgs(2),
	RunE: runQuery("methods", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		sym, err := e.Resolve(ctx, args[0])
		if err != nil {
			return nil, err
		}
		methods, err := e.InstanceMethods(ctx, args[1], sym)
		if err != nil {
			return nil, err
		}
		return symbolsToCLI(methods), nil
	}),
}

var callersCmd = &cobra.Command{
	Use:   "callers <type> <method>",
	Short: "List call sites of an instance method reachable from a type",
	Args:  cobra.ExactArgs(2),
	RunE: runQuery("callers", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		sites, err := e.CallSites(ctx, args[0], args[1])
		if err != nil {
			return nil, err
		}
		out := make([]CLICallSite, 0, len(sites))
		for _, s := range sites {
			site := CLICallSite{Method: symbolToCLI(s.Method), Location: locationToCLI(s.Location)}
			if s.Caller != nil {
				caller := symbolToCLI(s.Caller)
				site.Caller = &caller
			}
			out = append(out, site)
		}
		return out, nil
	}),
}

// --- Semantic service ---

var exprTypeCmd = &cobra.Command{
	Use:   "expr-type <file:line:col>",
	Short: "Print the type of the innermost expression at a position",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("expr-type", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		loc, err := parseLocationArg(args[0])
		if err != nil {
			return nil, err
		}
		et, err := e.ExpressionTypeAt(ctx, loc)
		if err != nil {
			return nil, err
		}
		if et == nil {
			return nil, nil
		}
		return CLIExprType{Offset: et.Offset, Length: et.Length, Type: et.Type}, nil
	}),
}

var paramTypeCmd = &cobra.Command{
	Use:   "param-type <method> <position>",
	Short: "Print the type of a method parameter; position 0 is the receiver",
	Args:  cobra.ExactArgs(2),
	RunE: runQuery("param-type", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 0 {
			return nil, errors.Errorf("invalid position %q: must be a non-negative integer", args[1])
		}
		methods, err := e.ResolveKind(ctx, args[0], store.KindInstanceMethod)
		if err != nil {
			return nil, err
		}
		if len(methods) != 1 {
			return nil, &strata.SymbolResolutionError{Name: args[0], Candidates: methods}
		}
		typ, err := e.MethodParameterType(ctx, methods[0], pos)
		if err != nil {
			return nil, err
		}
		return CLITypeName{Type: typ}, nil
	}),
}

var leafTypesCmd = &cobra.Command{
	Use:   "leaf-types <name>",
	Short: "List the leaf type identifiers of a declaration's type",
	Args:  cobra.ExactArgs(1),
	RunE: runQuery("leaf-types", func(ctx context.Context, e *strata.Engine, args []string) (any, error) {
		sym, err := e.Resolve(ctx, args[0])
		if err != nil {
			return nil, err
		}
		types, err := e.DeclaredLeafTypes(ctx, sym)
		if err != nil {
			return nil, err
		}
		if types == nil {
			types = []string{}
		}
		return types, nil
	}),
}
