// Package strata answers semantic questions about a Swift codebase from the
// symbol graph a full build leaves behind, plus the compiler invocation used
// for each file.
//
// # Model
//
// The graph is a set of occurrences: appearances of a declaration, keyed by
// its USR, at a source location, tagged with roles and relations to other
// declarations. USR equality is the only notion of "same declaration";
// display names are a lookup key and nothing more.
//
// # Usage
//
//	tbl, err := invocation.LoadFile("compile_commands.json")
//	e, err := strata.New("graph.db",
//		strata.WithInvocations(tbl),
//		strata.WithSourceKit(sourcekit.NewClient()),
//	)
//	if err != nil { ... }
//	defer e.Close()
//
//	ans, err := e.IsSubclass(ctx, "LoginViewController", "UIViewController", usage)
//
// # Queries
//
//   - [Engine.Resolve], [Engine.ResolveKind], [Engine.ResolveInFile]: name to
//     declaration, failing with [SymbolResolutionError] on zero or several
//     candidates.
//   - [Engine.Superclasses], [Engine.ConformedProtocols],
//     [Engine.InstanceMethods], [Engine.FullyQualifiedName]: hierarchy walks.
//   - [Engine.IsSubclass]: graph first, then the [Prober].
//   - [Engine.ConformanceDeclarations], [Engine.CallSites]: located results.
//   - [Engine.ExpressionTypeAt], [Engine.MethodParameterType],
//     [Engine.DeclaredLeafTypes]: semantic service round trips.
//
// # Probing
//
// When the graph cannot answer an inheritance question, typically because
// the chain leaves the indexed module, the [Prober] injects
// "let __strata_probe_<id> : Candidate? = nil" into a scratch copy of the
// usage file and asks the semantic query service what Candidate refers to.
// The superclass is read from the class reference in the reported
// declaration, and the walk repeats one hop at a time until it reaches the
// target, a terminal root such as NSObject, or a non-class.
package strata
