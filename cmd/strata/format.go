package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gitlab.com/tozd/go/errors"
)

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tUSR")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Kind, s.USR)
	}
	tw.Flush()
}

func formatSubclassText(w io.Writer, s CLISubclass) {
	verdict := "no"
	if s.IsSubclass {
		verdict = "yes"
	}
	fmt.Fprintf(w, "%s is a subclass of %s: %s (%s)\n", s.Subclass, s.Superclass, verdict, s.Source)
	if len(s.Chain) > 0 {
		fmt.Fprintf(w, "chain: %s\n", strings.Join(s.Chain, " -> "))
	}
	if s.ProbeSteps > 0 {
		fmt.Fprintf(w, "probe steps: %d\n", s.ProbeSteps)
	}
}

func formatConformancesText(w io.Writer, confs []CLIConformance) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROTOCOL\tDECLARED ON\tLOCATION")
	for _, c := range confs {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\n", c.Protocol.Name, c.DeclaredOn.Kind, c.DeclaredOn.Name, locationText(c.Location))
	}
	tw.Flush()
}

func formatCallSitesText(w io.Writer, sites []CLICallSite) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tCALLER\tMETHOD")
	for _, s := range sites {
		caller := "-"
		if s.Caller != nil {
			caller = s.Caller.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", locationText(s.Location), caller, s.Method.USR)
	}
	tw.Flush()
}

func locationText(loc CLILocation) string {
	return fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Col)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLISymbol:
		formatSymbolsText(w, []CLISymbol{v})
	case CLISubclass:
		formatSubclassText(w, v)
	case []CLIConformance:
		formatConformancesText(w, v)
	case []CLICallSite:
		formatCallSitesText(w, v)
	case CLIQualifiedName:
		if v.QualifiedName == nil {
			fmt.Fprintf(w, "%s (%s) has no qualified name\n", v.Symbol.Name, v.Symbol.Kind)
		} else {
			fmt.Fprintln(w, *v.QualifiedName)
		}
	case CLIExprType:
		fmt.Fprintln(w, v.Type)
	case CLITypeName:
		fmt.Fprintln(w, v.Type)
	case []string:
		for _, s := range v {
			fmt.Fprintln(w, s)
		}
	case CLIImportSummary:
		fmt.Fprintf(w, "Imported %d symbols, %d occurrences into %s\n", v.Symbols, v.Occurrences, v.Database)
	case nil:
		// No output for nil results (e.g., expr-type with no covering expression).
	default:
		// Script results have no fixed shape.
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return errors.Errorf("unsupported result type for text format: %T", v)
		}
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return errors.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
