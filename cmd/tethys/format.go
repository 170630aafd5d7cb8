package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tVISIBILITY\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n",
			s.ID, s.Name, s.Kind, s.Visibility, s.File, s.StartLine)
	}
	tw.Flush()
}

// formatCallEdgesText formats CLICallEdge results as aligned columns.
func formatCallEdgesText(w io.Writer, edges []CLICallEdge) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tCALLEE\tCALL COUNT")
	for _, e := range edges {
		caller := fmt.Sprintf("%s (#%d)", e.CallerName, e.CallerID)
		callee := fmt.Sprintf("%s (#%d)", e.CalleeName, e.CalleeID)
		fmt.Fprintf(tw, "%s\t%s\t%d\n", caller, callee, e.CallCount)
	}
	tw.Flush()
}

// formatImportsText formats CLIImport results as aligned columns.
func formatImportsText(w io.Writer, imports []CLIImport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMPORTED NAME\tSOURCE\tALIAS\tFILE\tLINE")
	for _, imp := range imports {
		alias := ""
		if imp.Alias != nil {
			alias = *imp.Alias
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			imp.ImportedName, imp.Source, alias, imp.FilePath, imp.Line)
	}
	tw.Flush()
}

// formatCallGraphText formats a CLICallGraph as a depth-ordered node list
// followed by its edges.
func formatCallGraphText(w io.Writer, g CLICallGraph) {
	fmt.Fprintf(w, "Root: #%d (max depth %d)\n\n", g.Root, g.MaxDepth)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tID\tNAME\tKIND\tFILE\tLINE")
	for _, n := range g.Nodes {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%d\n",
			n.Depth, n.Symbol.ID, n.Symbol.Name, n.Symbol.Kind, n.Symbol.File, n.Symbol.StartLine)
	}
	tw.Flush()

	if len(g.Edges) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Edges:")
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CALLER\tCALLEE\tCALL COUNT")
		for _, e := range g.Edges {
			fmt.Fprintf(tw, "#%d\t#%d\t%d\n", e.CallerID, e.CalleeID, e.CallCount)
		}
		tw.Flush()
	}
}

// formatCallPathText formats a CLICallPath as an arrow-joined chain.
func formatCallPathText(w io.Writer, p CLICallPath) {
	if len(p.Symbols) == 0 {
		fmt.Fprintln(w, "no path found")
		return
	}
	for i, s := range p.Symbols {
		if i > 0 {
			fmt.Fprint(w, " -> ")
		}
		fmt.Fprintf(w, "%s (#%d)", s.Name, s.ID)
	}
	fmt.Fprintf(w, "\ndepth: %d\n", p.Depth)
}

// formatFilePathText formats a CLIFilePath as an arrow-joined chain.
func formatFilePathText(w io.Writer, p CLIFilePath) {
	if len(p.Files) == 0 {
		fmt.Fprintln(w, "no path found")
		return
	}
	fmt.Fprint(w, strings.Join(p.Files, " -> "))
	fmt.Fprintf(w, "\ndepth: %d\n", p.Depth)
}

// formatFileGraphText formats a CLIFileGraph as a depth-ordered path list.
func formatFileGraphText(w io.Writer, g CLIFileGraph) {
	fmt.Fprintf(w, "Root file ID: %d (max depth %d)\n\n", g.Root, g.MaxDepth)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPTH\tPATH")
	for _, n := range g.Nodes {
		fmt.Fprintf(tw, "%d\t%s\n", n.Depth, n.Path)
	}
	tw.Flush()
}

// formatCyclesText formats CLICycle results as arrow-joined file chains.
func formatCyclesText(w io.Writer, cycles []CLICycle) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "no cycles found")
		return
	}
	for i, c := range cycles {
		fmt.Fprintf(w, "%d: ", i+1)
		for j, f := range c.Files {
			if j > 0 {
				fmt.Fprint(w, " -> ")
			}
			fmt.Fprint(w, f)
		}
		fmt.Fprintf(w, " -> %s\n", c.Files[0])
	}
}

// formatHotspotsText formats CLIHotspot results as aligned columns.
func formatHotspotsText(w io.Writer, hotspots []CLIHotspot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tREFS\tCALLERS\tCALLEES\tFILE")
	for _, h := range hotspots {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			h.Symbol.ID, h.Symbol.Name, h.Symbol.Kind,
			h.RefCount, h.CallerCount, h.CalleeCount, h.Symbol.File)
	}
	tw.Flush()
}

// formatPanicPointsText formats CLIPanicPoint results as aligned columns.
func formatPanicPointsText(w io.Writer, points []CLIPanicPoint) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLINE\tCOL\tMETHOD\tIS TEST")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%t\n",
			p.Location.File, p.Location.StartLine, p.Location.StartCol, p.Method, p.IsTest)
	}
	tw.Flush()
}

// formatStatsText formats CLIStats as readable text.
func formatStatsText(w io.Writer, stats CLIStats) {
	fmt.Fprintln(w, "Index Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files:   %d\n", stats.FileCount)
	fmt.Fprintf(w, "Symbols: %d\n", stats.SymbolCount)
	fmt.Fprintf(w, "Refs:    %d\n", stats.RefCount)

	if len(stats.KindCounts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Symbols by kind:")
		kinds := make([]string, 0, len(stats.KindCounts))
		for k := range stats.KindCounts {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(w, "  %s: %d\n", k, stats.KindCounts[k])
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case nil:
		fmt.Fprintln(w, "no results")
	case []CLILocation:
		formatLocationsText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case CLISymbol:
		formatSymbolsText(w, []CLISymbol{v})
	case []CLICallEdge:
		formatCallEdgesText(w, v)
	case []CLIImport:
		formatImportsText(w, v)
	case CLICallGraph:
		formatCallGraphText(w, v)
	case CLICallPath:
		formatCallPathText(w, v)
	case CLIFilePath:
		formatFilePathText(w, v)
	case CLIFileGraph:
		formatFileGraphText(w, v)
	case []CLICycle:
		formatCyclesText(w, v)
	case []CLIHotspot:
		formatHotspotsText(w, v)
	case []CLIPanicPoint:
		formatPanicPointsText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	default:
		fmt.Fprintf(w, "%+v\n", v)
	}

	return nil
}
