package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tethysdb/tethys"
	"github.com/tethysdb/tethys/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the code intelligence index",
	Long:  "Run queries against an indexed codebase. All line and column numbers are 1-based.",
}

func init() {
	queryCmd.AddCommand(symbolAtCmd)
	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
	queryCmd.AddCommand(depsCmd)
	queryCmd.AddCommand(dependentsCmd)
	queryCmd.AddCommand(transitiveCallersCmd)
	queryCmd.AddCommand(transitiveCalleesCmd)
	queryCmd.AddCommand(shortestPathCmd)
	queryCmd.AddCommand(fileShortestPathCmd)
	queryCmd.AddCommand(transitiveDepsCmd)
	queryCmd.AddCommand(transitiveDependentsCmd)
	queryCmd.AddCommand(cyclesCmd)
	queryCmd.AddCommand(searchCmd)
	queryCmd.AddCommand(unusedCmd)
	queryCmd.AddCommand(hotspotsCmd)
	queryCmd.AddCommand(panicPointsCmd)
}

// --- Helpers ---

// openStore opens the Store from the --db flag path (or default).
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'tethys index' first)", dbPath)
	}

	return store.NewStore(dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as a non-negative integer.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// resolveSymbolID resolves a symbol ID from either positional args
// (<file> <line> <col>) or the --symbol flag.
func resolveSymbolID(cmd *cobra.Command, args []string, qb *tethys.QueryBuilder) (tethys.SymbolID, error) {
	symbolFlag, _ := cmd.Flags().GetInt64("symbol")
	if symbolFlag != 0 {
		return tethys.SymbolID(symbolFlag), nil
	}

	if len(args) < 3 {
		return 0, fmt.Errorf("requires either <file> <line> <col> arguments or --symbol flag")
	}

	file, err := resolveFilePath(args[0])
	if err != nil {
		return 0, err
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return 0, err
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return 0, err
	}

	sym, err := qb.SymbolAt(file, line, col)
	if err != nil {
		return 0, fmt.Errorf("looking up symbol: %w", err)
	}
	if sym == nil {
		return 0, fmt.Errorf("no symbol found at %s:%d:%d", file, line, col)
	}
	return sym.ID, nil
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
// can propagate it to Cobra.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{Command: command, Error: err.Error()}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

func symbolToCLI(sym *tethys.Symbol, filePath string) CLISymbol {
	if sym == nil {
		return CLISymbol{}
	}
	return CLISymbol{
		ID:         int64(sym.ID),
		Name:       sym.Name,
		Kind:       sym.Kind,
		Visibility: sym.Visibility,
		File:       filePath,
		StartLine:  sym.StartLine,
		StartCol:   sym.StartCol,
		EndLine:    sym.EndLine,
		EndCol:     sym.EndCol,
		Signature:  sym.Signature,
		IsTest:     sym.IsTest,
		Details:    signatureToCLI(sym.SignatureDetails),
	}
}

// signatureToCLI converts a store.FunctionSignature to its JSON-friendly
// form. Returns nil if fs is nil.
func signatureToCLI(fs *store.FunctionSignature) *CLISignature {
	if fs == nil {
		return nil
	}
	params := make([]CLIParameter, len(fs.Parameters))
	for i, p := range fs.Parameters {
		cp := CLIParameter{Name: p.Name}
		if p.TypeAnnotation != nil {
			cp.TypeAnnotation = *p.TypeAnnotation
		}
		params[i] = cp
	}
	cs := &CLISignature{
		Parameters: params,
		IsAsync:    fs.IsAsync,
		IsUnsafe:   fs.IsUnsafe,
		IsConst:    fs.IsConst,
	}
	if fs.ReturnType != nil {
		cs.ReturnType = *fs.ReturnType
	}
	if fs.Generics != nil {
		cs.Generics = *fs.Generics
	}
	return cs
}

func locationToCLI(loc tethys.Location, symbolID *tethys.SymbolID) CLILocation {
	cl := CLILocation{
		File:      loc.File,
		StartLine: loc.StartLine,
		StartCol:  loc.StartCol,
		EndLine:   loc.EndLine,
		EndCol:    loc.EndCol,
	}
	if symbolID != nil {
		id := int64(*symbolID)
		cl.SymbolID = &id
	}
	return cl
}

// lookupSymbolName fetches just the name of a symbol by ID.
func lookupSymbolName(s *store.Store, id tethys.SymbolID) string {
	var name string
	err := s.DB().QueryRow("SELECT name FROM symbols WHERE id = ?", id).Scan(&name)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("warning: lookupSymbolName(%d): %v", id, err)
	}
	return name
}

// lookupFilePath fetches a file's path by ID.
func lookupFilePath(s *store.Store, fileID tethys.FileID) string {
	var path string
	err := s.DB().QueryRow("SELECT path FROM files WHERE id = ?", fileID).Scan(&path)
	if err != nil && err != sql.ErrNoRows {
		log.Printf("warning: lookupFilePath(%d): %v", fileID, err)
	}
	return path
}

// --- Position-based commands ---

var symbolAtCmd = &cobra.Command{
	Use:   "symbol-at <file> <line> <col>",
	Short: "Find the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runSymbolAt,
}

func runSymbolAt(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("symbol-at", err)
	}
	defer s.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("symbol-at", err)
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("symbol-at", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("symbol-at", err)
	}

	qb := tethys.NewQueryBuilder(s)
	sym, err := qb.SymbolAt(file, line, col)
	if err != nil {
		return outputError("symbol-at", err)
	}
	if sym == nil {
		return outputResult(CLIResult{Command: "symbol-at"})
	}

	filePath := lookupFilePath(s, sym.FileID)
	one := 1
	return outputResult(CLIResult{
		Command:    "symbol-at",
		Results:    symbolToCLI(sym, filePath),
		TotalCount: &one,
	})
}

var definitionCmd = &cobra.Command{
	Use:   "definition <file> <line> <col>",
	Short: "Find the definition of the symbol referenced at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("definition", err)
	}
	defer s.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("definition", err)
	}
	line, err := parseIntArg(args[1], "line")
	if err != nil {
		return outputError("definition", err)
	}
	col, err := parseIntArg(args[2], "col")
	if err != nil {
		return outputError("definition", err)
	}

	qb := tethys.NewQueryBuilder(s)
	locs, err := qb.DefinitionAt(file, line, col)
	if err != nil {
		return outputError("definition", err)
	}

	cliLocs := make([]CLILocation, len(locs))
	for i, loc := range locs {
		var symID *tethys.SymbolID
		if sym, err := qb.SymbolAt(loc.File, loc.StartLine, loc.StartCol); err == nil && sym != nil {
			symID = &sym.ID
		}
		cliLocs[i] = locationToCLI(loc, symID)
	}

	count := len(cliLocs)
	return outputResult(CLIResult{Command: "definition", Results: cliLocs, TotalCount: &count})
}

// --- Symbol-ID-or-position commands ---

var referencesCmd = &cobra.Command{
	Use:   "references [<file> <line> <col>]",
	Short: "Find all references to a symbol",
	Long:  "Accepts either <file> <line> <col> positional args or --symbol <id>.",
	Args:  cobra.MaximumNArgs(3),
	RunE:  runReferences,
}

func init() {
	referencesCmd.Flags().Int64("symbol", 0, "symbol ID to query")
}

func runReferences(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("references", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	symID, err := resolveSymbolID(cmd, args, qb)
	if err != nil {
		return outputError("references", err)
	}

	locs, err := qb.ReferencesTo(symID)
	if err != nil {
		return outputError("references", err)
	}

	cliLocs := make([]CLILocation, len(locs))
	for i, loc := range locs {
		cliLocs[i] = locationToCLI(loc, &symID)
	}

	count := len(cliLocs)
	return outputResult(CLIResult{Command: "references", Results: cliLocs, TotalCount: &count})
}

var callersCmd = &cobra.Command{
	Use:   "callers [<file> <line> <col>]",
	Short: "Find direct callers of a function",
	Long:  "Accepts either <file> <line> <col> positional args or --symbol <id>.",
	Args:  cobra.MaximumNArgs(3),
	RunE:  runCallers,
}

func init() {
	callersCmd.Flags().Int64("symbol", 0, "symbol ID to query")
}

func runCallers(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("callers", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	symID, err := resolveSymbolID(cmd, args, qb)
	if err != nil {
		return outputError("callers", err)
	}

	edges, err := qb.Callers(symID)
	if err != nil {
		return outputError("callers", err)
	}

	cliEdges := make([]CLICallEdge, len(edges))
	for i, e := range edges {
		cliEdges[i] = CLICallEdge{
			CallerID:   int64(e.CallerSymbolID),
			CallerName: lookupSymbolName(s, e.CallerSymbolID),
			CalleeID:   int64(e.CalleeSymbolID),
			CalleeName: lookupSymbolName(s, e.CalleeSymbolID),
			CallCount:  e.CallCount,
		}
	}

	count := len(cliEdges)
	return outputResult(CLIResult{Command: "callers", Results: cliEdges, TotalCount: &count})
}

var calleesCmd = &cobra.Command{
	Use:   "callees [<file> <line> <col>]",
	Short: "Find functions called directly by a function",
	Long:  "Accepts either <file> <line> <col> positional args or --symbol <id>.",
	Args:  cobra.MaximumNArgs(3),
	RunE:  runCallees,
}

func init() {
	calleesCmd.Flags().Int64("symbol", 0, "symbol ID to query")
}

func runCallees(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("callees", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	symID, err := resolveSymbolID(cmd, args, qb)
	if err != nil {
		return outputError("callees", err)
	}

	edges, err := qb.Callees(symID)
	if err != nil {
		return outputError("callees", err)
	}

	cliEdges := make([]CLICallEdge, len(edges))
	for i, e := range edges {
		cliEdges[i] = CLICallEdge{
			CallerID:   int64(e.CallerSymbolID),
			CallerName: lookupSymbolName(s, e.CallerSymbolID),
			CalleeID:   int64(e.CalleeSymbolID),
			CalleeName: lookupSymbolName(s, e.CalleeSymbolID),
			CallCount:  e.CallCount,
		}
	}

	count := len(cliEdges)
	return outputResult(CLIResult{Command: "callees", Results: cliEdges, TotalCount: &count})
}

var transitiveCallersCmd = &cobra.Command{
	Use:     "transitive-callers [<file> <line> <col>]",
	Aliases: []string{"impact"},
	Short:   "Find every symbol that can transitively reach a function through calls (impact analysis)",
	Long:    "Nodes report their depth, so depth 1 is the direct-caller set and depth >= 2 is the transitive set.",
	Args:    cobra.MaximumNArgs(3),
	RunE:    runTransitiveCallGraph(true),
}

var transitiveCalleesCmd = &cobra.Command{
	Use:   "transitive-callees [<file> <line> <col>]",
	Short: "Find every symbol transitively reachable from a function through calls",
	Args:  cobra.MaximumNArgs(3),
	RunE:  runTransitiveCallGraph(false),
}

var flagMaxDepth int

func init() {
	for _, c := range []*cobra.Command{transitiveCallersCmd, transitiveCalleesCmd} {
		c.Flags().Int64("symbol", 0, "symbol ID to query")
		c.Flags().IntVar(&flagMaxDepth, "max-depth", 10, "maximum call-chain depth")
	}
}

func runTransitiveCallGraph(callers bool) func(cmd *cobra.Command, args []string) error {
	name := "transitive-callees"
	if callers {
		name = "transitive-callers"
	}
	return func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError(name, err)
		}
		defer s.Close()

		qb := tethys.NewQueryBuilder(s)
		symID, err := resolveSymbolID(cmd, args, qb)
		if err != nil {
			return outputError(name, err)
		}

		var graph *tethys.CallGraph
		if callers {
			graph, err = qb.TransitiveCallers(symID, flagMaxDepth)
		} else {
			graph, err = qb.TransitiveCallees(symID, flagMaxDepth)
		}
		if err != nil {
			return outputError(name, err)
		}
		if graph == nil {
			return outputResult(CLIResult{Command: name})
		}

		cliGraph := CLICallGraph{Root: int64(graph.Root), MaxDepth: graph.Depth}
		for _, n := range graph.Nodes {
			cliGraph.Nodes = append(cliGraph.Nodes, CLICallGraphNode{
				Symbol: symbolToCLI(n.Symbol, lookupFilePath(s, n.Symbol.FileID)),
				Depth:  n.Depth,
			})
		}
		for _, e := range graph.Edges {
			cliGraph.Edges = append(cliGraph.Edges, CLICallGraphEdge{
				CallerID: int64(e.CallerID), CalleeID: int64(e.CalleeID), CallCount: e.CallCount,
			})
		}

		count := len(cliGraph.Nodes)
		return outputResult(CLIResult{Command: name, Results: cliGraph, TotalCount: &count})
	}
}

var shortestPathCmd = &cobra.Command{
	Use:     "shortest-path <from-symbol> <to-symbol>",
	Aliases: []string{"path"},
	Short:   "Find the shortest call chain between two symbols",
	Args:    cobra.ExactArgs(2),
	RunE:    runShortestPath,
}

// flagPathMaxDepth backs --max-depth for the two path commands; sharing
// flagMaxDepth would let the later IntVar registrations reset its default.
var flagPathMaxDepth int

func init() {
	shortestPathCmd.Flags().IntVar(&flagPathMaxDepth, "max-depth", 20, "maximum call-chain depth")
}

func runShortestPath(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("shortest-path", err)
	}
	defer s.Close()

	from, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return outputError("shortest-path", fmt.Errorf("invalid from-symbol %q", args[0]))
	}
	to, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return outputError("shortest-path", fmt.Errorf("invalid to-symbol %q", args[1]))
	}

	qb := tethys.NewQueryBuilder(s)
	path, err := qb.ShortestCallPath(tethys.SymbolID(from), tethys.SymbolID(to), flagPathMaxDepth)
	if err != nil {
		return outputError("shortest-path", err)
	}
	if path == nil {
		return outputResult(CLIResult{Command: "shortest-path"})
	}

	cliPath := CLICallPath{Depth: path.Depth}
	for _, id := range path.Symbols {
		sym, err := s.SymbolByID(id)
		if err != nil {
			return outputError("shortest-path", err)
		}
		cliPath.Symbols = append(cliPath.Symbols, symbolToCLI(sym, lookupFilePath(s, sym.FileID)))
	}

	count := len(cliPath.Symbols)
	return outputResult(CLIResult{Command: "shortest-path", Results: cliPath, TotalCount: &count})
}

// --- File-level commands ---

var fileShortestPathCmd = &cobra.Command{
	Use:     "file-shortest-path <from-file> <to-file>",
	Aliases: []string{"file-path"},
	Short:   "Find the shortest file-dependency chain between two files",
	Args:    cobra.ExactArgs(2),
	RunE:    runFileShortestPath,
}

func init() {
	fileShortestPathCmd.Flags().IntVar(&flagPathMaxDepth, "max-depth", 20, "maximum dependency-chain depth")
}

func runFileShortestPath(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("file-shortest-path", err)
	}
	defer s.Close()

	fromPath, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("file-shortest-path", err)
	}
	toPath, err := resolveFilePath(args[1])
	if err != nil {
		return outputError("file-shortest-path", err)
	}

	fromFile, err := s.FileByPath(fromPath)
	if err != nil {
		return outputError("file-shortest-path", err)
	}
	if fromFile == nil {
		return outputError("file-shortest-path", fmt.Errorf("file not indexed: %s", fromPath))
	}
	toFile, err := s.FileByPath(toPath)
	if err != nil {
		return outputError("file-shortest-path", err)
	}
	if toFile == nil {
		return outputError("file-shortest-path", fmt.Errorf("file not indexed: %s", toPath))
	}

	qb := tethys.NewQueryBuilder(s)
	path, err := qb.ShortestFilePath(fromFile.ID, toFile.ID, flagPathMaxDepth)
	if err != nil {
		return outputError("file-shortest-path", err)
	}
	if path == nil {
		return outputResult(CLIResult{Command: "file-shortest-path"})
	}

	cliPath := CLIFilePath{Depth: path.Depth}
	for _, id := range path.Files {
		cliPath.Files = append(cliPath.Files, lookupFilePath(s, id))
	}

	count := len(cliPath.Files)
	return outputResult(CLIResult{Command: "file-shortest-path", Results: cliPath, TotalCount: &count})
}

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "List a file's direct imports",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeps,
}

func runDeps(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("deps", err)
	}
	defer s.Close()

	file, err := resolveFilePath(args[0])
	if err != nil {
		return outputError("deps", err)
	}
	f, err := s.FileByPath(file)
	if err != nil {
		return outputError("deps", err)
	}
	if f == nil {
		return outputError("deps", fmt.Errorf("file not indexed: %s", file))
	}

	qb := tethys.NewQueryBuilder(s)
	imports, err := qb.Dependencies(f.ID)
	if err != nil {
		return outputError("deps", err)
	}

	cliImports := make([]CLIImport, len(imports))
	for i, imp := range imports {
		cliImports[i] = CLIImport{
			FileID: int64(imp.FileID), FilePath: file, Source: imp.Source,
			ImportedName: imp.ImportedName, Alias: imp.Alias, Line: imp.Line,
		}
	}

	count := len(cliImports)
	return outputResult(CLIResult{Command: "deps", Results: cliImports, TotalCount: &count})
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <source>",
	Short: "Find every file that imports the given module/namespace source",
	Args:  cobra.ExactArgs(1),
	RunE:  runDependents,
}

func runDependents(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("dependents", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	imports, err := qb.Dependents(args[0])
	if err != nil {
		return outputError("dependents", err)
	}

	cliImports := make([]CLIImport, len(imports))
	for i, imp := range imports {
		cliImports[i] = CLIImport{
			FileID: int64(imp.FileID), FilePath: lookupFilePath(s, imp.FileID), Source: imp.Source,
			ImportedName: imp.ImportedName, Alias: imp.Alias, Line: imp.Line,
		}
	}

	count := len(cliImports)
	return outputResult(CLIResult{Command: "dependents", Results: cliImports, TotalCount: &count})
}

var transitiveDepsCmd = &cobra.Command{
	Use:   "transitive-deps <file>",
	Short: "Find every file transitively imported by a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransitiveFileGraph(true),
}

var transitiveDependentsCmd = &cobra.Command{
	Use:   "transitive-dependents <file>",
	Short: "Find every file that transitively depends on a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTransitiveFileGraph(false),
}

func init() {
	for _, c := range []*cobra.Command{transitiveDepsCmd, transitiveDependentsCmd} {
		c.Flags().IntVar(&flagMaxDepth, "max-depth", 10, "maximum dependency-chain depth")
	}
}

func runTransitiveFileGraph(forward bool) func(cmd *cobra.Command, args []string) error {
	name := "transitive-dependents"
	if forward {
		name = "transitive-deps"
	}
	return func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return outputError(name, err)
		}
		defer s.Close()

		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError(name, err)
		}
		f, err := s.FileByPath(file)
		if err != nil {
			return outputError(name, err)
		}
		if f == nil {
			return outputError(name, fmt.Errorf("file not indexed: %s", file))
		}

		qb := tethys.NewQueryBuilder(s)
		var graph *tethys.FileGraph
		if forward {
			graph, err = qb.TransitiveDependencies(f.ID, flagMaxDepth)
		} else {
			graph, err = qb.TransitiveDependents(f.ID, flagMaxDepth)
		}
		if err != nil {
			return outputError(name, err)
		}
		if graph == nil {
			return outputResult(CLIResult{Command: name})
		}

		cliGraph := CLIFileGraph{Root: int64(graph.Root), MaxDepth: graph.Depth}
		for _, n := range graph.Nodes {
			cliGraph.Nodes = append(cliGraph.Nodes, CLIFileGraphNode{Path: n.File.Path, Depth: n.Depth})
		}

		count := len(cliGraph.Nodes)
		return outputResult(CLIResult{Command: name, Results: cliGraph, TotalCount: &count})
	}
}

var cyclesCmd = &cobra.Command{
	Use:   "cycles [file]",
	Short: "Find circular file dependencies, optionally filtered to those involving a file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCycles,
}

func runCycles(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("cycles", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	var cycles []tethys.Cycle
	if len(args) == 1 {
		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("cycles", err)
		}
		f, err := s.FileByPath(file)
		if err != nil {
			return outputError("cycles", err)
		}
		if f == nil {
			return outputError("cycles", fmt.Errorf("file not indexed: %s", file))
		}
		cycles, err = qb.CyclesInvolving(f.ID)
		if err != nil {
			return outputError("cycles", err)
		}
	} else {
		cycles, err = qb.DependencyCycles()
		if err != nil {
			return outputError("cycles", err)
		}
	}

	cliCycles := make([]CLICycle, len(cycles))
	for i, c := range cycles {
		files := make([]string, len(c.Files))
		for j, id := range c.Files {
			files[j] = lookupFilePath(s, id)
		}
		cliCycles[i] = CLICycle{Files: files}
	}

	count := len(cliCycles)
	return outputResult(CLIResult{Command: "cycles", Results: cliCycles, TotalCount: &count})
}

// --- Repository-wide commands ---

var flagSearchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search symbols by name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchLimit, "limit", 50, "maximum number of results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("search", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	syms, err := qb.SearchSymbols(args[0], flagSearchLimit)
	if err != nil {
		return outputError("search", err)
	}

	cliSyms := make([]CLISymbol, len(syms))
	for i, sym := range syms {
		cliSyms[i] = symbolToCLI(sym, lookupFilePath(s, sym.FileID))
	}

	count := len(cliSyms)
	return outputResult(CLIResult{Command: "search", Results: cliSyms, TotalCount: &count})
}

var unusedCmd = &cobra.Command{
	Use:   "unused",
	Short: "Find symbols with no resolved references",
	Args:  cobra.NoArgs,
	RunE:  runUnused,
}

func runUnused(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("unused", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	syms, err := qb.UnusedSymbols()
	if err != nil {
		return outputError("unused", err)
	}

	cliSyms := make([]CLISymbol, len(syms))
	for i, sym := range syms {
		cliSyms[i] = symbolToCLI(sym, lookupFilePath(s, sym.FileID))
	}

	count := len(cliSyms)
	return outputResult(CLIResult{Command: "unused", Results: cliSyms, TotalCount: &count})
}

var flagTopN int

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Find the most-referenced symbols",
	Args:  cobra.NoArgs,
	RunE:  runHotspots,
}

func init() {
	hotspotsCmd.Flags().IntVar(&flagTopN, "top", 20, "number of symbols to return")
}

func runHotspots(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("hotspots", err)
	}
	defer s.Close()

	qb := tethys.NewQueryBuilder(s)
	hotspots, err := qb.Hotspots(flagTopN)
	if err != nil {
		return outputError("hotspots", err)
	}

	cliHotspots := make([]CLIHotspot, len(hotspots))
	for i, h := range hotspots {
		cliHotspots[i] = CLIHotspot{
			Symbol:      symbolToCLI(h.Symbol, h.FilePath),
			RefCount:    h.RefCount,
			CallerCount: h.CallerCount,
			CalleeCount: h.CalleeCount,
		}
	}

	count := len(cliHotspots)
	return outputResult(CLIResult{Command: "hotspots", Results: cliHotspots, TotalCount: &count})
}

var flagPanicFile string

var panicPointsCmd = &cobra.Command{
	Use:     "panic-points",
	Aliases: []string{"panics"},
	Short:   "Find unwrap()/expect() calls in Rust code",
	Args:    cobra.NoArgs,
	RunE:    runPanicPoints,
}

func init() {
	panicPointsCmd.Flags().StringVar(&flagPanicFile, "file", "", "restrict to one file")
}

func runPanicPoints(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return outputError("panic-points", err)
	}
	defer s.Close()

	filePath := flagPanicFile
	if filePath != "" {
		filePath, err = resolveFilePath(filePath)
		if err != nil {
			return outputError("panic-points", err)
		}
	}

	qb := tethys.NewQueryBuilder(s)
	points, err := qb.PanicPoints(filePath)
	if err != nil {
		return outputError("panic-points", err)
	}

	cliPoints := make([]CLIPanicPoint, len(points))
	for i, p := range points {
		cliPoints[i] = CLIPanicPoint{
			Location: locationToCLI(p.Location, nil),
			Method:   p.Method,
			IsTest:   p.IsTest,
		}
	}

	count := len(cliPoints)
	return outputResult(CLIResult{Command: "panic-points", Results: cliPoints, TotalCount: &count})
}
