package tethys

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tethysdb/tethys/internal/extract"
	"github.com/tethysdb/tethys/internal/resolve"
	"github.com/tethysdb/tethys/internal/store"
)

// fileExtraction is one file's pure extraction output: Phase A/B work done
// by a pool worker, with nothing written to SQLite yet. Phase C (serial)
// assigns the file its real FileID and commits this batch.
type fileExtraction struct {
	path    string
	lang    string
	hash    string
	size    int64
	mtimeNS int64
	skip    bool // unchanged since last index; nothing else is populated
	err     error

	batch      *store.BatchedStore
	imports    []extract.Import
	references []extract.Reference
}

// IndexFiles runs Phases 1-2c on the given file paths: a worker pool reads,
// parses, and extracts each file (pure, no database writes), and a serial
// pass afterward upserts each file's row and commits its batch. Per-file
// failures are collected in the returned IndexReport rather than aborting
// the run; only a canceled context or an empty path list short-circuits
// before any work starts.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (*IndexReport, error) {
	report := &IndexReport{}
	if len(paths) == 0 {
		return report, nil
	}

	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}

	jobs := make(chan string)
	// In streaming mode the results channel holds at most one batch, so
	// finished extractions wait in the workers rather than piling up.
	resultsCap := len(paths)
	if e.streaming {
		resultsCap = e.batchSize
		if resultsCap <= 0 {
			resultsCap = defaultBatchSize
		}
	}
	results := make(chan *fileExtraction, resultsCap)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				if ctx.Err() != nil {
					results <- &fileExtraction{path: path, err: ctx.Err()}
					continue
				}
				results <- e.extractFile(path)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range paths {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	if e.streaming {
		e.drainStreaming(results, len(paths), report)
	} else {
		e.drainBatch(results, len(paths), report)
	}

	return report, nil
}

// drainBatch is Phase 2b's batch-mode implementation: collect every
// extracted file before committing any of them, so the write stage never
// interleaves with extraction. Memory is O(file count) for the run.
func (e *Engine) drainBatch(results <-chan *fileExtraction, total int, report *IndexReport) {
	extracted := make([]*fileExtraction, 0, total)
	processed := 0
	for fe := range results {
		processed++
		if fe.err != nil {
			report.Errors = append(report.Errors, FileError{Path: fe.path, Err: fe.err})
			e.logger.Warn("indexing file failed", "path", fe.path, "error", fe.err)
		} else if fe.skip {
			report.Skipped++
		} else {
			extracted = append(extracted, fe)
		}
		if e.progress != nil {
			e.progress(processed, total, "extract")
		}
	}

	for _, fe := range extracted {
		if err := e.commitFile(fe); err != nil {
			report.Errors = append(report.Errors, FileError{Path: fe.path, Err: err})
			e.logger.Warn("committing file failed", "path", fe.path, "error", err)
		} else {
			report.Indexed++
		}
	}
}

// drainStreaming is Phase 2b's streaming-mode implementation: a single
// writer accumulates up to the Engine's batch size worth of extracted files
// and drains (commits) them as soon as the threshold is reached, rather
// than waiting for every file to finish extraction first. This bounds
// buffered memory to O(batch size) regardless of workspace size. The
// channel close (all workers done) flushes whatever remains below the
// threshold.
func (e *Engine) drainStreaming(results <-chan *fileExtraction, total int, report *IndexReport) {
	batchSize := e.batchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	pending := make([]*fileExtraction, 0, batchSize)
	flush := func() {
		for _, fe := range pending {
			if err := e.commitFile(fe); err != nil {
				report.Errors = append(report.Errors, FileError{Path: fe.path, Err: err})
				e.logger.Warn("committing file failed", "path", fe.path, "error", err)
			} else {
				report.Indexed++
			}
		}
		pending = pending[:0]
	}

	processed := 0
	for fe := range results {
		processed++
		if fe.err != nil {
			report.Errors = append(report.Errors, FileError{Path: fe.path, Err: fe.err})
			e.logger.Warn("indexing file failed", "path", fe.path, "error", fe.err)
		} else if fe.skip {
			report.Skipped++
		} else {
			pending = append(pending, fe)
			if len(pending) >= batchSize {
				flush()
			}
		}
		if e.progress != nil {
			e.progress(processed, total, "extract")
		}
	}
	flush()
}

// extractFile is Phase A/B: read, hash, skip-if-unchanged, parse, and
// extract symbols/imports/references into a per-file BatchedStore. Pure
// with respect to other files — no shared mutable state besides read-only
// lookups against the already-committed store, so many of these can run
// concurrently.
func (e *Engine) extractFile(path string) *fileExtraction {
	fe := &fileExtraction{path: path}

	lang, ok := extract.LanguageForFile(path)
	if !ok {
		fe.err = fmt.Errorf("unsupported file extension")
		return fe
	}
	if !e.allowsLanguage(lang) {
		fe.skip = true
		return fe
	}
	fe.lang = lang

	info, err := os.Stat(path)
	if err != nil {
		fe.err = fmt.Errorf("stat: %w", err)
		return fe
	}
	if e.maxSize > 0 && info.Size() > e.maxSize {
		fe.skip = true
		return fe
	}
	content, err := os.ReadFile(path)
	if err != nil {
		fe.err = fmt.Errorf("read: %w", err)
		return fe
	}
	fe.size = info.Size()
	fe.mtimeNS = info.ModTime().UnixNano()
	fe.hash = store.ContentHash(content)

	if existing, err := e.store.FileByPath(path); err == nil && existing != nil && existing.Hash == fe.hash {
		fe.skip = true
		return fe
	}

	grammar, ok := extract.GrammarFor(lang)
	if !ok {
		fe.err = fmt.Errorf("no grammar for language %q", lang)
		return fe
	}
	extractor, _ := extract.ForLanguage(lang)

	parser := sitter.NewParser()
	parser.SetLanguage(grammar)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		fe.err = fmt.Errorf("parse: %w", err)
		return fe
	}

	symbols := extractor.ExtractSymbols(tree, content)
	imports := extractor.ExtractImports(tree, content)
	references := extractor.ExtractReferences(tree, content)
	fe.imports = imports
	fe.references = references

	modulePath := path
	if resolver, ok := resolve.ForLanguage(lang); ok {
		modulePath = resolver.ModulePathOf(path, e.roots)
	}

	batch := store.NewBatchedStore(e.store)
	nameToID := make(map[string]store.SymbolID, len(symbols))
	spanToID := make(map[extract.Span]store.SymbolID, len(symbols))

	for _, sym := range symbols {
		storeSym := &store.Symbol{
			Name:             sym.Name,
			ModulePath:       modulePath,
			QualifiedName:    sym.QualifiedName,
			Kind:             sym.Kind,
			StartLine:        sym.Span.StartLine,
			StartCol:         sym.Span.StartCol,
			EndLine:          sym.Span.EndLine,
			EndCol:           sym.Span.EndCol,
			Signature:        sym.Signature,
			SignatureDetails: toStoreSignatureDetails(sym.SignatureDetails),
			Visibility:       sym.Visibility,
			IsTest:           sym.IsTest,
			SignatureHash:    store.ComputeSignatureHash(sym.Name, sym.Kind, sym.Visibility, modulePath, sym.QualifiedName, sym.Signature),
		}
		id, _ := batch.InsertSymbol(storeSym)
		nameToID[sym.Name] = id
		spanToID[sym.Span] = id
	}

	// Second pass: parent links, now that every symbol in this file has an
	// id. batch.Symbols holds InsertSymbol's own copies, so indexing by
	// position (insertion order is preserved) is how we reach them.
	for i, sym := range symbols {
		if sym.ParentName == "" {
			continue
		}
		if pid, ok := nameToID[sym.ParentName]; ok {
			batch.Symbols[i].ParentSymbolID = &pid
		}
	}

	for _, ref := range references {
		storeRef := &store.Reference{
			Kind:      string(ref.Kind),
			StartLine: ref.Span.StartLine,
			StartCol:  ref.Span.StartCol,
			EndLine:   ref.Span.EndLine,
			EndCol:    ref.Span.EndCol,
		}
		if ref.ContainingSpan != nil {
			if id, ok := spanToID[*ref.ContainingSpan]; ok {
				storeRef.InSymbolID = &id
			}
		}
		// Qualified references (ref.Path non-empty) are always deferred to
		// Phase 4 even when they'd resolve same-file, so same-file/cross-file
		// resolution stays uniform; only bare names get the cheap same-file
		// lookup here.
		if len(ref.Path) == 0 {
			if id, ok := nameToID[ref.Name]; ok {
				storeRef.SymbolID = &id
			}
		}
		if storeRef.SymbolID == nil {
			name := qualifiedRefName(lang, ref)
			storeRef.ReferenceName = &name
		}
		batch.InsertReference(storeRef)
	}

	for _, imp := range imports {
		storeImp := &store.Import{
			ImportedName: imp.ImportedName,
			Source:       strings.Join(imp.Path, separatorFor(lang)),
			Line:         imp.Line,
		}
		if imp.Alias != "" {
			alias := imp.Alias
			storeImp.Alias = &alias
		}
		batch.InsertImport(storeImp)
	}

	fe.batch = batch
	return fe
}

// commitFile is Phase C for one file: unresolve/clear stale cross-file
// state pointing at the file's old symbols (if any), atomically swap in the
// new file row, commit the extraction batch now that a real FileID exists,
// and reseed the file's outgoing dependency edges.
func (e *Engine) commitFile(fe *fileExtraction) error {
	existing, err := e.store.FileByPath(fe.path)
	if err != nil {
		return fmt.Errorf("lookup existing file: %w", err)
	}
	if existing != nil {
		oldSymbols, err := e.store.SymbolsByFile(existing.ID)
		if err != nil {
			return fmt.Errorf("old symbols: %w", err)
		}
		oldIDs := make([]store.SymbolID, len(oldSymbols))
		for i, s := range oldSymbols {
			oldIDs[i] = s.ID
		}
		// refs.symbol_id has no ON DELETE CASCADE: another file's ref still
		// pointing at a symbol this re-index is about to drop would violate
		// the foreign key. Clearing it first reverts those refs to
		// unresolved so Phase 4 can re-match them against whatever replaces
		// the old symbol.
		if err := e.store.UnresolveReferencesTo(oldIDs); err != nil {
			return fmt.Errorf("unresolve stale references: %w", err)
		}
	}

	f := &store.File{
		Path:        fe.path,
		Language:    fe.lang,
		MTimeNS:     fe.mtimeNS,
		Size:        fe.size,
		Hash:        fe.hash,
		LastIndexed: time.Now(),
	}
	fileID, _, err := e.store.UpsertFile(f, nil)
	if err != nil {
		return fmt.Errorf("upsert file: %w", err)
	}

	if err := e.store.DeletePendingDepsFrom(fileID); err != nil {
		return fmt.Errorf("clear pending deps: %w", err)
	}
	if err := e.store.DeleteFileDepsFrom(fileID); err != nil {
		return fmt.Errorf("clear file deps: %w", err)
	}

	for i := range fe.batch.Symbols {
		fe.batch.Symbols[i].FileID = fileID
	}
	for i := range fe.batch.References {
		fe.batch.References[i].FileID = fileID
	}
	for i := range fe.batch.Imports {
		fe.batch.Imports[i].FileID = fileID
	}
	if err := e.store.CommitBatch(fe.batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	return e.seedFileDeps(fileID, fe)
}

// toStoreSignatureDetails converts an extractor's structured signature to
// its storage-layer equivalent. extract stays database-free, so the two
// FunctionSignature/Parameter types are kept distinct even though they
// mirror each other field for field.
func toStoreSignatureDetails(fs *extract.FunctionSignature) *store.FunctionSignature {
	if fs == nil {
		return nil
	}
	params := make([]store.Parameter, len(fs.Parameters))
	for i, p := range fs.Parameters {
		params[i] = store.Parameter{Name: p.Name, TypeAnnotation: p.TypeAnnotation}
	}
	return &store.FunctionSignature{
		Parameters: params,
		ReturnType: fs.ReturnType,
		IsAsync:    fs.IsAsync,
		IsUnsafe:   fs.IsUnsafe,
		IsConst:    fs.IsConst,
		Generics:   fs.Generics,
	}
}

// seedFileDeps is Phase 2c: for each surviving import (L2-live, or glob),
// resolve it to a file and record a file_deps edge if the target is already
// indexed, or a pending_deps entry for Phase 3 to retry otherwise.
func (e *Engine) seedFileDeps(fileID store.FileID, fe *fileExtraction) error {
	resolver, ok := resolve.ForLanguage(fe.lang)
	if !ok {
		return nil
	}
	live := referencedNames(fe.references)

	for _, imp := range fe.imports {
		if !imp.IsGlob && !live[localImportName(imp)] {
			continue
		}
		segs := moduleSegmentsFor(fe.lang, imp)
		for _, target := range resolver.ResolveImport(fe.path, segs, e.roots) {
			targetFile, err := e.store.FileByPath(target)
			if err != nil {
				return fmt.Errorf("lookup dependency target %s: %w", target, err)
			}
			if targetFile != nil {
				if err := e.store.UpsertFileDep(fileID, targetFile.ID); err != nil {
					return err
				}
				continue
			}
			if _, err := e.store.InsertPendingDep(fileID, target); err != nil {
				return err
			}
		}
	}
	return nil
}
