package namespace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	lsp "github.com/sourcegraph/go-lsp"
	"golang.org/x/sync/errgroup"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/imports"
)

// fetchedImport is the I/O-bound half of single-import resolution (spec
// §4.4.1): it holds whatever GetLibDoc/FindFile produced for one Import,
// plus — for resources — the same result recursively computed for its
// own nested imports. Top-level imports are fetched concurrently, one
// task each; a resource's nested imports are fetched sequentially inside
// that resource's task. Deciding whether to *insert* each node and
// what diagnostics to emit is deferred to commitImport, which runs
// sequentially afterwards so the duplicate/ordering rules in §4.4.1 can
// be checked against a single, consistent view of the maps.
type fetchedImport struct {
	imp        entities.Import
	err        error
	path       string
	doc        *entities.LibraryDoc
	selfImport bool
	nested     []fetchedImport
}

// fetchAll resolves every top-level Import concurrently, preserving
// slice order so the caller can commit in source order (spec §4.4 step
// 4 and P6).
func fetchAll(ctx context.Context, mgr *imports.Manager, ownerPath string, imps []entities.Import, sentinel string) ([]fetchedImport, error) {
	out := make([]fetchedImport, len(imps))
	g, gctx := errgroup.WithContext(ctx)
	for i, imp := range imps {
		i, imp := i, imp
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = fetchOne(gctx, mgr, ownerPath, imp, sentinel, map[string]bool{ownerPath: true})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func fetchOne(ctx context.Context, mgr *imports.Manager, ownerPath string, imp entities.Import, sentinel string, visiting map[string]bool) fetchedImport {
	fi := fetchedImport{imp: imp}
	baseDir := filepath.Dir(ownerPath)

	switch imp.Kind {
	case entities.ImportLibrary:
		if imp.Name == "" {
			fi.err = fmt.Errorf("Library setting requires value.")
			return fi
		}
		fi.doc = mgr.GetLibDocForLibraryImport(imp, baseDir, sentinel)

	case entities.ImportResource:
		if imp.Name == "" {
			fi.err = fmt.Errorf("Resource setting requires value.")
			return fi
		}
		doc, path, err := mgr.GetLibDocForResourceImport(imp, baseDir, sentinel)
		if err != nil {
			fi.err = err
			return fi
		}
		fi.path = path
		fi.doc = doc
		if path == ownerPath {
			fi.selfImport = true
			return fi
		}
		if visiting[path] {
			return fi
		}
		nestedImps, err := mgr.ResourceImports(path)
		if err != nil || len(nestedImps) == 0 {
			return fi
		}
		next := make(map[string]bool, len(visiting)+1)
		for k := range visiting {
			next[k] = true
		}
		next[path] = true
		fi.nested = make([]fetchedImport, len(nestedImps))
		for i, ni := range nestedImps {
			if err := ctx.Err(); err != nil {
				fi.nested[i] = fetchedImport{imp: ni, err: err}
				continue
			}
			fi.nested[i] = fetchOne(ctx, mgr, path, ni, sentinel, next)
		}

	case entities.ImportVariables:
		if imp.Name == "" {
			fi.err = fmt.Errorf("Variables setting requires value.")
			return fi
		}
		doc, path, err := mgr.GetLibDocForVariablesImport(imp, baseDir, sentinel)
		if err != nil {
			fi.err = err
			return fi
		}
		fi.path = path
		fi.doc = doc
	}
	return fi
}

// commitImport applies §4.4.1's table against the shared, ordered
// entry maps. It must be called sequentially (never concurrently) since
// the duplicate-detection rules read and mutate the same maps.
func commitImport(libraries, resources, variables *entryMap, fi fetchedImport, topLevel bool) []lsp.Diagnostic {
	switch fi.imp.Kind {
	case entities.ImportLibrary:
		return commitLibrary(libraries, fi, topLevel)
	case entities.ImportResource:
		return commitResource(libraries, resources, variables, fi, topLevel)
	case entities.ImportVariables:
		return commitVariables(variables, fi, topLevel)
	default:
		return nil
	}
}

func commitLibrary(libraries *entryMap, fi fetchedImport, topLevel bool) []lsp.Diagnostic {
	imp := fi.imp
	if fi.err != nil {
		if topLevel {
			return []lsp.Diagnostic{diagAt(imp.Range, lsp.Error, errTypeName(fi.err), fi.err.Error())}
		}
		return nil
	}
	if topLevel && imp.Alias == "" && strings.EqualFold(imp.Name, entities.BuiltinLibraryName) {
		return []lsp.Diagnostic{diagAt(imp.Range, lsp.Information, "Override",
			fmt.Sprintf("Library %q overrides built-in library, import ignored.", imp.Name))}
	}

	key := (&entities.LibraryEntry{Name: imp.Name, ImportName: imp.Name, Alias: imp.Alias}).Key()
	if existing, ok := libraries.get(key); ok && sameImportSpec(existing, imp) {
		if topLevel {
			return []lsp.Diagnostic{relatedDiag(imp.Range, lsp.Information, "DuplicateLibrary",
				fmt.Sprintf("Library %q already imported.", existing.String()), existing.ImportSource, existing.ImportRange)}
		}
		return nil
	}

	var diags []lsp.Diagnostic
	switch {
	case fi.doc != nil && len(fi.doc.Errors) > 0:
		diags = append(diags, errorsToDiagnostics(imp, fi.doc.Errors)...)
	case fi.doc != nil && fi.doc.Keywords.Len() == 0 && !fi.doc.HasListener:
		diags = append(diags, diagAt(imp.Range, lsp.Warning, "EmptyLibrary",
			fmt.Sprintf("Imported library %q contains no keywords.", imp.Name)))
	}

	libraries.set(key, &entities.LibraryEntry{
		Kind: entities.EntryLibrary, Name: imp.Name, ImportName: imp.Name, Alias: imp.Alias, Args: imp.Args,
		LibraryDoc: fi.doc, ImportRange: imp.Range, ImportSource: imp.Source,
	})
	return diags
}

func commitResource(libraries, resources, variables *entryMap, fi fetchedImport, topLevel bool) []lsp.Diagnostic {
	imp := fi.imp
	if fi.err != nil {
		if topLevel {
			return []lsp.Diagnostic{diagAt(imp.Range, lsp.Error, errTypeName(fi.err), fi.err.Error())}
		}
		return nil
	}
	if fi.selfImport {
		if topLevel {
			return []lsp.Diagnostic{diagAt(imp.Range, lsp.Information, "RecursiveImport", "Recursive resource import.")}
		}
		return nil
	}
	if existing, ok := resources.byPath(fi.path); ok {
		if topLevel {
			return []lsp.Diagnostic{relatedDiag(imp.Range, lsp.Information, "DuplicateResource",
				fmt.Sprintf("Resource %q already imported.", existing.String()), existing.ImportSource, existing.ImportRange)}
		}
		return nil
	}

	entry := &entities.LibraryEntry{
		Kind: entities.EntryResource, Name: imp.Name, ImportName: imp.Name,
		LibraryDoc: fi.doc, ImportRange: imp.Range, ImportSource: imp.Source,
	}
	resources.set(entry.Key(), entry)

	var diags []lsp.Diagnostic
	switch {
	case fi.doc != nil && len(fi.doc.Errors) > 0:
		diags = append(diags, errorsToDiagnostics(imp, fi.doc.Errors)...)
	case fi.doc != nil && isEmptyResourceDoc(fi.doc) && len(fi.nested) == 0:
		diags = append(diags, diagAt(imp.Range, lsp.Warning, "EmptyResource",
			fmt.Sprintf("Imported resource file %q is empty.", imp.Name)))
	}

	for _, child := range fi.nested {
		diags = append(diags, commitImport(libraries, resources, variables, child, false)...)
	}
	return diags
}

func commitVariables(variables *entryMap, fi fetchedImport, topLevel bool) []lsp.Diagnostic {
	imp := fi.imp
	if fi.err != nil {
		if topLevel {
			return []lsp.Diagnostic{diagAt(imp.Range, lsp.Error, errTypeName(fi.err), fi.err.Error())}
		}
		return nil
	}

	key := variablesKey(fi.path, imp.Args, imp.Alias)
	if existing, ok := variables.get(key); ok {
		if topLevel {
			return []lsp.Diagnostic{relatedDiag(imp.Range, lsp.Information, "DuplicateVariables",
				fmt.Sprintf("Variables %q already imported.", existing.String()), existing.ImportSource, existing.ImportRange)}
		}
		return nil
	}

	entry := &entities.LibraryEntry{
		Kind: entities.EntryVariables, Name: imp.Name, ImportName: imp.Name, Args: imp.Args,
		LibraryDoc: fi.doc, ImportRange: imp.Range, ImportSource: imp.Source,
	}
	variables.set(key, entry)

	if fi.doc != nil && len(fi.doc.Errors) > 0 {
		return errorsToDiagnostics(imp, fi.doc.Errors)
	}
	return nil
}

// variablesKey implements Design Notes (b): variables-file cache/dedup
// keys by (source, args, alias) — unlike resources, which key by source
// alone — since a variables file can legitimately be imported twice with
// different arguments.
func variablesKey(path string, args []string, alias string) string {
	return path + "\x00" + strings.Join(args, "\x01") + "\x00" + alias
}

func sameImportSpec(existing *entities.LibraryEntry, imp entities.Import) bool {
	return existing.Alias == imp.Alias && argsEqual(existing.Args, imp.Args)
}

func argsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func isEmptyResourceDoc(doc *entities.LibraryDoc) bool {
	return doc.Keywords.Len() == 0 && len(doc.Variables) == 0 && len(doc.Errors) == 0
}

func errTypeName(err error) string {
	return "DataError"
}

func diagAt(r lsp.Range, sev lsp.DiagnosticSeverity, code, msg string) lsp.Diagnostic {
	return lsp.Diagnostic{Range: r, Severity: sev, Code: code, Source: entities.DiagnosticsSource, Message: msg}
}

func relatedDiag(r lsp.Range, sev lsp.DiagnosticSeverity, code, msg, relatedSource string, relatedRange lsp.Range) lsp.Diagnostic {
	d := diagAt(r, sev, code, msg)
	d.RelatedInformation = []lsp.DiagnosticRelatedInformation{{
		Location: lsp.Location{URI: lsp.DocumentURI("file://" + relatedSource), Range: relatedRange},
		Message:  "first import here",
	}}
	return d
}

// errorsToDiagnostics implements §4.4.1's two error rows: sourced errors
// are grouped under one diagnostic with related-information per error;
// sourceless errors each get their own diagnostic.
func errorsToDiagnostics(imp entities.Import, errs []entities.LibraryError) []lsp.Diagnostic {
	var sourced, sourceless []entities.LibraryError
	for _, e := range errs {
		if e.Source != "" {
			sourced = append(sourced, e)
		} else {
			sourceless = append(sourceless, e)
		}
	}

	var out []lsp.Diagnostic
	if len(sourced) > 0 {
		d := diagAt(imp.Range, lsp.Error, "LibraryError", fmt.Sprintf("Importing %q failed.", imp.Name))
		for _, e := range sourced {
			d.RelatedInformation = append(d.RelatedInformation, lsp.DiagnosticRelatedInformation{
				Location: lsp.Location{URI: lsp.DocumentURI("file://" + e.Source), Range: lsp.Range{
					Start: lsp.Position{Line: e.Line - 1},
					End:   lsp.Position{Line: e.Line - 1},
				}},
				Message: e.Message,
			})
		}
		out = append(out, d)
	}
	for _, e := range sourceless {
		code := e.TypeName
		if code == "" {
			code = "DataError"
		}
		out = append(out, diagAt(imp.Range, lsp.Error, code, e.Message))
	}
	return out
}
