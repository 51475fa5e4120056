package namespace

import (
	"fmt"
	"sort"
	"strings"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/matcher"
)

func canonicalKeywordKey(name string) string {
	return matcher.NewKeywordMatcher(name).Key()
}

// findResult is find_keyword's memoized value: the resolved doc (if
// any) plus the diagnostics produced while looking for it.
type findResult struct {
	doc         *entities.KeywordDoc
	diagnostics []lsp.Diagnostic
}

// Finder implements spec §4.5's keyword finder: it is constructed once
// per initialized Namespace and memoizes every (name -> result) pair it
// computes.
type Finder struct {
	ns    *Namespace
	cache map[string]findResult
}

// GetFinder returns (and lazily builds) the namespace's Finder. The
// namespace must already be initialized.
func (n *Namespace) GetFinder() *Finder {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.finder == nil {
		n.finder = &Finder{ns: n, cache: map[string]findResult{}}
	}
	return n.finder
}

// FindKeyword resolves name against the namespace per spec §4.5's
// ordering, memoizing the result.
func (f *Finder) FindKeyword(name string) (*entities.KeywordDoc, []lsp.Diagnostic) {
	if r, ok := f.cache[name]; ok {
		return r.doc, r.diagnostics
	}
	doc, diags := f.resolve(name, 0)
	f.cache[name] = findResult{doc: doc, diagnostics: diags}
	return doc, diags
}

const maxBDDRecursion = 5

func (f *Finder) resolve(name string, bddDepth int) (*entities.KeywordDoc, []lsp.Diagnostic) {
	if strings.TrimSpace(name) == "" {
		return nil, []lsp.Diagnostic{{Severity: lsp.Error, Code: "KeywordError", Source: entities.DiagnosticsSource,
			Message: "Keyword name cannot be empty."}}
	}

	// Step 2: self.
	for _, kw := range f.ns.model.Keywords {
		if matcher.EqKeyword(kw.Name, name) {
			doc := entities.KeywordDoc{Name: kw.Name, Range: kw.Range, Source: f.ns.source, LibraryName: f.ns.source}
			return &doc, nil
		}
	}

	// Step 3: explicit owner.kw, scanning '.' positions left-to-right.
	if strings.Contains(name, ".") {
		if doc, diags, handled := f.resolveExplicit(name); handled {
			return doc, diags
		}
	}

	// Step 4: implicit resource.
	if doc, diags, handled := f.resolveImplicit(f.ns.resources.values(), name); handled {
		return doc, diags
	}

	// Step 5: implicit library (with stdlib-vs-custom tiebreak).
	if doc, diags, handled := f.resolveImplicitLibrary(name); handled {
		return doc, diags
	}

	// Step 6: BDD prefix.
	if bddDepth < maxBDDRecursion {
		lower := strings.ToLower(name)
		for _, prefix := range entities.BDDPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return f.resolve(name[len(prefix):], bddDepth+1)
			}
		}
	}

	return nil, []lsp.Diagnostic{{Severity: lsp.Error, Code: "KeywordError", Source: entities.DiagnosticsSource,
		Message: fmt.Sprintf("No keyword with name '%s' found.", name)}}
}

func (f *Finder) resolveExplicit(name string) (*entities.KeywordDoc, []lsp.Diagnostic, bool) {
	var matches []string
	var found *entities.KeywordDoc

	dotPositions := allIndexes(name, ".")
	for _, pos := range dotPositions {
		owner, kw := name[:pos], name[pos+1:]
		if kw == "" {
			continue
		}
		for _, e := range append(append([]*entities.LibraryEntry{}, f.ns.libraries.values()...), f.ns.resources.values()...) {
			if !matcher.EqKeyword(e.Key(), owner) {
				continue
			}
			if e.LibraryDoc == nil {
				continue
			}
			if doc, ok := e.LibraryDoc.Keywords.Get(kw); ok {
				matches = append(matches, fmt.Sprintf("%s.%s", e.Key(), doc.Name))
				d := doc
				d.LibraryName = e.Key()
				found = &d
			}
		}
	}
	if len(matches) == 0 {
		return nil, nil, false
	}
	if len(matches) == 1 {
		return found, nil, true
	}
	sort.Strings(matches)
	return nil, []lsp.Diagnostic{{Severity: lsp.Error, Code: "KeywordError", Source: entities.DiagnosticsSource,
		Message: fmt.Sprintf("Multiple keywords with name '%s' found: %s", name, strings.Join(quoteAll(matches), ", "))}}, true
}

func (f *Finder) resolveImplicit(entries []*entities.LibraryEntry, name string) (*entities.KeywordDoc, []lsp.Diagnostic, bool) {
	var owners []string
	var docs []entities.KeywordDoc
	for _, e := range entries {
		if e.LibraryDoc == nil {
			continue
		}
		if doc, ok := e.LibraryDoc.Keywords.Get(name); ok {
			d := doc
			d.LibraryName = e.Key()
			owners = append(owners, e.Key())
			docs = append(docs, d)
		}
	}
	if len(owners) == 0 {
		return nil, nil, false
	}
	if len(owners) == 1 {
		return &docs[0], nil, true
	}
	if idx, ok := tieBreakBySearchOrder(owners, f.ns.searchOrder); ok {
		return &docs[idx], nil, true
	}
	sorted := make([]string, len(owners))
	for i, o := range owners {
		sorted[i] = fmt.Sprintf("%s.%s", o, docs[i].Name)
	}
	sort.Strings(sorted)
	return nil, []lsp.Diagnostic{{Severity: lsp.Error, Code: "KeywordError", Source: entities.DiagnosticsSource,
		Message: fmt.Sprintf("Multiple keywords with name '%s' found: %s", name, strings.Join(quoteAll(sorted), ", "))}}, true
}

func (f *Finder) resolveImplicitLibrary(name string) (*entities.KeywordDoc, []lsp.Diagnostic, bool) {
	libs := f.ns.libraries.values()
	var owners []string
	var docs []entities.KeywordDoc
	for _, e := range libs {
		if e.LibraryDoc == nil {
			continue
		}
		if doc, ok := e.LibraryDoc.Keywords.Get(name); ok {
			d := doc
			d.LibraryName = e.Key()
			owners = append(owners, e.Key())
			docs = append(docs, d)
		}
	}
	if len(owners) == 0 {
		return nil, nil, false
	}
	if len(owners) == 1 {
		return &docs[0], nil, true
	}
	if idx, ok := tieBreakBySearchOrder(owners, f.ns.searchOrder); ok {
		return &docs[idx], nil, true
	}
	if len(owners) == 2 {
		std0, std1 := entities.StdlibsWithoutRemote[owners[0]], entities.StdlibsWithoutRemote[owners[1]]
		if std0 != std1 {
			customIdx, stdIdx := 0, 1
			if std0 {
				customIdx, stdIdx = 1, 0
			}
			diag := lsp.Diagnostic{Severity: lsp.Warning, Code: "KeywordError", Source: entities.DiagnosticsSource,
				Message: fmt.Sprintf("Keyword '%s' found both from a custom test library '%s' and a standard library '%s'. The custom keyword is used.",
					name, owners[customIdx], owners[stdIdx])}
			return &docs[customIdx], []lsp.Diagnostic{diag}, true
		}
	}
	sorted := make([]string, len(owners))
	for i, o := range owners {
		sorted[i] = fmt.Sprintf("%s.%s", o, docs[i].Name)
	}
	sort.Strings(sorted)
	return nil, []lsp.Diagnostic{{Severity: lsp.Error, Code: "KeywordError", Source: entities.DiagnosticsSource,
		Message: fmt.Sprintf("Multiple keywords with name '%s' found: %s", name, strings.Join(quoteAll(sorted), ", "))}}, true
}

// tieBreakBySearchOrder returns the index of the first owner (in
// owners) that appears in searchOrder, scanning searchOrder in its
// configured priority order (spec §4.5 "Ordering within steps 4-5
// respects ... search_order").
func tieBreakBySearchOrder(owners, searchOrder []string) (int, bool) {
	for _, wanted := range searchOrder {
		for i, owner := range owners {
			if matcher.EqKeyword(owner, wanted) {
				return i, true
			}
		}
	}
	return 0, false
}

func allIndexes(s, sep string) []int {
	var out []int
	start := 0
	for {
		idx := strings.Index(s[start:], sep)
		if idx < 0 {
			return out
		}
		out = append(out, start+idx)
		start += idx + 1
	}
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("'%s'", s)
	}
	return out
}
