// Package entities holds the value types shared across the semantic
// analysis engine: tokens, imports, variable and keyword documentation.
// They carry no behavior beyond what's needed to key caches and build
// diagnostics; see internal/robot/matcher for equality.
package entities

import (
	lsp "github.com/sourcegraph/go-lsp"

	"github.com/d-biehl/robotcode/internal/robot/matcher"
)

// TokenType enumerates the kinds of token the assumed parser produces.
// Only the subset the analyzer and visitors need to recognize is named;
// everything else round-trips as TokenOther.
type TokenType int

const (
	TokenOther TokenType = iota
	TokenSetting
	TokenName
	TokenArgument
	TokenVariable
	TokenAssign
	TokenKeyword
	TokenError
)

// Token mirrors the parser's token shape: a half-open range plus the
// literal text, and an optional lexer-reported error message.
type Token struct {
	Type      TokenType
	Value     string
	Line      int // 1-based, matching the underlying parser's convention
	Column    int // 0-based
	EndColumn int
	Error     string
}

// Range converts a Token's position into an LSP half-open range.
func (t Token) Range() lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: t.Line - 1, Character: t.Column},
		End:   lsp.Position{Line: t.Line - 1, Character: t.EndColumn},
	}
}

// ImportKind discriminates the three Import variants.
type ImportKind int

const (
	ImportLibrary ImportKind = iota
	ImportResource
	ImportVariables
)

// Import is the sum of LibraryImport/ResourceImport/VariablesImport: a
// setting-section statement that names something to pull into the
// namespace. Kind selects which fields are meaningful: Args is only set
// for Library and Variables imports; Alias only for Library.
type Import struct {
	Kind   ImportKind
	Name   string
	Args   []string
	Alias  string
	Source string  // path of the file declaring this import
	Range  lsp.Range
	NameToken Token
}

// Key returns the structural cache key used for import equality:
// (variant, name, args, alias). Two imports with the same Key are
// considered duplicates for the purposes of §3's invariant on resource
// dedup and §4.4.1's "duplicate" diagnostics.
func (i Import) Key() string {
	return string(rune('0'+int(i.Kind))) + "\x00" + i.Name + "\x00" + joinArgs(i.Args) + "\x00" + i.Alias
}

func joinArgs(args []string) string {
	out := ""
	for idx, a := range args {
		if idx > 0 {
			out += "\x01"
		}
		out += a
	}
	return out
}

// Equal reports structural equality per §3: (variant, name, args, alias).
func (i Import) Equal(o Import) bool {
	return i.Key() == o.Key()
}

// VariableKind enumerates where a VariableDefinition came from, per §3.
type VariableKind int

const (
	VarLocal VariableKind = iota
	VarArgument
	VarOwn
	VarImported
	VarCommandLine
	VarBuiltin
	VarEnvironment
	VarNotFound
)

// VariableDefinition is a single resolved (or unresolved) variable.
type VariableDefinition struct {
	Name       string
	Range      lsp.Range
	Source     string
	Kind       VariableKind
	Resolvable bool
	Value      string
	HasValue   bool

	matcherOnce matcher.VariableMatcher
	matcherSet  bool
}

// Matcher returns (and memoizes) the canonical VariableMatcher for this
// definition's Name. Callers that construct a VariableDefinition for a
// name known to be malformed should not call Matcher.
func (v *VariableDefinition) Matcher() (matcher.VariableMatcher, error) {
	if v.matcherSet {
		return v.matcherOnce, nil
	}
	m, err := matcher.NewVariableMatcher(v.Name)
	if err != nil {
		return matcher.VariableMatcher{}, err
	}
	v.matcherOnce = m
	v.matcherSet = true
	return m, nil
}

// RunKeywordKind classifies a KeywordDoc as a member of the "any run
// keyword" family (§4.6), selecting how the analyzer recurses into its
// arguments. NotRunKeyword means the keyword is not reflective.
type RunKeywordKind int

const (
	NotRunKeyword RunKeywordKind = iota
	RunKeyword                   // first arg is the sub-keyword name
	RunKeywordWithCondition      // arg[1] is the sub-keyword name, arg[0] a condition
	RunKeywords                  // "AND"-separated or bare sub-keyword invocations
	RunKeywordIf                 // leading condition, then ELSE IF/ELSE branches
)

// KeywordDoc is the post-load, public surface of a single keyword.
type KeywordDoc struct {
	Name         string
	Args         []string
	Range        lsp.Range
	Source       string
	LibraryName  string
	IsErrorHandler bool
	RunKeyword   RunKeywordKind
}

// LibraryError is one problem surfaced while building a LibraryDoc. When
// Source is non-empty it points into the failing file (content error,
// §7); when it's empty the error is structural/resolution (§7) and is
// reported at the importing statement instead.
type LibraryError struct {
	Message  string
	Source   string
	Line     int
	TypeName string // diagnostic "code"
}

// LibraryDoc is the post-load model of a library, resource, or variables
// file: its public surface, per the GLOSSARY.
type LibraryDoc struct {
	Source      string
	Name        string
	Keywords    *KeywordMap
	Variables   []VariableDefinition
	HasListener bool
	Errors      []LibraryError
}

// KeywordMap is an insertion-order-preserving map of KeywordDoc keyed by
// canonical keyword name, mirroring Python's OrderedDict[str, KeywordDoc]
// on LibraryDoc.keywords.
type KeywordMap struct {
	order []string
	byKey map[string]KeywordDoc
}

// NewKeywordMap returns an empty KeywordMap.
func NewKeywordMap() *KeywordMap {
	return &KeywordMap{byKey: make(map[string]KeywordDoc)}
}

// Set inserts or overwrites the entry for name (keyed canonically).
func (m *KeywordMap) Set(name string, doc KeywordDoc) {
	key := matcher.NewKeywordMatcher(name).Key()
	if _, ok := m.byKey[key]; !ok {
		m.order = append(m.order, key)
	}
	m.byKey[key] = doc
}

// Get looks up name canonically.
func (m *KeywordMap) Get(name string) (KeywordDoc, bool) {
	doc, ok := m.byKey[matcher.NewKeywordMatcher(name).Key()]
	return doc, ok
}

// Len reports the number of keywords.
func (m *KeywordMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byKey)
}

// Values returns keywords in insertion order.
func (m *KeywordMap) Values() []KeywordDoc {
	if m == nil {
		return nil
	}
	out := make([]KeywordDoc, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.byKey[k])
	}
	return out
}

// LibraryEntryKind discriminates the three LibraryEntry variants.
type LibraryEntryKind int

const (
	EntryLibrary LibraryEntryKind = iota
	EntryResource
	EntryVariables
)

// LibraryEntry is a namespace-local record of one resolved import: the
// LibraryDoc plus the specifics of how it was imported (args, alias,
// source range of the import statement). Resource entries additionally
// carry their own imports and own variables so the namespace can recurse
// without re-parsing.
type LibraryEntry struct {
	Kind         LibraryEntryKind
	Name         string
	ImportName   string
	LibraryDoc   *LibraryDoc
	Args         []string
	Alias        string
	ImportRange  lsp.Range
	ImportSource string

	// Resource-only.
	Imports   []Import
	Variables []VariableDefinition
}

// Key returns the map key a namespace stores this entry under: alias, or
// name, or import name — first non-empty wins, per §3's invariant.
func (e LibraryEntry) Key() string {
	switch {
	case e.Alias != "":
		return e.Alias
	case e.Name != "":
		return e.Name
	default:
		return e.ImportName
	}
}

// String renders the entry the way Robot would echo an import statement,
// used in diagnostic messages ("Library '...' already imported").
func (e LibraryEntry) String() string {
	s := e.ImportName
	if len(e.Args) > 0 {
		s += "  " + joinArgsDisplay(e.Args)
	}
	if e.Alias != "" {
		s += "  WITH NAME  " + e.Alias
	}
	return s
}

func joinArgsDisplay(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += "  "
		}
		out += a
	}
	return out
}

// BuiltinLibraryName is the name that overrides-detection (§3, §4.4.1)
// compares unaliased library imports against.
const BuiltinLibraryName = "BuiltIn"

// DefaultLibraries are implicitly imported, unaliased, before any user
// import is processed (§4.4 step 3). Per the original implementation
// (original_source/robotcode/.../namespace.py DEFAULT_LIBRARIES), this is
// BuiltIn plus two small always-on libraries; spec.md names only BuiltIn
// explicitly, the other two are supplemented from original_source (see
// SPEC_FULL.md).
var DefaultLibraries = []string{"BuiltIn", "Reserved", "Easter"}

// BuiltinVariables is the fixed tail of the variable resolution order
// (§4.7 step 6), supplemented from original_source/ since spec.md does
// not enumerate built-in variable names.
var BuiltinVariables = []string{
	"${TEMPDIR}", "${EXECDIR}", "${/}", "${:}", "${\\n}", "${SPACE}",
	"${True}", "${False}", "${None}", "${null}",
	"${TEST NAME}", "${TEST TAGS}", "${TEST DOCUMENTATION}", "${TEST STATUS}", "${TEST MESSAGE}",
	"${PREV TEST NAME}", "${PREV TEST STATUS}", "${PREV TEST MESSAGE}",
	"${SUITE NAME}", "${SUITE SOURCE}", "${SUITE DOCUMENTATION}", "${SUITE STATUS}", "${SUITE MESSAGE}",
	"${KEYWORD STATUS}", "${KEYWORD MESSAGE}",
	"${LOG LEVEL}", "${OUTPUT FILE}", "${LOG FILE}", "${REPORT FILE}", "${DEBUG FILE}", "${OUTPUT DIR}",
}

// BDDPrefixes are stripped (case-insensitively, with their trailing
// space) before a second keyword-name resolution attempt (§4.5 step 6).
var BDDPrefixes = []string{"given ", "when ", "then ", "and ", "but "}

// StdlibsWithoutRemote is the set compared against in §4.5 step 5 to
// decide whether an implicit-library ambiguity is "custom vs standard".
var StdlibsWithoutRemote = map[string]bool{
	"BuiltIn": true, "Collections": true, "DateTime": true, "Dialogs": true,
	"OperatingSystem": true, "Process": true, "Screenshot": true, "String": true,
	"Telnet": true, "XML": true,
}

// DiagnosticsSource is the LSP diagnostic "source" tag for core findings
// (§6).
const DiagnosticsSource = "robotcode.namespace"
