// Package analyzer implements the Analyzer (spec §4.6): a second pass
// over a Namespace's own syntax tree, producing diagnostics only. It
// never touches the namespace's resolved import maps — that is
// ensure_initialized's job — it only calls Finder.FindKeyword and
// Namespace.FindVariable and reports what they say.
//
// Analyze is the function internal/robot/namespace.Namespace.GetDiagnostics
// expects as its analyzeFn argument; wiring it there rather than having
// namespace import this package keeps the dependency one-directional.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/namespace"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

const maxRunKeywordDepth = 10

type analyzer struct {
	ns     *namespace.Namespace
	finder *namespace.Finder
}

// Analyze walks every keyword, test case and the Settings section,
// resolving each keyword call (recursing into the "any run keyword"
// family per the resolved KeywordDoc's RunKeyword kind) and every
// variable reference cell, and returns the diagnostics produced.
func Analyze(ctx context.Context, ns *namespace.Namespace) ([]lsp.Diagnostic, error) {
	a := &analyzer{ns: ns, finder: ns.GetFinder()}
	model := ns.Model()

	var diags []lsp.Diagnostic
	for _, kw := range model.Keywords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		diags = append(diags, a.walkBody(ctx, kw.NameToken, kw.Body)...)
	}
	for _, tc := range model.TestCases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		diags = append(diags, a.walkBody(ctx, tc.NameToken, tc.Body)...)
	}
	diags = append(diags, a.walkSettings(ctx, model.Settings)...)
	return diags, nil
}

func (a *analyzer) walkBody(ctx context.Context, nameToken entities.Token, body []parser.Statement) []lsp.Diagnostic {
	var diags []lsp.Diagnostic
	for _, st := range body {
		if err := ctx.Err(); err != nil {
			break
		}
		switch st.Kind {
		case parser.StKeywordCall, parser.StFixture, parser.StTemplate, parser.StTestTemplate:
			diags = append(diags, a.checkKeywordCall(st, 0)...)
			diags = append(diags, a.checkVariableCells(st.Arguments(), nameToken, body)...)
		case parser.StForHeader:
			diags = append(diags, a.checkVariableCells(forIterableCells(st.Arguments()), nameToken, body)...)
		case parser.StArguments:
			// [Arguments] cells declare block-scoped variables; they are
			// not references to resolve.
		default:
			diags = append(diags, a.checkVariableCells(st.Arguments(), nameToken, body)...)
		}
	}
	return diags
}

func (a *analyzer) walkSettings(ctx context.Context, settings []parser.Statement) []lsp.Diagnostic {
	var diags []lsp.Diagnostic
	for _, st := range settings {
		if err := ctx.Err(); err != nil {
			break
		}
		switch st.Kind {
		case parser.StFixture, parser.StTestTemplate:
			diags = append(diags, a.checkKeywordCall(st, 0)...)
		}
		diags = append(diags, a.checkVariableCells(st.Arguments(), entities.Token{}, nil)...)
	}
	return diags
}

// checkKeywordCall resolves st's name against the namespace and, when the
// resolved keyword belongs to the "any run keyword" family, recurses into
// whichever of its argument cells hold a nested keyword invocation (spec
// §4.6). depth bounds the recursion against pathological/cyclic input.
func (a *analyzer) checkKeywordCall(st parser.Statement, depth int) []lsp.Diagnostic {
	name := st.Name()
	if name == "" || isPureVariableReference(name) {
		return nil
	}

	doc, diags := a.finder.FindKeyword(name)
	out := translateDiags(diags, st.NameToken().Range())
	if doc == nil || depth >= maxRunKeywordDepth {
		return out
	}

	args := st.Arguments()
	switch doc.RunKeyword {
	case entities.RunKeyword:
		if len(args) > 0 {
			out = append(out, a.checkKeywordCall(callFrom(args), depth+1)...)
		}
	case entities.RunKeywordWithCondition:
		if len(args) > 1 {
			out = append(out, a.checkKeywordCall(callFrom(unescapeNameCell(args[1:])), depth+1)...)
		}
	case entities.RunKeywords:
		for _, seg := range splitOnAND(args) {
			if len(seg) > 0 {
				out = append(out, a.checkKeywordCall(callFrom(seg), depth+1)...)
			}
		}
	case entities.RunKeywordIf:
		for _, seg := range splitIfBranches(args) {
			if len(seg) > 0 {
				out = append(out, a.checkKeywordCall(callFrom(seg), depth+1)...)
			}
		}
	}
	return out
}

// checkVariableCells resolves every ${...}/@{...}/&{...}/%{...} reference
// found in cells and reports the ones FindVariable can't place, at the
// reference token's own range (spec §4.6, §4.7).
func (a *analyzer) checkVariableCells(cells []entities.Token, nameToken entities.Token, body []parser.Statement) []lsp.Diagnostic {
	var diags []lsp.Diagnostic
	for _, cell := range cells {
		for _, vt := range parser.TokenizeVariables(cell) {
			def, err := a.ns.FindVariable(vt.Value, nameToken, body, vt.Range().Start)
			if err != nil {
				continue
			}
			if def == nil {
				diags = append(diags, lsp.Diagnostic{
					Range: vt.Range(), Severity: lsp.Warning, Code: "VariableNotFound",
					Source: entities.DiagnosticsSource, Message: fmt.Sprintf("Variable '%s' not found.", vt.Value),
				})
			}
		}
	}
	return diags
}

func translateDiags(diags []lsp.Diagnostic, r lsp.Range) []lsp.Diagnostic {
	if len(diags) == 0 {
		return nil
	}
	out := make([]lsp.Diagnostic, len(diags))
	for i, d := range diags {
		d.Range = r
		out[i] = d
	}
	return out
}

func callFrom(tokens []entities.Token) parser.Statement {
	return parser.Statement{
		Kind:  parser.StKeywordCall,
		Cells: tokens,
		Range: lsp.Range{Start: tokens[0].Range().Start, End: tokens[len(tokens)-1].Range().End},
	}
}

// unescapeNameCell returns cells with its first entry's Value unescaped,
// per spec §4.6's "run-keyword-with-condition ... sub-keyword name is
// string-escaped — unescape before matching." The remaining cells (the
// sub-keyword's own arguments) are untouched.
func unescapeNameCell(cells []entities.Token) []entities.Token {
	if len(cells) == 0 {
		return cells
	}
	out := make([]entities.Token, len(cells))
	copy(out, cells)
	out[0].Value = unescapeRobotString(out[0].Value)
	return out
}

// unescapeRobotString reverses Robot Framework's backslash escaping of
// cell values: "\n", "\r" and "\t" become newline, carriage return and
// tab, "\\" collapses to "\", and a backslash before any other character
// is dropped, leaving the character itself. A trailing lone backslash is
// kept as is.
func unescapeRobotString(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		next := s[i+1]
		switch next {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(next)
		}
		i++
	}
	return b.String()
}

func forIterableCells(args []entities.Token) []entities.Token {
	for i, a := range args {
		switch strings.ToUpper(strings.TrimSpace(a.Value)) {
		case "IN", "IN RANGE", "IN ENUMERATE", "IN ZIP":
			return args[i+1:]
		}
	}
	return nil
}

// splitOnAND implements Run Keywords' two forms: bare
// "Run Keywords  Kw1  Kw2  Kw3" (each argument its own no-arg call) when
// no literal "AND" cell is present, else each "AND"-delimited segment is
// one sub-keyword call with its own arguments.
func splitOnAND(args []entities.Token) [][]entities.Token {
	hasAND := false
	for _, a := range args {
		if strings.EqualFold(strings.TrimSpace(a.Value), "AND") {
			hasAND = true
			break
		}
	}
	if !hasAND {
		out := make([][]entities.Token, 0, len(args))
		for _, a := range args {
			out = append(out, []entities.Token{a})
		}
		return out
	}

	var segs [][]entities.Token
	var cur []entities.Token
	for _, a := range args {
		if strings.EqualFold(strings.TrimSpace(a.Value), "AND") {
			segs = append(segs, cur)
			cur = nil
			continue
		}
		cur = append(cur, a)
	}
	return append(segs, cur)
}

// splitIfBranches extracts the keyword-call segment of each
// Run Keyword If branch, skipping the leading and ELSE IF conditions
// (spec §4.6's "leading condition, then ELSE IF/ELSE branches").
func splitIfBranches(args []entities.Token) [][]entities.Token {
	var segs [][]entities.Token
	i := 1
	for i < len(args) {
		v := strings.ToUpper(strings.TrimSpace(args[i].Value))
		if v == "ELSE IF" {
			i += 2
			continue
		}
		if v == "ELSE" {
			i++
			continue
		}
		start := i
		for i < len(args) {
			v := strings.ToUpper(strings.TrimSpace(args[i].Value))
			if v == "ELSE IF" || v == "ELSE" {
				break
			}
			i++
		}
		segs = append(segs, args[start:i])
	}
	return segs
}

func isPureVariableReference(name string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 3 || strings.IndexByte("$@&%", name[0]) < 0 || name[1] != '{' {
		return false
	}
	depth := 0
	for i := 1; i < len(name); i++ {
		switch name[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i == len(name)-1
			}
		}
	}
	return false
}
