// Package parser provides the minimal Robot Framework plain-text model
// the semantic analysis engine is built against. The real Robot parser
// is an external collaborator (see spec's §6 Parser interface); this
// package stands in for it so internal/robot/namespace and
// internal/robot/analyzer have a concrete syntax tree to walk in tests
// and at runtime until a production parser is wired into Parse.
package parser

import (
	"strings"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/d-biehl/robotcode/internal/robot/entities"
)

// Section identifies which table a Statement or block belongs to.
type Section int

const (
	SectionNone Section = iota
	SectionSettings
	SectionVariables
	SectionTestCases
	SectionKeywords
	SectionComments
)

// Error is a single parse-time problem, reported at a range rather than
// aborting the rest of the file — mirroring spec §7's "structural errors
// never abort" policy one layer down, at the syntax level.
type Error struct {
	Message string
	Range   lsp.Range
}

// Keyword is a `*** Keywords ***` entry: a name header plus its body
// statements, used by the namespace to expose "self" keywords and by the
// analyzer/resolver for block-scoped argument and FOR-loop variables.
type Keyword struct {
	Name      string
	NameToken entities.Token
	Range     lsp.Range
	Body      []Statement
}

// TestCase is a `*** Test Cases ***` entry; structurally identical to
// Keyword for the purposes of block-scope extraction.
type TestCase struct {
	Name      string
	NameToken entities.Token
	Range     lsp.Range
	Body      []Statement
}

// Model is the full parsed file: one syntax tree per source.
type Model struct {
	Source    string
	Settings  []Statement
	Variables []Statement
	Keywords  []Keyword
	TestCases []TestCase
}

// Imports collects the Settings-section statements that denote an
// Import, converting them to entities.Import — the first step of
// namespace.ensure_initialized (§4.4 step 1).
func (m *Model) Imports() []entities.Import {
	var out []entities.Import
	for _, st := range m.Settings {
		switch st.Kind {
		case StLibraryImport, StResourceImport, StVariablesImport:
			out = append(out, st.AsImport(m.Source))
		}
	}
	return out
}

// Parse tokenizes source into cells and assembles a Model plus any
// structural errors. It implements the "assumed available" Parser
// interface from spec §6 well enough to drive namespace/analyzer logic:
// section headers, Settings-table imports, a Variables table, and
// Test Cases/Keywords bodies with [Arguments]/[Tags]/FOR loops and plain
// keyword calls (with optional `${x}=` assignment targets).
func Parse(source, path string) (*Model, []Error) {
	m := &Model{Source: path}
	var errs []Error

	lines := splitLines(source)
	section := SectionNone

	var curKeyword *Keyword
	var curTest *TestCase

	flushKeyword := func() {
		if curKeyword != nil {
			m.Keywords = append(m.Keywords, *curKeyword)
			curKeyword = nil
		}
	}
	flushTest := func() {
		if curTest != nil {
			m.TestCases = append(m.TestCases, *curTest)
			curTest = nil
		}
	}

	for lineNo, raw := range lines {
		line := lineNo + 1
		trimmed := strings.TrimRight(raw, "\r\n")
		if trimmed == "" {
			continue
		}
		cells := splitCells(trimmed, line)
		if len(cells) == 0 {
			continue
		}
		if isCommentCell(cells[0]) {
			continue
		}

		if hdr, ok := sectionHeader(cells[0].Value); ok {
			flushKeyword()
			flushTest()
			section = hdr
			continue
		}

		indented := cells[0].Value == ""

		switch section {
		case SectionSettings:
			if indented {
				continue
			}
			st, err := parseSettingRow(cells, path, line)
			if err != nil {
				errs = append(errs, *err)
			}
			if st != nil {
				m.Settings = append(m.Settings, *st)
			}
		case SectionVariables:
			if indented {
				continue
			}
			m.Variables = append(m.Variables, parseVariableRow(cells, line))
		case SectionKeywords:
			if !indented {
				flushKeyword()
				curKeyword = &Keyword{
					Name:      cells[0].Value,
					NameToken: cells[0],
					Range:     cells[0].Range(),
				}
				continue
			}
			if curKeyword == nil {
				continue
			}
			curKeyword.Body = append(curKeyword.Body, parseBodyRow(cells, line))
			curKeyword.Range.End = cells[len(cells)-1].Range().End
		case SectionTestCases:
			if !indented {
				flushTest()
				curTest = &TestCase{
					Name:      cells[0].Value,
					NameToken: cells[0],
					Range:     cells[0].Range(),
				}
				continue
			}
			if curTest == nil {
				continue
			}
			curTest.Body = append(curTest.Body, parseBodyRow(cells, line))
			curTest.Range.End = cells[len(cells)-1].Range().End
		default:
			// comments / unrecognized sections are ignored, per the
			// "parser assumed available" boundary: this stand-in only
			// needs to model what the analyzer/namespace consume.
		}
	}
	flushKeyword()
	flushTest()

	return m, errs
}

func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

func sectionHeader(first string) (Section, bool) {
	t := strings.TrimSpace(first)
	if !strings.HasPrefix(t, "***") {
		return SectionNone, false
	}
	lower := strings.ToLower(strings.Trim(t, "* "))
	switch {
	case strings.HasPrefix(lower, "setting"):
		return SectionSettings, true
	case strings.HasPrefix(lower, "variable"):
		return SectionVariables, true
	case strings.HasPrefix(lower, "test case"), strings.HasPrefix(lower, "task"):
		return SectionTestCases, true
	case strings.HasPrefix(lower, "keyword"):
		return SectionKeywords, true
	case strings.HasPrefix(lower, "comment"):
		return SectionComments, true
	}
	return SectionNone, false
}

func isCommentCell(t entities.Token) bool {
	return strings.HasPrefix(strings.TrimSpace(t.Value), "#")
}
