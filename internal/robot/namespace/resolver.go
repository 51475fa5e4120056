package namespace

import (
	"strings"

	lsp "github.com/sourcegraph/go-lsp"

	"github.com/d-biehl/robotcode/internal/robot/entities"
	"github.com/d-biehl/robotcode/internal/robot/matcher"
	"github.com/d-biehl/robotcode/internal/robot/parser"
)

func entryVariables(e *entities.LibraryEntry) []entities.VariableDefinition {
	if len(e.Variables) > 0 {
		return e.Variables
	}
	if e.LibraryDoc != nil {
		return e.LibraryDoc.Variables
	}
	return nil
}

// GetVariables implements spec §4.7's merge, first hit wins under
// canonical equality: block-scoped locals, own file, resource imports
// (source order), command-line, variables-file exports (source order),
// built-ins.
func (n *Namespace) GetVariables(nameToken entities.Token, body []parser.Statement, position lsp.Position) []entities.VariableDefinition {
	var out []entities.VariableDefinition
	out = append(out, blockScopedLocals(nameToken, body, position)...)
	out = append(out, n.GetOwnVariables()...)

	n.mu.Lock()
	resources := n.resources.values()
	variablesEntries := n.variables.values()
	n.mu.Unlock()

	for _, e := range resources {
		out = append(out, entryVariables(e)...)
	}
	out = append(out, n.cmdLineVars...)
	for _, e := range variablesEntries {
		out = append(out, entryVariables(e)...)
	}
	for _, name := range entities.BuiltinVariables {
		out = append(out, entities.VariableDefinition{Name: name, Kind: entities.VarBuiltin, Resolvable: true})
	}
	return out
}

// FindVariable performs the canonical, first-match lookup of name
// against GetVariables' merged tiers (spec §4.7, §6's find_variable).
// A malformed name is trapped here (matcher.ErrInvalidName) rather than
// propagated, per §4.1.
func (n *Namespace) FindVariable(name string, nameToken entities.Token, body []parser.Statement, position lsp.Position) (*entities.VariableDefinition, error) {
	target, err := matcher.NewVariableMatcher(name)
	if err != nil {
		return nil, err
	}
	for _, v := range n.GetVariables(nameToken, body, position) {
		m, err := v.Matcher()
		if err != nil {
			continue
		}
		if m.Key() == target.Key() {
			vv := v
			return &vv, nil
		}
	}
	return nil, nil
}

// blockScopedLocals extracts the variables visible strictly before
// position inside one keyword/test body: embedded keyword-name
// arguments, `[Arguments]` entries, FOR loop variables, and keyword-call
// assignment targets (spec §4.7's "Block-scoped extraction visits").
func blockScopedLocals(nameToken entities.Token, body []parser.Statement, position lsp.Position) []entities.VariableDefinition {
	var out []entities.VariableDefinition

	for _, vt := range parser.TokenizeVariables(nameToken) {
		out = append(out, entities.VariableDefinition{
			Name: vt.Value, Range: vt.Range(), Kind: entities.VarArgument, Resolvable: true,
		})
	}

	for _, st := range body {
		if !beforePosition(st.Range, position) {
			continue
		}
		switch st.Kind {
		case parser.StArguments:
			for _, a := range st.Arguments() {
				name, _, _ := strings.Cut(a.Value, "=")
				if !looksLikeVariableName(name) {
					continue
				}
				out = append(out, entities.VariableDefinition{
					Name: name, Range: a.Range(), Kind: entities.VarArgument, Resolvable: true,
				})
			}
		case parser.StForHeader:
			for _, a := range st.Arguments() {
				if strings.EqualFold(a.Value, "IN") || strings.EqualFold(a.Value, "IN RANGE") ||
					strings.EqualFold(a.Value, "IN ENUMERATE") || strings.EqualFold(a.Value, "IN ZIP") {
					break
				}
				if !looksLikeVariableName(a.Value) {
					continue
				}
				out = append(out, entities.VariableDefinition{
					Name: a.Value, Range: a.Range(), Kind: entities.VarLocal, Resolvable: true,
				})
			}
		case parser.StKeywordCall:
			for _, a := range st.Assign {
				name := strings.TrimSuffix(a.Value, "=")
				if !looksLikeVariableName(name) {
					continue
				}
				out = append(out, entities.VariableDefinition{
					Name: name, Range: a.Range(), Kind: entities.VarLocal, Resolvable: true,
				})
			}
		}
	}
	return out
}

func looksLikeVariableName(v string) bool {
	_, ok := matcher.VariableBase(v)
	return ok
}

func beforePosition(r lsp.Range, position lsp.Position) bool {
	if r.End.Line != position.Line {
		return r.End.Line < position.Line
	}
	return r.End.Character <= position.Character
}
