package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d-biehl/robotcode/internal/robot/entities"
)

const sample = `*** Settings ***
Library    Collections
Library    MyLib    arg1    WITH NAME    ML
Resource    common.resource

*** Variables ***
${GREETING}    Hello

*** Keywords ***
Log In
    [Arguments]    ${user}
    ${result}=    Do Login    ${user}
    Log    ${result}

*** Test Cases ***
Can Log In
    Given log in
`

func TestParseSettingsAndImports(t *testing.T) {
	m, errs := Parse(sample, "sample.robot")
	require.Empty(t, errs, "unexpected parse errors")
	imports := m.Imports()
	require.Len(t, imports, 3)

	assert.Equal(t, entities.ImportLibrary, imports[0].Kind)
	assert.Equal(t, "Collections", imports[0].Name)

	assert.Equal(t, "MyLib", imports[1].Name)
	assert.Equal(t, "ML", imports[1].Alias)
	require.Len(t, imports[1].Args, 1)
	assert.Equal(t, "arg1", imports[1].Args[0])

	assert.Equal(t, entities.ImportResource, imports[2].Kind)
	assert.Equal(t, "common.resource", imports[2].Name)
}

func TestParseVariablesSection(t *testing.T) {
	m, _ := Parse(sample, "sample.robot")
	require.Len(t, m.Variables, 1)
	assert.Equal(t, "${GREETING}", m.Variables[0].Name())
}

func TestParseKeywordBody(t *testing.T) {
	m, _ := Parse(sample, "sample.robot")
	require.Len(t, m.Keywords, 1)
	kw := m.Keywords[0]
	require.Equal(t, "Log In", kw.Name)
	require.Len(t, kw.Body, 3)

	assert.Equal(t, StArguments, kw.Body[0].Kind)
	assert.Equal(t, StKeywordCall, kw.Body[1].Kind)
	assert.Equal(t, "Do Login", kw.Body[1].Name())
	require.Len(t, kw.Body[1].Assign, 1)
	assert.Equal(t, "${result}=", kw.Body[1].Assign[0].Value)
}

func TestParseTestCaseBody(t *testing.T) {
	m, _ := Parse(sample, "sample.robot")
	require.Len(t, m.TestCases, 1)
	assert.Equal(t, "Can Log In", m.TestCases[0].Name)

	body := m.TestCases[0].Body
	require.Len(t, body, 1)
	assert.Equal(t, StKeywordCall, body[0].Kind)
	assert.Equal(t, "Given log in", body[0].Name())
}

func TestLibraryRequiresValue(t *testing.T) {
	_, errs := Parse("*** Settings ***\nLibrary\n", "bad.robot")
	require.Len(t, errs, 1)
}

func TestTokenizeVariables(t *testing.T) {
	tok := entities.Token{Value: "${result} and ${nested${x}}", Line: 3, Column: 4}
	vars := TokenizeVariables(tok)
	require.Len(t, vars, 2)
	assert.Equal(t, "${result}", vars[0].Value)
	assert.Equal(t, 4, vars[0].Column)
	assert.Equal(t, "${nested${x}}", vars[1].Value)
}
