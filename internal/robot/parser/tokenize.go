package parser

import (
	"github.com/d-biehl/robotcode/internal/robot/entities"
)

// splitCells splits one line into Robot Framework's plain-text "cells":
// fields separated by a tab or by two-or-more consecutive spaces. A
// line that starts with a separator yields a leading empty cell, which
// is how an indented Test Cases/Keywords body row is distinguished from
// a new block header.
func splitCells(line string, lineNo int) []entities.Token {
	runes := []rune(line)
	n := len(runes)
	var cells []entities.Token

	start := 0
	i := 0
	flush := func(end int) {
		cells = append(cells, entities.Token{
			Type:      entities.TokenOther,
			Value:     string(runes[start:end]),
			Line:      lineNo,
			Column:    start,
			EndColumn: end,
		})
	}
	for i < n {
		if sepLen := separatorLenAt(runes, i); sepLen > 0 {
			flush(i)
			i += sepLen
			start = i
			continue
		}
		i++
	}
	flush(n)
	return cells
}

func separatorLenAt(runes []rune, i int) int {
	if runes[i] == '\t' {
		return 1
	}
	if runes[i] != ' ' {
		return 0
	}
	j := i
	for j < len(runes) && runes[j] == ' ' {
		j++
	}
	if j-i >= 2 {
		return j - i
	}
	return 0
}

const variableSigils = "$@&%"

// TokenizeVariables sub-tokenizes a data token's Value into the
// variable-reference tokens it contains, per spec §6's
// `tokenize_variables(token) -> iter<Token>` collaborator. Each returned
// token's Range is positioned relative to the enclosing file using the
// parent token's Line/Column as origin. Escaped sigils (`\$`) are
// skipped; a reference with unbalanced braces yields no token and is not
// reported.
func TokenizeVariables(parent entities.Token) []entities.Token {
	runes := []rune(parent.Value)
	var out []entities.Token
	i := 0
	for i < len(runes) {
		if runes[i] == '\\' {
			i += 2
			continue
		}
		if indexByte(variableSigils, runes[i]) && i+1 < len(runes) && runes[i+1] == '{' {
			end, ok := matchBrace(runes, i+1)
			if !ok {
				i++
				continue
			}
			out = append(out, entities.Token{
				Type:      entities.TokenVariable,
				Value:     string(runes[i : end+1]),
				Line:      parent.Line,
				Column:    parent.Column + i,
				EndColumn: parent.Column + end + 1,
			})
			i = end + 1
			continue
		}
		i++
	}
	return out
}

func indexByte(set string, r rune) bool {
	for _, s := range set {
		if s == r {
			return true
		}
	}
	return false
}

// matchBrace returns the index of the brace matching runes[open] (which
// must be '{'), honoring nesting.
func matchBrace(runes []rune, open int) (int, bool) {
	depth := 0
	for i := open; i < len(runes); i++ {
		switch runes[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
