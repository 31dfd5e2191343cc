// Package statement checks ad-hoc SQL before it is sent to a warehouse.
package statement

import (
	"errors"
	"strings"
)

var (
	// ErrEmpty indicates the query has no SQL once comments and whitespace are removed.
	ErrEmpty = errors.New("query is empty")

	// ErrMultipleStatements indicates the query contains more than one statement.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")
)

// Normalize trims the query and strips trailing semicolons, then rejects
// empty input and input holding more than one statement. Semicolons inside
// string literals, quoted identifiers ("x", [x], `x`) and comments do not
// separate statements.
func Normalize(query string) (string, error) {
	query = strings.TrimSpace(query)
	for strings.HasSuffix(query, ";") {
		query = strings.TrimSpace(strings.TrimSuffix(query, ";"))
	}

	code, separators := scan(query)
	if strings.TrimSpace(code) == "" {
		return "", ErrEmpty
	}
	if separators > 0 {
		return "", ErrMultipleStatements
	}
	return query, nil
}

type scanState int

const (
	stateCode scanState = iota
	stateSingleQuote
	stateQuotedIdent
	stateLineComment
	stateBlockComment
)

// scan returns the query with comments removed and the number of
// semicolons found outside literals and comments.
func scan(query string) (string, int) {
	var (
		code       strings.Builder
		separators int
		state      = stateCode
		closeQuote rune
	)

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		next := rune(0)
		if i+1 < len(runes) {
			next = runes[i+1]
		}

		switch state {
		case stateCode:
			switch {
			case ch == '-' && next == '-':
				state = stateLineComment
				i++
				continue
			case ch == '/' && next == '*':
				state = stateBlockComment
				i++
				continue
			case ch == ';':
				separators++
			case ch == '\'':
				state = stateSingleQuote
			case ch == '"':
				state, closeQuote = stateQuotedIdent, '"'
			case ch == '`':
				state, closeQuote = stateQuotedIdent, '`'
			case ch == '[':
				state, closeQuote = stateQuotedIdent, ']'
			}
			code.WriteRune(ch)

		case stateSingleQuote:
			code.WriteRune(ch)
			switch {
			case ch == '\\' && next != 0:
				code.WriteRune(next)
				i++
			case ch == '\'' && next == '\'':
				code.WriteRune(next)
				i++
			case ch == '\'':
				state = stateCode
			}

		case stateQuotedIdent:
			code.WriteRune(ch)
			if ch == closeQuote {
				if next == closeQuote {
					code.WriteRune(next)
					i++
				} else {
					state = stateCode
				}
			}

		case stateLineComment:
			if ch == '\n' {
				state = stateCode
				code.WriteRune(ch)
			}

		case stateBlockComment:
			if ch == '*' && next == '/' {
				state = stateCode
				code.WriteRune(' ')
				i++
			}
		}
	}
	return code.String(), separators
}
