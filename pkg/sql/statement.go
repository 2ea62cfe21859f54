// Package sql holds the query template engine and the statement checks
// applied to SQL before it reaches the warehouse.
package sql

import (
	"strings"
	"unicode"

	"github.com/ekaya-inc/snowflake-catalog/pkg/apperrors"
)

// NormalizeStatement trims text and drops its terminating semicolon.
// Anything other than whitespace or comments after that semicolon means a
// second statement, which is rejected with apperrors.ErrMultipleStatement.
//
// Quoted strings, quoted identifiers, $$-delimited bodies and comments are
// skipped, so semicolons inside them do not count.
func NormalizeStatement(text string) (string, error) {
	text = strings.TrimSpace(text)

	end := -1
	for i := 0; i < len(text); {
		rest := text[i:]
		switch c := text[i]; {
		case c == '\'' || c == '"':
			if end >= 0 {
				return "", apperrors.ErrMultipleStatement
			}
			i = skipQuoted(text, i, c)
		case strings.HasPrefix(rest, "$$"):
			if end >= 0 {
				return "", apperrors.ErrMultipleStatement
			}
			i = skipPast(text, i+2, "$$")
		case strings.HasPrefix(rest, "--"),
			strings.HasPrefix(rest, "//") && atTokenStart(text, i):
			i = skipPast(text, i+2, "\n")
		case strings.HasPrefix(rest, "/*"):
			i = skipPast(text, i+2, "*/")
		case c == ';':
			if end >= 0 {
				return "", apperrors.ErrMultipleStatement
			}
			end = i
			i++
		case unicode.IsSpace(rune(c)):
			i++
		default:
			if end >= 0 {
				return "", apperrors.ErrMultipleStatement
			}
			i++
		}
	}

	if end < 0 {
		return text, nil
	}
	return strings.TrimRightFunc(text[:end], unicode.IsSpace), nil
}

// atTokenStart reports whether text[i] begins a new token. A "//" inside an
// unquoted stage path such as @st/a//b is not a comment.
func atTokenStart(text string, i int) bool {
	if i == 0 {
		return true
	}
	prev := text[i-1]
	return unicode.IsSpace(rune(prev)) || strings.IndexByte(";(),", prev) >= 0
}

// skipQuoted returns the index just past the literal opened at text[start].
// Doubled quotes stay inside the literal. Backslash escapes apply to string
// literals only; quoted identifiers treat a backslash as an ordinary character.
func skipQuoted(text string, start int, quote byte) int {
	for j := start + 1; j < len(text); j++ {
		switch text[j] {
		case '\\':
			if quote == '\'' {
				j++
			}
		case quote:
			if j+1 < len(text) && text[j+1] == quote {
				j++
				continue
			}
			return j + 1
		}
	}
	return len(text)
}

func skipPast(text string, from int, marker string) int {
	if from > len(text) {
		return len(text)
	}
	idx := strings.Index(text[from:], marker)
	if idx < 0 {
		return len(text)
	}
	return from + idx + len(marker)
}
