// Package sqlnorm strips comments and case/whitespace noise from raw SQL text.
//
// It intentionally does no parsing: its only job is to neutralize
// commentary-based and case-based evasions before the validator inspects the
// statement. The line- and block-comment scanning here is grounded in the
// margin-comment scanner the teacher repository ships in its SQL parser
// package (leadingCommentEnd/trailingCommentStart in parser/comments.go),
// generalized to strip comments anywhere in the statement rather than only
// at the margins, since an attacker can hide a comment mid-statement.
package sqlnorm

import "strings"

// asciiUpper upper-cases only ASCII letters; non-ASCII runes pass through
// unchanged so homoglyph attempts on keywords never become keywords.
var asciiUpper [256]byte

func init() {
	for i := 0; i < 256; i++ {
		asciiUpper[i] = byte(i)
	}
	for c := byte('a'); c <= 'z'; c++ {
		asciiUpper[c] = c - 'a' + 'A'
	}
}

// Canonicalize produces the canonical form of raw SQL: comments removed,
// ASCII case folded to upper, whitespace runs collapsed to a single space,
// ends trimmed.
func Canonicalize(raw string) string {
	noComments := stripComments(raw)
	upper := foldASCIIUpper(noComments)
	return collapseWhitespace(upper)
}

// stripComments removes `-- ...` line comments and non-nested `/* ... */`
// block comments, wherever they occur in the text.
func stripComments(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	i := 0
	for i < len(s) {
		switch {
		case s[i] == '-' && i+1 < len(s) && s[i+1] == '-':
			// Line comment: skip to end of line, keep the newline as a space
			// so token boundaries on either side are preserved.
			j := i + 2
			for j < len(s) && s[j] != '\n' {
				j++
			}
			out.WriteByte(' ')
			i = j
		case s[i] == '/' && i+1 < len(s) && s[i+1] == '*':
			// Block comment: non-nested, scan to the next "*/". Nothing is
			// written in its place, so a comment hidden inside a keyword
			// (SEL/**/ECT) leaves the keyword joined up.
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				// Unterminated block comment: treat the rest of the input
				// as consumed by the comment rather than risk
				// reinterpreting trailing text as SQL.
				i = len(s)
			} else {
				i = i + 2 + end + 2
			}
		default:
			out.WriteByte(s[i])
			i++
		}
	}
	return out.String()
}

func foldASCIIUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		b[i] = asciiUpper[c]
	}
	return string(b)
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
