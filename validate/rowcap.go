package validate

import (
	"fmt"
	"regexp"
)

var (
	rownumRe     = regexp.MustCompile(`\bROWNUM\b`)
	fetchFirstRe = regexp.MustCompile(`\bFETCH\s+FIRST\b`)
)

// applyRowCap implements spec.md §4.2 rule 7. If the canonical form already
// bounds output via ROWNUM or FETCH FIRST, the original statement is used
// unchanged. Otherwise the original (not the canonicalized/uppercased) text
// is wrapped so quoted identifiers and literal casing survive execution;
// any outermost ORDER BY is preserved because it stays inside the wrapped
// subquery and is evaluated before the ROWNUM filter outside it.
func applyRowCap(original, canonical string, maxRows int) (effective string, appliedCap *int) {
	if rownumRe.MatchString(canonical) || fetchFirstRe.MatchString(canonical) {
		return original, nil
	}
	cap := maxRows
	wrapped := fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", original, cap)
	return wrapped, &cap
}
