package validate

import (
	"fmt"
	"regexp"
)

// parenDepths returns, for each byte offset in s, the paren nesting depth in
// effect *before* that byte is consumed. len(result) == len(s)+1, with the
// final entry being the depth after the whole string.
func parenDepths(s string) []int {
	depths := make([]int, len(s)+1)
	d := 0
	for i := 0; i < len(s); i++ {
		depths[i] = d
		switch s[i] {
		case '(':
			d++
		case ')':
			if d > 0 {
				d--
			}
		}
	}
	depths[len(s)] = d
	return depths
}

var (
	crossJoinRe  = regexp.MustCompile(`\bCROSS\s+JOIN\b`)
	fromRe       = regexp.MustCompile(`\bFROM\b`)
	fromStopRe   = regexp.MustCompile(`\b(WHERE|GROUP BY|HAVING|ORDER BY|CONNECT BY|START WITH|FOR UPDATE)\b`)
	joinRe       = regexp.MustCompile(`\bJOIN\b`)
	aggregateRe  = regexp.MustCompile(`\b(COUNT|SUM|AVG|MIN|MAX|GROUP BY)\b`)
	subqueryRe   = regexp.MustCompile(`\(\s*SELECT\b`)
	cteDefRe     = regexp.MustCompile(`\bAS\s*\(`)
	windowRe     = regexp.MustCompile(`\)\s*OVER\s*\(`)
	tableEntryRe = regexp.MustCompile(`\b(?:FROM|JOIN)\s+([A-Z0-9_$#]+)`)
	wildcardRe   = regexp.MustCompile(`LIKE\s*'%`)
	orRe         = regexp.MustCompile(`\bOR\b`)
)

// cartesianViolation implements spec.md §4.2 rule 5: an implicit cartesian
// join (comma-separated tables in the top-level FROM list) or an explicit
// CROSS JOIN is rejected unless cross joins are explicitly allowed.
func cartesianViolation(canonical string, allowCrossJoins bool) (reason string, bad bool) {
	if allowCrossJoins {
		return "", false
	}

	depths := parenDepths(canonical)

	for _, loc := range crossJoinRe.FindAllStringIndex(canonical, -1) {
		if depths[loc[0]] == 0 {
			return "cartesian product: explicit CROSS JOIN is forbidden", true
		}
	}

	for _, loc := range fromRe.FindAllStringIndex(canonical, -1) {
		if depths[loc[0]] != 0 {
			continue
		}
		start := loc[1]
		end := len(canonical)
		if sl := fromStopRe.FindStringIndex(canonical[start:]); sl != nil {
			end = start + sl[0]
		}
		for i := start; i < end; i++ {
			if canonical[i] == ',' && depths[i] == 0 {
				return "cartesian product: comma-separated tables in FROM list", true
			}
		}
		break // only the first top-level FROM list (the main query) matters
	}
	return "", false
}

// complexityScore implements spec.md §4.2 rule 6.
func complexityScore(canonical string) int {
	score := 5 // base

	score += 5 * len(joinRe.FindAllStringIndex(canonical, -1))
	score += 3 * len(aggregateRe.FindAllStringIndex(canonical, -1))

	if regexp.MustCompile(`\bDISTINCT\b`).MatchString(canonical) {
		score += 5
	}

	subqueries := subqueryRe.FindAllStringIndex(canonical, -1)
	score += 10 * len(subqueries)

	if len(canonical) >= 5 && canonical[:5] == "WITH " {
		score += 8 * len(cteDefRe.FindAllStringIndex(canonical, -1))
	}

	score += 12 * len(windowRe.FindAllStringIndex(canonical, -1))
	score += 15 * selfJoinPairs(canonical)
	score += 10 * len(wildcardRe.FindAllStringIndex(canonical, -1))

	if orCount := len(orRe.FindAllStringIndex(canonical, -1)); orCount > 2 {
		score += 4 * (orCount - 2)
	}

	if depth := maxSubqueryNestingDepth(canonical); depth > 2 {
		score += 5 * (depth - 2)
	}

	return score
}

// selfJoinPairs counts pairs of FROM/JOIN entries sharing the same base
// table name, per spec.md's "+15 for each self-join" rule.
func selfJoinPairs(canonical string) int {
	counts := map[string]int{}
	for _, m := range tableEntryRe.FindAllStringSubmatch(canonical, -1) {
		counts[m[1]]++
	}
	pairs := 0
	for _, n := range counts {
		pairs += n * (n - 1) / 2
	}
	return pairs
}

// maxSubqueryNestingDepth tracks how deeply "(SELECT" parens nest, so rule 6's
// "+5 per level of subquery nesting depth above 2" penalty can be computed.
func maxSubqueryNestingDepth(canonical string) int {
	type frame struct{ isSubquery bool }
	var stack []frame
	depth, maxDepth := 0, 0

	i := 0
	for i < len(canonical) {
		switch canonical[i] {
		case '(':
			isSubquery := subqueryRe.MatchString(canonical[i:min(i+64, len(canonical))]) &&
				subqueryRe.FindStringIndex(canonical[i:min(i+64, len(canonical))])[0] == 0
			stack = append(stack, frame{isSubquery: isSubquery})
			if isSubquery {
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
			}
		case ')':
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if top.isSubquery && depth > 0 {
					depth--
				}
			}
		}
		i++
	}
	return maxDepth
}

// warnings implements spec.md §4.2's "admission still granted" warnings.
func warnings(canonical string) []string {
	var ws []string

	tableCount := len(tableEntryRe.FindAllStringIndex(canonical, -1))
	hasWhere := regexp.MustCompile(`\bWHERE\b`).MatchString(canonical)
	if tableCount > 1 && hasWhere && !joinRe.MatchString(canonical) {
		ws = append(ws, "implicit multi-table join with WHERE conditions")
	}
	if regexp.MustCompile(`SELECT\s+\*`).MatchString(canonical) && tableCount > 1 {
		ws = append(ws, "SELECT * across more than one table")
	}
	if regexp.MustCompile(`\bDISTINCT\b`).MatchString(canonical) {
		ws = append(ws, "DISTINCT forces a full sort/dedup pass")
	}
	if n := len(subqueryRe.FindAllStringIndex(canonical, -1)); n > 0 {
		ws = append(ws, fmt.Sprintf("%d subquery(ies)", n))
	}
	if len(canonical) >= 5 && canonical[:5] == "WITH " {
		if n := len(cteDefRe.FindAllStringIndex(canonical, -1)); n > 0 {
			ws = append(ws, fmt.Sprintf("%d common table expression(s)", n))
		}
	}
	if n := len(windowRe.FindAllStringIndex(canonical, -1)); n > 0 {
		ws = append(ws, fmt.Sprintf("%d window function(s)", n))
	}
	return ws
}

func scoreTooHighReason(score, ceiling int) string {
	return fmt.Sprintf("complexity score %d exceeds ceiling %d", score, ceiling)
}
