// Package validate rejects dangerous statements, scores query complexity,
// and applies the mandatory row cap. It is the defense-in-depth core of the
// gateway: every admission check here is expressed as data (pattern + score
// + reason) and applied in order with short-circuit on the first rejection,
// following the teacher repository's habit of driving generator behavior off
// declarative tables rather than scattering conditionals through the
// dispatcher (see schema/generator.go's mode-indexed dispatch tables).
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oracleguard/gateway/sqlnorm"
)

// Config holds the tunables from the gateway's §6 configuration surface that
// the validator consults.
type Config struct {
	MaxComplexity   int
	MaxRows         int
	AllowCrossJoins bool
}

// DefaultConfig mirrors spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{MaxComplexity: 50, MaxRows: 10000, AllowCrossJoins: false}
}

// Verdict is the result of validating one statement.
type Verdict struct {
	Admitted      bool
	Reason        string
	Warnings      []string
	Complexity    int
	AppliedRowCap *int
	EffectiveSQL  string
	Canonical     string
}

var forbiddenVerbs = []string{
	"DELETE", "INSERT", "UPDATE", "MERGE", "DROP", "TRUNCATE", "ALTER",
	"CREATE", "GRANT", "REVOKE", "EXECUTE", "CALL", "COMMIT", "ROLLBACK",
	"SAVEPOINT", "LOCK", "RENAME",
}

var setOperators = []string{"UNION ALL", "UNION", "INTERSECT", "MINUS", "EXCEPT"}

func wordRegexp(word string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(word) + `\b`)
}

var forbiddenVerbRegexps = buildWordRegexps(forbiddenVerbs)
var setOperatorRegexps = buildWordRegexps(setOperators)

func buildWordRegexps(words []string) map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp, len(words))
	for _, w := range words {
		m[w] = wordRegexp(w)
	}
	return m
}

// Validator applies the ordered admission checks of spec.md §4.2.
type Validator struct {
	cfg Config
}

func New(cfg Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs the full pipeline against raw SQL text.
func (v *Validator) Validate(raw string) Verdict {
	canonical := sqlnorm.Canonicalize(raw)

	// 1. Empty guard.
	if canonical == "" {
		return reject("statement is empty after normalization")
	}

	// 2. Leading verb.
	if !strings.HasPrefix(canonical, "SELECT ") && canonical != "SELECT" &&
		!strings.HasPrefix(canonical, "WITH ") {
		leading := canonical
		if sp := strings.IndexByte(canonical, ' '); sp >= 0 {
			leading = canonical[:sp]
		}
		return reject(fmt.Sprintf("statement must begin with SELECT or WITH, found %s", leading))
	}

	// 3. Forbidden verbs, whole-word.
	for _, verb := range forbiddenVerbs {
		if forbiddenVerbRegexps[verb].MatchString(canonical) {
			return reject("forbidden statement: contains " + verb)
		}
	}

	// 4. Set-operator guard.
	for _, op := range setOperators {
		if setOperatorRegexps[op].MatchString(canonical) {
			return reject("forbidden set operator: " + op)
		}
	}

	// 5. Cartesian guard.
	if reason, bad := cartesianViolation(canonical, v.cfg.AllowCrossJoins); bad {
		return reject(reason)
	}

	// 6. Complexity score.
	score := complexityScore(canonical)
	if score > v.cfg.MaxComplexity {
		return reject(scoreTooHighReason(score, v.cfg.MaxComplexity))
	}

	// 7. Row cap.
	effective, cap := applyRowCap(raw, canonical, v.cfg.MaxRows)

	return Verdict{
		Admitted:      true,
		Warnings:      warnings(canonical),
		Complexity:    score,
		AppliedRowCap: cap,
		EffectiveSQL:  effective,
		Canonical:     canonical,
	}
}

func reject(reason string) Verdict {
	return Verdict{Admitted: false, Reason: reason}
}
