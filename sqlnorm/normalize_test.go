package sqlnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeStripsLineComments(t *testing.T) {
	got := Canonicalize("SELECT 1 -- drop everything\nFROM dual")
	assert.Equal(t, "SELECT 1 FROM DUAL", got)
}

func TestCanonicalizeStripsBlockComments(t *testing.T) {
	got := Canonicalize("SELECT /* sneaky */ 1 FROM dual")
	assert.Equal(t, "SELECT 1 FROM DUAL", got)
}

func TestCanonicalizeStripsMidStatementCommentEvasion(t *testing.T) {
	got := Canonicalize("DE/**/LETE FROM accounts")
	assert.Equal(t, "DELETE FROM ACCOUNTS", got)
}

func TestCanonicalizeFoldsCaseASCIIOnly(t *testing.T) {
	got := Canonicalize("sElEcT * from t")
	assert.Equal(t, "SELECT * FROM T", got)
}

func TestCanonicalizeLeavesNonASCIIUntouched(t *testing.T) {
	// ASCII letters fold to upper; the non-ASCII rune passes through as-is
	// rather than being case-folded, so a homoglyph can never become a
	// recognized keyword byte.
	got := Canonicalize("select café from t")
	assert.Equal(t, "SELECT CAFé FROM T", got)
}

func TestCanonicalizeCollapsesWhitespace(t *testing.T) {
	got := Canonicalize("SELECT   1\n\nFROM   dual")
	assert.Equal(t, "SELECT 1 FROM DUAL", got)
}

func TestCanonicalizeUnterminatedBlockComment(t *testing.T) {
	got := Canonicalize("SELECT 1 /* never closes")
	assert.Equal(t, "SELECT 1", got)
}

func TestCanonicalizeEmpty(t *testing.T) {
	assert.Equal(t, "", Canonicalize("   "))
	assert.Equal(t, "", Canonicalize("-- just a comment"))
}
