package approval

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ID is a 256-bit random token identifier, hex-encoded for transport and logging.
type ID [32]byte

func newID() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ID{}, fmt.Errorf("generate approval token id: %w", err)
	}
	return id, nil
}

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// ParseID decodes the hex string a caller presents back at execute time.
func ParseID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return ID{}, fmt.Errorf("malformed approval token")
	}
	copy(id[:], b)
	return id, nil
}

// Truncated returns a short, log-safe prefix of the id, matching the audit
// record schema's "token_id? (truncated)" field (spec.md §6).
func (id ID) Truncated() string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
