package contentcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/khusa71/kardu/internal/flashcard"
)

// hashTextPrefixLen bounds how much of the source text feeds the key.
// Documents differing only past this prefix share a cache entry, which is
// the accepted trade-off for keeping hashing cheap on large extractions.
const hashTextPrefixLen = 2000

// Key returns the deterministic cache key for a (text, subject, difficulty,
// focus areas) combination. Focus areas are sorted so the key does not
// depend on request ordering.
func Key(text, subject string, difficulty flashcard.Difficulty, focusAreas []string) string {
	prefix := text
	if len(prefix) > hashTextPrefixLen {
		prefix = prefix[:hashTextPrefixLen]
	}

	sorted := make([]string, len(focusAreas))
	copy(sorted, focusAreas)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(prefix))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(difficulty))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
