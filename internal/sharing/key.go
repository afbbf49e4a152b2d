// Package sharing implements the share-key scheme for private lists. A raw
// list key is run through a reversible obfuscation and prefixed with a fixed
// literal so pasted keys are recognizable in free text.
package sharing

import (
	"strconv"
	"strings"

	"github.com/confhub/confbot/internal/domain"
)

// KeyPrefix is the literal tag carried by every encoded share key.
const KeyPrefix = "PB"

const (
	keyOffset     = 17771
	keyMultiplier = 7
)

// EncodeKey obfuscates a raw list key into its shareable form.
func EncodeKey(key int64) string {
	return KeyPrefix + strconv.FormatInt((key+keyOffset)*keyMultiplier, 10)
}

// DecodeKey reverses EncodeKey. Any malformed input - wrong prefix, junk
// digits, values outside the encoding's image - reports
// domain.ErrDecodeFailure; callers render it exactly like a lookup miss.
func DecodeKey(encoded string) (int64, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(encoded), KeyPrefix)
	if !ok {
		return 0, domain.ErrDecodeFailure
	}
	n, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, domain.ErrDecodeFailure
	}
	if n%keyMultiplier != 0 {
		return 0, domain.ErrDecodeFailure
	}
	key := n/keyMultiplier - keyOffset
	if key < 0 {
		return 0, domain.ErrDecodeFailure
	}
	return key, nil
}

// LooksLikeKey reports whether free text starts with the share-key tag, so
// the dispatcher can route it to the key lookup instead of the search path.
func LooksLikeKey(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), KeyPrefix)
}
