// Package navigation implements the paging engine: the compact token
// embedded in every directional button and the page-transition rules applied
// when one is pressed.
package navigation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/confhub/confbot/internal/domain"
)

// Directions a paging button can take.
const (
	ActionPrev = "prev"
	ActionNext = "next"
)

// tokenPrefix marks a callback payload as a paging token.
const tokenPrefix = "pg"

const tokenFields = 7

// Token is the state a directional button carries: enough to find the
// session, compute the transition and rebuild the buttons without
// re-querying the producer. It must round-trip exactly through the
// transport's size-limited callback payload.
type Token struct {
	Action string
	Page   int
	// Key addresses the session in the session store (the chat id in
	// string form).
	Key string
	// Count is the result-set size at token-issue time. It sizes the page
	// indicator; transitions re-clamp against the live session, so a stale
	// count cannot push the page out of range.
	Count  int
	Tag    string
	MyList bool
}

// Encode renders the compact wire form.
func (t Token) Encode() string {
	myList := "0"
	if t.MyList {
		myList = "1"
	}
	// The separator is reserved; tags never contain it (see producers),
	// but normalize anyway so the payload always splits back cleanly.
	tag := strings.ReplaceAll(t.Tag, ":", "-")
	return strings.Join([]string{
		tokenPrefix, t.Action, strconv.Itoa(t.Page), t.Key,
		strconv.Itoa(t.Count), tag, myList,
	}, ":")
}

// DecodeToken parses a callback payload. Anything that does not round-trip
// reports domain.ErrDecodeFailure.
func DecodeToken(payload string) (Token, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != tokenFields || parts[0] != tokenPrefix {
		return Token{}, fmt.Errorf("bad paging payload: %w", domain.ErrDecodeFailure)
	}
	if parts[1] != ActionPrev && parts[1] != ActionNext {
		return Token{}, fmt.Errorf("bad paging action %q: %w", parts[1], domain.ErrDecodeFailure)
	}
	page, err := strconv.Atoi(parts[2])
	if err != nil || page < 0 {
		return Token{}, fmt.Errorf("bad page number: %w", domain.ErrDecodeFailure)
	}
	count, err := strconv.Atoi(parts[4])
	if err != nil || count < 0 {
		return Token{}, fmt.Errorf("bad result count: %w", domain.ErrDecodeFailure)
	}
	return Token{
		Action: parts[1],
		Page:   page,
		Key:    parts[3],
		Count:  count,
		Tag:    parts[5],
		MyList: parts[6] == "1",
	}, nil
}

// IsToken reports whether a callback payload is a paging token.
func IsToken(payload string) bool {
	return strings.HasPrefix(payload, tokenPrefix+":")
}
