package navigation

import (
	"github.com/confhub/confbot/internal/domain"

	"github.com/confhub/confbot/internal/render"
)

// NextPage applies a directional transition. The ceiling from the token's
// issue-time count bounds the forward step, and the result is re-clamped
// against the live result-set size so a list that shrank between issue and
// press can never land the user past the end.
func NextPage(t Token, liveCount int) int {
	page := t.Page
	switch t.Action {
	case ActionPrev:
		if page > 0 {
			page--
		}
	case ActionNext:
		if page < t.Count/render.PageSize {
			page++
		}
	}

	maxPage := 0
	if liveCount > 0 {
		maxPage = (liveCount - 1) / render.PageSize
	}
	if page > maxPage {
		page = maxPage
	}
	if page < 0 {
		page = 0
	}
	return page
}

// Keyboard builds the directional row for a result set: prev, the
// "page/total" indicator, next. When myList is set the caller appends the
// share row after it.
func Keyboard(page int, key string, count int, tag string, myList bool) []domain.Action {
	prev := Token{Action: ActionPrev, Page: page, Key: key, Count: count, Tag: tag, MyList: myList}
	next := Token{Action: ActionNext, Page: page, Key: key, Count: count, Tag: tag, MyList: myList}
	return []domain.Action{
		{Label: "⬅", Data: prev.Encode()},
		{Label: render.PageIndicator(page, count), Data: domain.PayloadNoop},
		{Label: "➡", Data: next.Encode()},
	}
}
