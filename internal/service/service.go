// Package service implements the bot's use cases on top of the persistence
// layer, the in-memory session state and the rendering engine. Handlers in
// the transport layer call into here and do nothing but decode/encode
// frames.
package service

import (
	"context"
	"strings"

	"github.com/confhub/confbot/internal/domain"
	"github.com/confhub/confbot/internal/render"
	store "github.com/confhub/confbot/internal/repository"
	"github.com/confhub/confbot/internal/session"
)

// NLQuery resolves a free-text question into a list of event ids. The
// adapter behind it owns its own (long) timeout.
type NLQuery interface {
	Query(ctx context.Context, text string) ([]int64, error)
}

// View is what a use case hands back to the transport: display text plus
// the keyboard to attach. Edit asks the transport to replace the message
// the user interacted with instead of sending a new one.
type View struct {
	Text     string
	Keyboard domain.Keyboard
	Edit     bool
}

type Service struct {
	store     store.Store
	sessions  *session.Store
	updates   *session.UpdateCache
	formatter *render.Formatter
	nlquery   NLQuery
}

func New(st store.Store, sessions *session.Store, updates *session.UpdateCache, formatter *render.Formatter, nlquery NLQuery) *Service {
	return &Service{
		store:     st,
		sessions:  sessions,
		updates:   updates,
		formatter: formatter,
		nlquery:   nlquery,
	}
}

const noResultsText = "No events found for your request, please try again."

// renderResults is the shared tail of every result-set producer: store the
// ids as the user's session, render page 0 and assemble the keyboard.
func (s *Service) renderResults(ctx context.Context, chatID int64, ids []int64, tag string, myList bool) (*View, error) {
	if len(ids) == 0 {
		return &View{Text: noResultsText}, nil
	}

	s.sessions.Put(chatID, ids, 0, tag, myList)

	page, err := s.formatter.FormatPage(ctx, ids, 0, render.PageSize)
	if err != nil {
		return nil, err
	}
	return &View{Text: page.Text, Keyboard: s.keyboard(page, 0, chatID, len(ids), tag, myList)}, nil
}

// keyboard assembles the rows for one rendered page: the per-item buttons,
// then for multi-event views the paging row, then for owned lists the share
// row.
func (s *Service) keyboard(page *render.Page, pageNum int, chatID int64, count int, tag string, myList bool) domain.Keyboard {
	kb := domain.Keyboard{page.Actions}
	if page.Single {
		return kb
	}
	kb = append(kb, navRow(pageNum, chatID, count, tag, myList))
	if myList {
		kb = append(kb, []domain.Action{{Label: "Share List 🔗", Data: domain.PayloadShareList}})
	}
	return kb
}

func splitTags(spec string) []string {
	parts := strings.Split(spec, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}

func eventIDs(events []domain.Event) []int64 {
	ids := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}
