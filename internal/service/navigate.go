package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/confhub/confbot/internal/domain"
	"github.com/confhub/confbot/internal/navigation"
	"github.com/confhub/confbot/internal/render"
)

func navRow(page int, chatID int64, count int, tag string, myList bool) []domain.Action {
	return navigation.Keyboard(page, strconv.FormatInt(chatID, 10), count, tag, myList)
}

// Navigate handles a press on a directional paging button. The token
// addresses the session; the transition is computed from the token and
// clamped against the live session, then the window is re-rendered in
// place.
func (s *Service) Navigate(ctx context.Context, payload string) (*View, error) {
	token, err := navigation.DecodeToken(payload)
	if err != nil {
		return nil, err
	}
	chatID, err := strconv.ParseInt(token.Key, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad session key %q: %w", token.Key, domain.ErrDecodeFailure)
	}

	sess, err := s.sessions.Get(chatID)
	if err != nil {
		return nil, fmt.Errorf("no session for %d: %w", chatID, err)
	}

	page := navigation.NextPage(token, len(sess.EventIDs))
	if err := s.sessions.SetPage(chatID, page); err != nil {
		return nil, err
	}

	return s.renderSessionPage(ctx, chatID, sess.EventIDs, page, token.Count, token.Tag, token.MyList)
}

// BackToList returns from a detail view to the page the user was on.
func (s *Service) BackToList(ctx context.Context, chatID int64) (*View, error) {
	sess, err := s.sessions.Get(chatID)
	if err != nil {
		return nil, fmt.Errorf("no session for %d: %w", chatID, err)
	}
	return s.renderSessionPage(ctx, chatID, sess.EventIDs, sess.Page, len(sess.EventIDs), sess.Tag, sess.MyList)
}

func (s *Service) renderSessionPage(ctx context.Context, chatID int64, ids []int64, pageNum, count int, tag string, myList bool) (*View, error) {
	page, err := s.formatter.FormatPage(ctx, ids, pageNum*render.PageSize, pageNum*render.PageSize+render.PageSize)
	if err != nil {
		return nil, err
	}
	return &View{
		Text:     page.Text,
		Keyboard: s.keyboard(page, pageNum, chatID, count, tag, myList),
		Edit:     true,
	}, nil
}
