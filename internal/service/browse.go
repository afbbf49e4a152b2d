package service

import (
	"context"
	"fmt"
	"time"
)

// BrowseAll lists every stored event.
func (s *Service) BrowseAll(ctx context.Context, chatID int64) (*View, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return s.renderResults(ctx, chatID, eventIDs(events), "", false)
}

// BrowseTag filters events by a comma-separated tag spec.
func (s *Service) BrowseTag(ctx context.Context, chatID int64, tagSpec string) (*View, error) {
	events, err := s.store.FindEventsByTags(ctx, splitTags(tagSpec))
	if err != nil {
		return nil, fmt.Errorf("failed to search by tags: %w", err)
	}
	return s.renderResults(ctx, chatID, eventIDs(events), tagSpec, false)
}

// BrowseMainEventsByDay lists main-conference agenda entries for one day.
func (s *Service) BrowseMainEventsByDay(ctx context.Context, chatID int64, day string) (*View, error) {
	events, err := s.store.FindMainEventsByDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load agenda for day %q: %w", day, err)
	}
	return s.renderResults(ctx, chatID, eventIDs(events), "", false)
}

// BrowseMainEventsByLocation lists main-conference agenda entries per stage.
func (s *Service) BrowseMainEventsByLocation(ctx context.Context, chatID int64, location string) (*View, error) {
	events, err := s.store.FindMainEventsByLocation(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to load agenda for location %q: %w", location, err)
	}
	return s.renderResults(ctx, chatID, eventIDs(events), "", false)
}

// Search routes a free-text question through the natural-language query
// adapter and browses whatever it resolved.
func (s *Service) Search(ctx context.Context, chatID int64, text string) (*View, error) {
	ids, err := s.nlquery.Query(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("free-text query failed: %w", err)
	}
	return s.renderResults(ctx, chatID, ids, "", false)
}

// ShowNewEvents is the drill-down behind the new-events notification: it
// re-queries the trailing window so the user sees the current state, not a
// snapshot from broadcast time.
func (s *Service) ShowNewEvents(ctx context.Context, chatID int64, window time.Duration) (*View, error) {
	events, err := s.store.EventsAddedSince(ctx, time.Now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to load new events: %w", err)
	}
	return s.renderResults(ctx, chatID, eventIDs(events), "", false)
}

// ShowUpdatedEvents is the drill-down behind the updated-events
// notification. It browses the ids stashed for this user by the most recent
// cycle only.
func (s *Service) ShowUpdatedEvents(ctx context.Context, chatID int64) (*View, error) {
	ids, err := s.updates.Get(chatID)
	if err != nil {
		return &View{Text: "No recent updates for your saved events."}, nil
	}
	return s.renderResults(ctx, chatID, ids, "", false)
}
