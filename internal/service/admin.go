package service

import (
	"context"
	"fmt"

	"github.com/confhub/confbot/internal/domain"
)

// CountUsers reports how many users have talked to the bot.
func (s *Service) CountUsers(ctx context.Context) (*View, error) {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	return &View{Text: fmt.Sprintf("Registered users: %d", n)}, nil
}

// AverageRequests reports the mean number of handled requests per user.
func (s *Service) AverageRequests(ctx context.Context) (*View, error) {
	counts, err := s.store.RequestCountsByUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load request counts: %w", err)
	}
	if len(counts) == 0 {
		return &View{Text: "No requests logged yet."}, nil
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	avg := float64(total) / float64(len(counts))
	return &View{Text: fmt.Sprintf("Average requests per user: %.1f", avg)}, nil
}

// AddFeedback stores a free-text note from the user.
func (s *Service) AddFeedback(ctx context.Context, chatID int64, username, text string) (*View, error) {
	err := s.store.AddFeedback(ctx, &domain.Feedback{
		ChatID:   chatID,
		Username: username,
		Text:     text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	return &View{Text: "Thanks, your feedback is recorded!"}, nil
}
