// Package store provides persistence for users, events, curated event
// lists, feedback and interaction logs.
package store

import (
	"context"
	"time"

	"github.com/confhub/confbot/internal/domain"
)

// Store is the persistence interface consumed by the service layer.
type Store interface {
	// Users
	UpsertUser(ctx context.Context, chatID int64, username string) (*domain.User, error)
	GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetFavoriteListIDs(ctx context.Context, userID int64, favoriteListIDs string) error

	// Events. Events are written by the external scraper pipeline;
	// InsertEvent exists for that pipeline and for tests.
	InsertEvent(ctx context.Context, event *domain.Event) (int64, error)
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	// GetEventsByIDs returns events in the order of ids, repeating rows for
	// repeated ids. Unknown ids are skipped.
	GetEventsByIDs(ctx context.Context, ids []int64) ([]domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	FindEventsByTags(ctx context.Context, tags []string) ([]domain.Event, error)
	FindMainEventsByDay(ctx context.Context, day string) ([]domain.Event, error)
	FindMainEventsByLocation(ctx context.Context, location string) ([]domain.Event, error)
	EventsAddedSince(ctx context.Context, cutoff time.Time) ([]domain.Event, error)
	EventsUpdatedSince(ctx context.Context, cutoff time.Time) ([]domain.Event, error)
	CountEvents(ctx context.Context) (int64, error)

	// Event lists
	CreateList(ctx context.Context, list *domain.EventList) (int64, error)
	GetList(ctx context.Context, listID int64) (*domain.EventList, error)
	GetListByUser(ctx context.Context, userID int64, visibility domain.Visibility) (*domain.EventList, error)
	GetListBySecretKey(ctx context.Context, key int64) (*domain.EventList, error)
	ListPrivateLists(ctx context.Context) ([]domain.EventList, error)
	SetListEventIDs(ctx context.Context, listID int64, eventIDs string) error

	// Diagnostics
	LogInteraction(ctx context.Context, entry *domain.InteractionLog) error
	AddFeedback(ctx context.Context, fb *domain.Feedback) error
	CountUsers(ctx context.Context) (int64, error)
	RequestCountsByUser(ctx context.Context) (map[int64]int64, error)

	Close() error
}
