// Package notify runs the two periodic fan-out loops: a broadcast when new
// events appear and a targeted push when events on someone's private list
// change.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/confhub/confbot/internal/domain"
	store "github.com/confhub/confbot/internal/repository"
	"github.com/confhub/confbot/internal/session"
)

// Sender delivers one outbound message. The websocket hub implements it; a
// recording fake stands in for it in tests.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, keyboard domain.Keyboard) error
}

type Notifier struct {
	store  store.Store
	cache  *session.UpdateCache
	sender Sender

	// Trailing windows the cycles query over.
	newWindow     time.Duration
	updatedWindow time.Duration
}

func New(st store.Store, cache *session.UpdateCache, sender Sender, newWindow, updatedWindow time.Duration) *Notifier {
	return &Notifier{
		store:         st,
		cache:         cache,
		sender:        sender,
		newWindow:     newWindow,
		updatedWindow: updatedWindow,
	}
}

// NewEventsCycle runs one iteration of the new-event loop: if anything was
// added inside the trailing window, every known user gets a count summary
// with a drill-down button. A failed send to one user never stops delivery
// to the rest.
func (n *Notifier) NewEventsCycle(ctx context.Context) error {
	events, err := n.store.EventsAddedSince(ctx, time.Now().Add(-n.newWindow))
	if err != nil {
		return fmt.Errorf("failed to query new events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	users, err := n.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	text := fmt.Sprintf("🆕 %d new events were just added!", len(events))
	if total, err := n.store.CountEvents(ctx); err != nil {
		log.Printf("WARN: failed to count events for broadcast: %v", err)
	} else {
		text = fmt.Sprintf("%s Now tracking %d events in total.", text, total)
	}
	keyboard := domain.Keyboard{{{Label: "Show new events", Data: domain.PayloadViewNewEvents}}}
	for _, u := range users {
		if err := n.sender.Send(ctx, u.ChatID, text, keyboard); err != nil {
			log.Printf("WARN: new-events notify failed for chat %d: %v", u.ChatID, err)
		}
	}
	return nil
}

// UpdatedEventsCycle runs one iteration of the updated-event loop: it
// intersects every private list with the events updated inside the trailing
// window and pushes a summary to each owner whose list was hit. The matched
// ids are stashed per recipient, overwriting whatever an earlier cycle left
// there.
func (n *Notifier) UpdatedEventsCycle(ctx context.Context) error {
	updated, err := n.store.EventsUpdatedSince(ctx, time.Now().Add(-n.updatedWindow))
	if err != nil {
		return fmt.Errorf("failed to query updated events: %w", err)
	}
	if len(updated) == 0 {
		return nil
	}
	updatedSet := make(map[int64]bool, len(updated))
	for _, ev := range updated {
		updatedSet[ev.ID] = true
	}

	lists, err := n.store.ListPrivateLists(ctx)
	if err != nil {
		return fmt.Errorf("failed to list private lists: %w", err)
	}

	keyboard := domain.Keyboard{{{Label: "Show updated events", Data: domain.PayloadViewUpdates}}}
	for _, list := range lists {
		var matched []int64
		for _, id := range list.Members() {
			if updatedSet[id] {
				matched = append(matched, id)
			}
		}
		if len(matched) == 0 {
			continue
		}

		owner, err := n.store.GetUserByID(ctx, list.UserID)
		if err != nil {
			log.Printf("WARN: cannot resolve owner of list %d: %v", list.ID, err)
			continue
		}

		n.cache.Put(owner.ChatID, matched)
		text := fmt.Sprintf("🔄 %d events on your list changed!", len(matched))
		if err := n.sender.Send(ctx, owner.ChatID, text, keyboard); err != nil {
			log.Printf("WARN: updated-events notify failed for chat %d: %v", owner.ChatID, err)
		}
	}
	return nil
}
