package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/confhub/confbot/internal/domain"
	"github.com/confhub/confbot/internal/navigation"
	"github.com/confhub/confbot/internal/service"
	"github.com/confhub/confbot/internal/sharing"
)

// Inbound is one user interaction after frame decoding: either a text
// message or a button press carrying a payload.
type Inbound struct {
	ChatID    int64
	Username  string
	Text      string
	Payload   string
	MessageID string
	Callback  bool
}

// Handler turns an interaction into the view to deliver. A nil view means
// nothing needs to be sent.
type Handler func(ctx context.Context, in Inbound) (*service.View, error)

// Middleware wraps a handler with a cross-cutting stage.
type Middleware func(Handler) Handler

// Sender delivers dispatcher replies. The hub implements it.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, keyboard domain.Keyboard) error
	Edit(ctx context.Context, chatID int64, messageID, text string, keyboard domain.Keyboard) error
}

const (
	notFoundText = "Not found, please enter again."
	upstreamText = "Something went wrong on our side, please try again later."
)

// Dispatcher routes interactions to the service layer through the
// middleware chain and delivers the resulting view.
type Dispatcher struct {
	svc             *service.Service
	sender          Sender
	handler         Handler
	newEventsWindow time.Duration
}

// NewDispatcher composes the chain around the route table. Middlewares run
// outermost-first in the order given.
func NewDispatcher(svc *service.Service, sender Sender, newEventsWindow time.Duration, mws ...Middleware) *Dispatcher {
	d := &Dispatcher{svc: svc, sender: sender, newEventsWindow: newEventsWindow}
	h := d.route
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	d.handler = h
	return d
}

// Dispatch handles one interaction end to end. Handler failures are
// converted to a user-facing message here and never propagate raw.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) {
	view, err := d.handler(ctx, in)
	if err != nil {
		view = failureView(err)
		log.Printf("ERROR: handler failed for chat %d (input %q%s): %v",
			in.ChatID, in.Text, payloadSuffix(in), err)
	}
	if view == nil {
		return
	}

	if view.Edit && in.MessageID != "" {
		if err := d.sender.Edit(ctx, in.ChatID, in.MessageID, view.Text, view.Keyboard); err != nil {
			log.Printf("WARN: edit failed for chat %d: %v", in.ChatID, err)
		}
		return
	}
	if err := d.sender.Send(ctx, in.ChatID, view.Text, view.Keyboard); err != nil {
		log.Printf("WARN: send failed for chat %d: %v", in.ChatID, err)
	}
}

func payloadSuffix(in Inbound) string {
	if !in.Callback {
		return ""
	}
	return fmt.Sprintf(", payload %q", in.Payload)
}

// failureView maps the error taxonomy to what the user sees. A lookup miss
// and a malformed input read the same on purpose.
func failureView(err error) *service.View {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrDecodeFailure) {
		return &service.View{Text: notFoundText}
	}
	return &service.View{Text: upstreamText}
}

func (d *Dispatcher) route(ctx context.Context, in Inbound) (*service.View, error) {
	if in.Callback {
		return d.routeCallback(ctx, in)
	}
	return d.routeText(ctx, in)
}

func (d *Dispatcher) routeCallback(ctx context.Context, in Inbound) (*service.View, error) {
	payload := in.Payload
	switch payload {
	case domain.PayloadNoop:
		return nil, nil
	case domain.PayloadBackToList:
		return d.svc.BackToList(ctx, in.ChatID)
	case domain.PayloadShareList:
		return d.svc.ShareKey(ctx, in.ChatID)
	case domain.PayloadViewNewEvents:
		return d.svc.ShowNewEvents(ctx, in.ChatID, d.newEventsWindow)
	case domain.PayloadViewUpdates:
		return d.svc.ShowUpdatedEvents(ctx, in.ChatID)
	}

	if navigation.IsToken(payload) {
		return d.svc.Navigate(ctx, payload)
	}
	if id, ok := domain.ParseDetailPayload(payload); ok {
		return d.svc.EventDetail(ctx, in.ChatID, id)
	}
	if eventID, listID, add, ok := domain.ParseListMutationPayload(payload); ok {
		return d.svc.MutateList(ctx, in.ChatID, eventID, listID, add)
	}
	if listID, ok := domain.ParseFavoritePayload(payload); ok {
		return d.svc.ToggleFavorite(ctx, in.ChatID, listID)
	}
	if listID, ok := domain.ParseShowListPayload(payload); ok {
		return d.svc.ShowList(ctx, in.ChatID, listID)
	}
	if tag, ok := domain.ParseTagPayload(payload); ok {
		return d.svc.BrowseTag(ctx, in.ChatID, tag)
	}
	if day, ok := domain.ParseDayPayload(payload); ok {
		return d.svc.BrowseMainEventsByDay(ctx, in.ChatID, day)
	}
	if loc, ok := domain.ParseLocationPayload(payload); ok {
		return d.svc.BrowseMainEventsByLocation(ctx, in.ChatID, loc)
	}
	return nil, fmt.Errorf("unknown payload %q: %w", payload, domain.ErrDecodeFailure)
}

func (d *Dispatcher) routeText(ctx context.Context, in Inbound) (*service.View, error) {
	text := strings.TrimSpace(in.Text)
	command, arg := splitCommand(text)

	switch command {
	case "/start":
		return d.svc.Start(ctx, in.ChatID, in.Username)
	case "/all":
		return d.svc.BrowseAll(ctx, in.ChatID)
	case "/myevents":
		return d.svc.MyEvents(ctx, in.ChatID, domain.VisibilityPrivate)
	case "/mypublic":
		return d.svc.MyEvents(ctx, in.ChatID, domain.VisibilityPublic)
	case "/favorites":
		return d.svc.Favorites(ctx, in.ChatID)
	case "/tag":
		if arg == "" {
			return &service.View{Text: "Name a tag after the command, like: /tag party"}, nil
		}
		return d.svc.BrowseTag(ctx, in.ChatID, arg)
	case "/agenda":
		if arg == "" {
			return &service.View{Text: "Name the day after the command, like: /agenda 3 Sep"}, nil
		}
		return d.svc.BrowseMainEventsByDay(ctx, in.ChatID, arg)
	case "/stage":
		if arg == "" {
			return &service.View{Text: "Name the stage after the command, like: /stage Main Hall"}, nil
		}
		return d.svc.BrowseMainEventsByLocation(ctx, in.ChatID, arg)
	case "/feedback":
		if arg == "" {
			return &service.View{Text: "Write your feedback after the command, like: /feedback loved the keynote"}, nil
		}
		return d.svc.AddFeedback(ctx, in.ChatID, in.Username, arg)
	case "/stats_users":
		return d.svc.CountUsers(ctx)
	case "/stats_requests":
		return d.svc.AverageRequests(ctx)
	}

	if sharing.LooksLikeKey(text) {
		return d.svc.ResolveSharedKey(ctx, in.ChatID, text)
	}

	// Free-text questions can take minutes to resolve; acknowledge first.
	if err := d.sender.Send(ctx, in.ChatID, "Looking for events, this can take a minute…", nil); err != nil {
		log.Printf("WARN: search ack failed for chat %d: %v", in.ChatID, err)
	}
	return d.svc.Search(ctx, in.ChatID, text)
}

func splitCommand(text string) (string, string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	command, arg, _ := strings.Cut(text, " ")
	return command, strings.TrimSpace(arg)
}
