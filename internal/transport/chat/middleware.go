package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/confhub/confbot/internal/domain"
	store "github.com/confhub/confbot/internal/repository"
	"github.com/confhub/confbot/internal/service"
	"github.com/confhub/confbot/policy"
)

// NewLoggingMiddleware durably records every handled interaction with its
// response or error for diagnosis.
func NewLoggingMiddleware(st store.Store) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, in Inbound) (*service.View, error) {
			view, err := next(ctx, in)

			entry := &domain.InteractionLog{
				ChatID:   in.ChatID,
				Username: in.Username,
				Message:  in.Text,
			}
			if in.Callback {
				entry.Message = in.Payload
			}
			if view != nil {
				entry.Response = view.Text
			}
			if err != nil {
				entry.Error = err.Error()
			}
			if logErr := st.LogInteraction(ctx, entry); logErr != nil {
				log.Printf("WARN: failed to log interaction for chat %d: %v", in.ChatID, logErr)
			}
			return view, err
		}
	}
}

const (
	floodLimit  = 9
	floodWindow = time.Minute
	floodText   = "Easy there! Too many requests, give it a minute."
)

// NewAntiFloodMiddleware short-circuits chats that exceed floodLimit
// interactions inside a sliding minute.
func NewAntiFloodMiddleware() Middleware {
	var mu sync.Mutex
	recent := make(map[int64][]time.Time)

	return func(next Handler) Handler {
		return func(ctx context.Context, in Inbound) (*service.View, error) {
			now := time.Now()

			mu.Lock()
			window := recent[in.ChatID]
			kept := window[:0]
			for _, t := range window {
				if now.Sub(t) < floodWindow {
					kept = append(kept, t)
				}
			}
			flooding := len(kept) >= floodLimit
			if !flooding {
				kept = append(kept, now)
			}
			recent[in.ChatID] = kept
			mu.Unlock()

			if flooding {
				return &service.View{Text: floodText}, nil
			}
			return next(ctx, in)
		}
	}
}

// NewPolicyMiddleware gates commands through the access policy.
func NewPolicyMiddleware(engine *policy.Engine, adminChats []int64) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, in Inbound) (*service.View, error) {
			command, _ := splitCommand(in.Text)
			if command == "" {
				return next(ctx, in)
			}

			decision, err := engine.Evaluate(ctx, policy.Input{
				ChatID:     in.ChatID,
				Command:    command,
				AdminChats: adminChats,
			})
			if err != nil {
				log.Printf("WARN: policy evaluation failed for chat %d: %v", in.ChatID, err)
				decision = "deny"
			}
			if decision != "allow" {
				return &service.View{Text: "This command is not available to you."}, nil
			}
			return next(ctx, in)
		}
	}
}
