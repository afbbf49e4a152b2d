package helpers

import (
	"context"
	"sync"

	"github.com/confhub/confbot/internal/domain"
)

// SentMessage is one message recorded by FakeSender.
type SentMessage struct {
	ChatID    int64
	MessageID string
	Text      string
	Keyboard  domain.Keyboard
	Edited    bool
}

// FakeSender records outbound messages and can be told to fail for chosen
// chats.
type FakeSender struct {
	mu      sync.Mutex
	sent    []SentMessage
	failFor map[int64]error
}

func NewFakeSender() *FakeSender {
	return &FakeSender{failFor: make(map[int64]error)}
}

// FailFor makes every send to chatID return err.
func (f *FakeSender) FailFor(chatID int64, err error) {
	f.mu.Lock()
	f.failFor[chatID] = err
	f.mu.Unlock()
}

func (f *FakeSender) Send(_ context.Context, chatID int64, text string, keyboard domain.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, SentMessage{ChatID: chatID, Text: text, Keyboard: keyboard})
	return nil
}

func (f *FakeSender) Edit(_ context.Context, chatID int64, messageID, text string, keyboard domain.Keyboard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, SentMessage{ChatID: chatID, MessageID: messageID, Text: text, Keyboard: keyboard, Edited: true})
	return nil
}

// Sent returns a copy of everything delivered so far.
func (f *FakeSender) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// SentTo filters deliveries by recipient.
func (f *FakeSender) SentTo(chatID int64) []SentMessage {
	var out []SentMessage
	for _, m := range f.Sent() {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}
