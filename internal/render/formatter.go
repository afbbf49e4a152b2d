// Package render turns ordered event-id lists into display text and
// per-item action buttons.
package render

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/confhub/confbot/internal/domain"
)

// PageSize is the hard page size of every multi-event view.
const PageSize = 5

// pageGlyphs are the ordinal buttons; position 0 of a page slice gets glyph
// 1, per page, not globally.
var pageGlyphs = [PageSize]string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣"}

const savedHint = "❤️ Save event into favourites by pressing the corresponding button below."

// EventSource is the read surface the formatter needs from the store.
type EventSource interface {
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	GetEventsByIDs(ctx context.Context, ids []int64) ([]domain.Event, error)
}

// Summarizer condenses an event description for the extended view.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Formatter renders result pages.
type Formatter struct {
	events     EventSource
	summarizer Summarizer
}

func NewFormatter(events EventSource, summarizer Summarizer) *Formatter {
	return &Formatter{events: events, summarizer: summarizer}
}

// Page is one rendered window of a result set: the display text and one
// detail-view action per shown item.
type Page struct {
	Text    string
	Actions []domain.Action
	// Single is set when the whole result set had exactly one member and
	// was rendered as the extended view.
	Single bool
}

// FormatPage renders the [skip:limit) window of ids. A one-element full set
// gets the extended single-event view regardless of the window.
func (f *Formatter) FormatPage(ctx context.Context, ids []int64, skip, limit int) (*Page, error) {
	if len(ids) == 1 {
		text, err := f.ExtendedInfo(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		return &Page{
			Text:    text,
			Actions: []domain.Action{{Label: pageGlyphs[0], Data: domain.DetailPayload(ids[0])}},
			Single:  true,
		}, nil
	}

	events, err := f.events.GetEventsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	if skip < 0 {
		skip = 0
	}
	if limit > len(events) {
		limit = len(events)
	}
	var window []domain.Event
	if skip < limit {
		window = events[skip:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Events found: %d\n", len(events))

	actions := make([]domain.Action, 0, len(window))
	for i, ev := range window {
		glyph := ""
		if i < PageSize {
			glyph = pageGlyphs[i]
		}
		fmt.Fprintf(&b, `
%s *%s*
🕒*Date*: %s %s
📍*Location*: [%s](%s)
⭐*Host*: %s
🌐*Event Page*: [Link](%s)
`,
			glyph, ev.Name,
			orNotIndicated(ev.Date), ev.Time,
			ev.Location, MapSearchURL(ev.Location),
			orNotIndicated(strings.ReplaceAll(ev.Host, ",", ", ")),
			ev.URL)
		actions = append(actions, domain.Action{Label: glyph, Data: domain.DetailPayload(ev.ID)})
	}

	b.WriteString(savedHint)
	return &Page{Text: b.String(), Actions: actions}, nil
}

// ExtendedInfo renders the full single-event view with the AI summary.
func (f *Formatter) ExtendedInfo(ctx context.Context, eventID int64) (string, error) {
	ev, err := f.events.GetEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("failed to load event %d: %w", eventID, err)
	}

	summary := "The event has no description"
	if ev.Description != "" {
		summary, err = f.summarizer.Summarize(ctx, ev.Description)
		if err != nil {
			// Degrade to the raw description; a dead summarizer must not
			// take down the detail view.
			log.Printf("WARN: summarizer failed for event %d: %v", eventID, err)
			summary = truncate(ev.Description, 300)
		}
	}

	return fmt.Sprintf(`*%s*
🕒*Date event*: %s
📍*Location event*: %s
⭐*Host event*: %s
🎙️*Speakers*: %s

🌐*AI generated summary*: %s
`, ev.Name, ev.Date, ev.Location, ev.Host, ev.Speakers, summary), nil
}

// TotalPages is the page count for a result-set size.
func TotalPages(count int) int {
	if count <= 0 {
		return 1
	}
	return (count + PageSize - 1) / PageSize
}

// PageIndicator renders the "current/total" label between the arrows.
func PageIndicator(page, count int) string {
	return fmt.Sprintf("%d/%d", page+1, TotalPages(count))
}

// MapSearchURL turns a raw location string into a map-search link.
func MapSearchURL(location string) string {
	return "https://www.google.com/maps/search/?api=1&query=" + strings.ReplaceAll(location, " ", "+")
}

func orNotIndicated(s string) string {
	if s == "" {
		return "not indicated"
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
