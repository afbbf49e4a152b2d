package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confhub/confbot/internal/domain"
)

type fakeEvents struct {
	byID map[int64]domain.Event
}

func newFakeEvents(n int) *fakeEvents {
	f := &fakeEvents{byID: make(map[int64]domain.Event)}
	for i := 1; i <= n; i++ {
		id := int64(i)
		f.byID[id] = domain.Event{
			ID:       id,
			Name:     fmt.Sprintf("event-%d", i),
			Date:     "3 Sep",
			Time:     "19:00",
			Location: "Seoul",
			Host:     "host",
			URL:      fmt.Sprintf("https://example.com/%d", i),
		}
	}
	return f
}

func (f *fakeEvents) GetEvent(_ context.Context, id int64) (*domain.Event, error) {
	ev, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ev, nil
}

func (f *fakeEvents) GetEventsByIDs(_ context.Context, ids []int64) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := f.byID[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakeSummarizer struct {
	err error
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "summary of: " + text, nil
}

func TestFormatPageWindowsReproduceWholeList(t *testing.T) {
	ctx := context.Background()
	f := NewFormatter(newFakeEvents(13), &fakeSummarizer{})
	ids := []int64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9}

	require.Equal(t, 3, TotalPages(len(ids)))

	var seen []int64
	for page := 0; page < TotalPages(len(ids)); page++ {
		p, err := f.FormatPage(ctx, ids, page*PageSize, page*PageSize+PageSize)
		require.NoError(t, err)
		require.False(t, p.Single)
		for _, action := range p.Actions {
			id, ok := domain.ParseDetailPayload(action.Data)
			require.True(t, ok)
			seen = append(seen, id)
		}
	}
	// Concatenating all pages' items reproduces the input order exactly,
	// duplicates included.
	assert.Equal(t, ids, seen)
}

func TestFormatPageGlyphsArePositionalPerPage(t *testing.T) {
	ctx := context.Background()
	f := NewFormatter(newFakeEvents(7), &fakeSummarizer{})
	ids := []int64{1, 2, 3, 4, 5, 6, 7}

	p, err := f.FormatPage(ctx, ids, 5, 10)
	require.NoError(t, err)
	require.Len(t, p.Actions, 2)
	// Second page restarts at glyph 1.
	assert.Equal(t, "1️⃣", p.Actions[0].Label)
	assert.Equal(t, "2️⃣", p.Actions[1].Label)
}

func TestFormatPageSingleEventExtendedView(t *testing.T) {
	ctx := context.Background()
	f := NewFormatter(newFakeEvents(3), &fakeSummarizer{})

	p, err := f.FormatPage(ctx, []int64{2}, 0, 5)
	require.NoError(t, err)
	assert.True(t, p.Single)
	require.Len(t, p.Actions, 1)
	id, ok := domain.ParseDetailPayload(p.Actions[0].Data)
	require.True(t, ok)
	assert.Equal(t, int64(2), id)
	assert.Contains(t, p.Text, "event-2")
}

func TestFormatPageHeaderCountsFullSet(t *testing.T) {
	ctx := context.Background()
	f := NewFormatter(newFakeEvents(7), &fakeSummarizer{})

	p, err := f.FormatPage(ctx, []int64{1, 2, 3, 4, 5, 6, 7}, 0, 5)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Text, "Events found: 7\n"))
	assert.Contains(t, p.Text, savedHint)
}

func TestExtendedInfoSummarizerFallback(t *testing.T) {
	ctx := context.Background()
	events := newFakeEvents(1)
	ev := events.byID[1]
	ev.Description = "a long description of the gathering"
	events.byID[1] = ev

	f := NewFormatter(events, &fakeSummarizer{err: errors.New("connection refused")})
	text, err := f.ExtendedInfo(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, text, "a long description of the gathering")
}

func TestExtendedInfoNoDescription(t *testing.T) {
	ctx := context.Background()
	f := NewFormatter(newFakeEvents(1), &fakeSummarizer{})
	text, err := f.ExtendedInfo(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, text, "The event has no description")
}

func TestPageIndicator(t *testing.T) {
	assert.Equal(t, "1/2", PageIndicator(0, 7))
	assert.Equal(t, "2/2", PageIndicator(1, 7))
	assert.Equal(t, "1/1", PageIndicator(0, 0))
	assert.Equal(t, "1/1", PageIndicator(0, 5))
	assert.Equal(t, "1/2", PageIndicator(0, 6))
}

func TestMapSearchURL(t *testing.T) {
	assert.Equal(t,
		"https://www.google.com/maps/search/?api=1&query=Gangnam,+Seoul",
		MapSearchURL("Gangnam, Seoul"))
}
