package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifepilot/internal/flex"
	"lifepilot/internal/youtube"
)

type fakeSearcher struct {
	videos  []youtube.Video
	err     error
	queries []string
	max     []int
}

func (f *fakeSearcher) Search(_ context.Context, query string, maxResults int) ([]youtube.Video, error) {
	f.queries = append(f.queries, query)
	f.max = append(f.max, maxResults)
	return f.videos, f.err
}

type countingObserver map[Outcome]int

func (c countingObserver) LookupDone(o Outcome) { c[o]++ }

func TestLookupHit(t *testing.T) {
	s := &fakeSearcher{videos: []youtube.Video{{
		ID:         "abc123",
		Title:      "Python in 100 Seconds",
		Thumbnails: []string{"https://img/1.jpg", "https://img/2.jpg"},
	}}}
	obs := countingObserver{}
	f := NewFinder(s, obs)

	res, ok := f.LookupQuery(context.Background(), "learn python")
	require.True(t, ok)
	assert.Equal(t, "Python in 100 Seconds", res.Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", res.Link)
	assert.Equal(t, "https://img/1.jpg", res.Thumbnail)
	assert.Equal(t, []int{1}, s.max)
	assert.Equal(t, 1, obs[OutcomeHit])
}

func TestLookupMissingThumbnailIsEmpty(t *testing.T) {
	s := &fakeSearcher{videos: []youtube.Video{{ID: "x", Title: "T"}}}
	res, ok := NewFinder(s, nil).LookupQuery(context.Background(), "q")
	require.True(t, ok)
	assert.Equal(t, "", res.Thumbnail)
}

func TestLookupFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		searcher *fakeSearcher
	}{
		{name: "search error", searcher: &fakeSearcher{err: errors.New("network down")}},
		{name: "no results", searcher: &fakeSearcher{}},
		{name: "missing id", searcher: &fakeSearcher{videos: []youtube.Video{{Title: "T"}}}},
		{name: "missing title", searcher: &fakeSearcher{videos: []youtube.Video{{ID: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := countingObserver{}
			res, ok := NewFinder(tt.searcher, obs).LookupQuery(context.Background(), "rust async")
			require.True(t, ok)
			assert.Equal(t, "Search: rust async", res.Title)
			assert.Contains(t, res.Link, "rust async")
			assert.Equal(t, PlaceholderThumbnail, res.Thumbnail)
			assert.Equal(t, 1, obs[OutcomeFallback])
			assert.Len(t, tt.searcher.queries, 1)
		})
	}
}

func TestLookupWithoutSearcher(t *testing.T) {
	res, ok := NewFinder(nil, nil).LookupQuery(context.Background(), "q")
	require.True(t, ok)
	assert.Equal(t, Fallback("q"), res)
}

func TestLookupNormalizesFlexibleQueries(t *testing.T) {
	s := &fakeSearcher{err: errors.New("offline")}
	f := NewFinder(s, nil)

	res, ok := f.Lookup(context.Background(), flex.Strings("learn", "go", "fast"))
	require.True(t, ok)
	assert.Equal(t, "Search: learn go fast", res.Title)

	res, ok = f.Lookup(context.Background(), flex.NewNumber("42"))
	require.True(t, ok)
	assert.Equal(t, "Search: 42", res.Title)

	assert.Equal(t, []string{"learn go fast", "42"}, s.queries)
}

func TestLookupEmptyQueries(t *testing.T) {
	s := &fakeSearcher{}
	f := NewFinder(s, nil)

	for _, q := range []flex.Value{flex.NewNull(), flex.NewString(""), flex.NewList()} {
		_, ok := f.Lookup(context.Background(), q)
		assert.False(t, ok, q.String())
	}
	_, ok := f.LookupQuery(context.Background(), "")
	assert.False(t, ok)
	assert.Empty(t, s.queries)
}
