// Package resource is the lookup façade in front of the video search. A
// lookup never fails: when the search errors or returns nothing usable the
// caller gets a deterministic record pointing at the search-results page.
package resource

import (
	"context"
	"errors"
	"strings"

	"lifepilot/internal/flex"
	appLog "lifepilot/internal/log"
	"lifepilot/internal/model"
	"lifepilot/internal/youtube"
)

const (
	searchResultsURL     = "https://www.youtube.com/results?search_query="
	watchURL             = "https://www.youtube.com/watch?v="
	PlaceholderThumbnail = "https://via.placeholder.com/300x200?text=YouTube"
)

// Outcome classifies a lookup for observers.
type Outcome string

const (
	OutcomeHit      Outcome = "hit"
	OutcomeFallback Outcome = "fallback"
)

// Observer receives one notification per performed lookup.
type Observer interface {
	LookupDone(outcome Outcome)
}

// Finder resolves queries to resources through a youtube.Searcher.
type Finder struct {
	searcher youtube.Searcher
	observer Observer
}

// NewFinder wraps searcher. observer may be nil.
func NewFinder(searcher youtube.Searcher, observer Observer) *Finder {
	return &Finder{searcher: searcher, observer: observer}
}

// Lookup normalizes a loosely typed query and resolves it. Lists are joined
// with single spaces and scalars are coerced to text. ok is false, with no
// search performed, when the query is null or empty.
func (f *Finder) Lookup(ctx context.Context, q flex.Value) (model.Resource, bool) {
	if !q.Truthy() {
		return model.Resource{}, false
	}
	if q.IsList() {
		parts := make([]string, 0, q.Len())
		for _, item := range q.Items() {
			parts = append(parts, item.String())
		}
		return f.LookupQuery(ctx, strings.Join(parts, " "))
	}
	return f.LookupQuery(ctx, q.String())
}

// LookupQuery resolves a plain query string; ok is false only for "".
func (f *Finder) LookupQuery(ctx context.Context, query string) (model.Resource, bool) {
	if query == "" {
		return model.Resource{}, false
	}

	fallback := Fallback(query)

	res, err := f.search(ctx, query)
	if err != nil {
		appLog.Error("resource lookup failed; using search-results fallback", err, "query", query)
		f.observe(OutcomeFallback)
		return fallback, true
	}
	f.observe(OutcomeHit)
	return res, true
}

// Fallback is the record returned when a search cannot produce a video.
func Fallback(query string) model.Resource {
	return model.Resource{
		Title:     "Search: " + query,
		Link:      searchResultsURL + query,
		Thumbnail: PlaceholderThumbnail,
	}
}

var errNoUsableResult = errors.New("resource: search returned no usable result")

func (f *Finder) search(ctx context.Context, query string) (model.Resource, error) {
	if f == nil || f.searcher == nil {
		return model.Resource{}, errors.New("resource: no searcher configured")
	}

	videos, err := f.searcher.Search(ctx, query, 1)
	if err != nil {
		return model.Resource{}, err
	}
	if len(videos) == 0 {
		return model.Resource{}, errNoUsableResult
	}

	v := videos[0]
	if v.ID == "" || v.Title == "" {
		return model.Resource{}, errNoUsableResult
	}

	thumb := ""
	if len(v.Thumbnails) > 0 {
		thumb = v.Thumbnails[0]
	}
	return model.Resource{
		Title:     v.Title,
		Link:      watchURL + v.ID,
		Thumbnail: thumb,
	}, nil
}

func (f *Finder) observe(o Outcome) {
	if f != nil && f.observer != nil {
		f.observer.LookupDone(o)
	}
}
