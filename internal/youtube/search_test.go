package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<!DOCTYPE html><html><head><script>
var ytInitialData = {"contents":{"twoColumnSearchResultsRenderer":{"primaryContents":{"sectionListRenderer":{"contents":[
 {"itemSectionRenderer":{"contents":[
  {"adSlotRenderer":{"id":"ad"}},
  {"videoRenderer":{"videoId":"abc123","title":{"runs":[{"text":"Python in 100 Seconds"}]},
   "thumbnail":{"thumbnails":[{"url":"https://i.ytimg.com/vi/abc123/hq720.jpg"},{"url":"https://i.ytimg.com/vi/abc123/hqdefault.jpg"}]},
   "longBylineText":{"runs":[{"text":"Fireship"}]},"lengthText":{"simpleText":"2:24"},
   "viewCountText":{"simpleText":"3,000,000 views"},"publishedTimeText":{"simpleText":"3 years ago"},
   "navigationEndpoint":{"commandMetadata":{"webCommandMetadata":{"url":"/watch?v=abc123"}}}}},
  {"videoRenderer":{"videoId":"def456","title":{"runs":[{"text":"Second {brace} \"quoted\""}]}}}
 ]}}
]}}}}};</script></head><body></body></html>`

func TestClientSearchParsesFirstVideo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/results", r.URL.Path)
		assert.Equal(t, "learn python", r.URL.Query().Get("search_query"))
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	videos, err := c.Search(context.Background(), "learn python", 1)
	require.NoError(t, err)
	require.Len(t, videos, 1)

	v := videos[0]
	assert.Equal(t, "abc123", v.ID)
	assert.Equal(t, "Python in 100 Seconds", v.Title)
	assert.Equal(t, []string{
		"https://i.ytimg.com/vi/abc123/hq720.jpg",
		"https://i.ytimg.com/vi/abc123/hqdefault.jpg",
	}, v.Thumbnails)
	assert.Equal(t, "Fireship", v.Channel)
	assert.Equal(t, "2:24", v.Duration)
	assert.Equal(t, "/watch?v=abc123", v.URLSuffix)
}

func TestClientSearchHonorsMaxResults(t *testing.T) {
	t.Parallel()

	videos, err := parseResultsPage(resultsPage, 5)
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "def456", videos[1].ID)
	assert.Equal(t, `Second {brace} "quoted"`, videos[1].Title)
	assert.Empty(t, videos[1].Thumbnails)
}

func TestClientSearchWithoutInitialData(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>consent required</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Search(context.Background(), "x", 1)
	assert.ErrorIs(t, err, ErrNoInitialData)
}

func TestClientSearchNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestMatchingBrace(t *testing.T) {
	t.Parallel()

	s := `x = {"a": "}", "b": {"c": "\"}"}} tail`
	open := 4
	end := matchingBrace(s, open)
	require.Positive(t, end)
	assert.Equal(t, `{"a": "}", "b": {"c": "\"}"}}`, s[open:end+1])
	assert.Equal(t, -1, matchingBrace(`{"unterminated": {`, 0))
}
