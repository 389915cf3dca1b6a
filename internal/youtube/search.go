// Package youtube searches YouTube videos by scraping the public results page,
// the same way the youtube_search tooling does: the page embeds its initial
// state as a `ytInitialData` JSON blob, which we locate and walk for
// videoRenderer entries.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	appLog "lifepilot/internal/log"
)

const (
	DefaultBaseURL = "https://www.youtube.com"
	defaultTimeout = 15 * time.Second

	// maxPageBytes bounds how much of the results page we read.
	maxPageBytes = 8 << 20
)

// ErrNoInitialData means the page did not carry the ytInitialData blob
// (consent wall, bot check, layout change).
var ErrNoInitialData = errors.New("youtube: ytInitialData not found in results page")

// Video is a single search hit. Fields the page did not provide stay empty.
type Video struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Thumbnails  []string `json:"thumbnails"`
	Channel     string   `json:"channel,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	Views       string   `json:"views,omitempty"`
	PublishTime string   `json:"publish_time,omitempty"`
	URLSuffix   string   `json:"url_suffix,omitempty"`
}

// Searcher abstracts the video search so the lookup façade can be tested
// with fakes.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Video, error)
}

// Client scrapes the YouTube results page over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client. An empty baseURL selects DefaultBaseURL and
// a non-positive timeout selects 15s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Search performs exactly one results-page request and returns at most
// maxResults videos in page order.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Video, error) {
	if c == nil {
		return nil, errors.New("youtube: client is nil")
	}
	if maxResults <= 0 {
		maxResults = 1
	}

	endpoint := c.baseURL + "/results?search_query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	appLog.Debug("youtube search start", "query", query, "max_results", maxResults)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube: status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("youtube: read body: %w", err)
	}

	videos, err := parseResultsPage(string(body), maxResults)
	if err != nil {
		return nil, err
	}
	appLog.Debug("youtube search done", "query", query, "result_count", len(videos))
	return videos, nil
}

// parseResultsPage extracts the ytInitialData object from page HTML and
// collects videoRenderer entries in document order.
func parseResultsPage(page string, maxResults int) ([]Video, error) {
	raw, err := initialData(page)
	if err != nil {
		return nil, err
	}

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("youtube: decode ytInitialData: %w", err)
	}

	out := make([]Video, 0, maxResults)
	walkRenderers(data, func(r map[string]any) bool {
		out = append(out, videoFromRenderer(r))
		return len(out) < maxResults
	})
	return out, nil
}

// initialData slices the JSON object assigned to ytInitialData out of page.
func initialData(page string) (string, error) {
	const marker = "ytInitialData"
	i := strings.Index(page, marker)
	if i < 0 {
		return "", ErrNoInitialData
	}
	start := strings.IndexByte(page[i:], '{')
	if start < 0 {
		return "", ErrNoInitialData
	}
	start += i

	end := matchingBrace(page, start)
	if end < 0 {
		return "", ErrNoInitialData
	}
	return page[start : end+1], nil
}

// matchingBrace returns the index of the '}' closing the object opened at
// open, honoring JSON string escapes, or -1.
func matchingBrace(s string, open int) int {
	depth := 0
	inString := false
	escape := false
	for i := open; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escape:
				escape = false
			case ch == '\\':
				escape = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// walkRenderers visits every "videoRenderer" object depth-first in document
// order until visit returns false.
func walkRenderers(node any, visit func(map[string]any) bool) bool {
	switch n := node.(type) {
	case map[string]any:
		if r, ok := n["videoRenderer"].(map[string]any); ok {
			return visit(r)
		}
		// Sorted keys keep the walk deterministic; result order itself comes
		// from the lists the page nests renderers in.
		for _, k := range slices.Sorted(maps.Keys(n)) {
			if !walkRenderers(n[k], visit) {
				return false
			}
		}
	case []any:
		for _, child := range n {
			if !walkRenderers(child, visit) {
				return false
			}
		}
	}
	return true
}

func videoFromRenderer(r map[string]any) Video {
	v := Video{
		ID:          str(r["videoId"]),
		Title:       runsText(r["title"]),
		Channel:     runsText(r["longBylineText"]),
		Duration:    simpleText(r["lengthText"]),
		Views:       simpleText(r["viewCountText"]),
		PublishTime: simpleText(r["publishedTimeText"]),
	}
	if thumb, ok := r["thumbnail"].(map[string]any); ok {
		if list, ok := thumb["thumbnails"].([]any); ok {
			for _, t := range list {
				if tm, ok := t.(map[string]any); ok {
					if u := str(tm["url"]); u != "" {
						v.Thumbnails = append(v.Thumbnails, u)
					}
				}
			}
		}
	}
	if nav, ok := r["navigationEndpoint"].(map[string]any); ok {
		if cmd, ok := nav["commandMetadata"].(map[string]any); ok {
			if web, ok := cmd["webCommandMetadata"].(map[string]any); ok {
				v.URLSuffix = str(web["url"])
			}
		}
	}
	return v
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// runsText reads {"runs":[{"text":...}]} or falls back to simpleText.
func runsText(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	if runs, ok := m["runs"].([]any); ok && len(runs) > 0 {
		if first, ok := runs[0].(map[string]any); ok {
			return str(first["text"])
		}
	}
	return str(m["simpleText"])
}

func simpleText(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	return str(m["simpleText"])
}
