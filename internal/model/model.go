package model

import "time"

// Resource is a learning resource found for one search query. The lookup
// façade always fills every field, substituting a search-results link when
// the video search fails.
type Resource struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Thumbnail string `json:"thumbnail"`
}

// ScheduleItem is one row of the generated plan.
type ScheduleItem struct {
	Time     string `json:"time"`
	Activity string `json:"activity"`
	Emoji    string `json:"emoji"`
	// ResourceLink is a URL or the sentinel NoResource.
	ResourceLink string `json:"resource_link"`
}

// NoResource marks a schedule item without a usable link.
const NoResource = "#"

// HasResource reports whether the item links somewhere real.
func (it ScheduleItem) HasResource() bool {
	return it.ResourceLink != "" && it.ResourceLink != NoResource
}

// Plan is everything produced by one orchestration run that the display
// surfaces need.
type Plan struct {
	Goal string `json:"goal"`
	// GeneratedAt is the run's "now" in the selected display timezone.
	GeneratedAt time.Time `json:"generated_at"`

	Image     *Resource      `json:"image,omitempty"`
	Queries   []string       `json:"queries"`
	Resources []Resource     `json:"resources"`
	Schedule  []ScheduleItem `json:"schedule"`

	// Markup is the rendered plan table and Text its plain-text twin.
	Markup string `json:"-"`
	Text   string `json:"text"`

	// Calendar is the serialized .ics payload, or "" when unavailable.
	Calendar string `json:"calendar,omitempty"`
}
