// Package plan turns extracted schedule records into display artifacts.
package plan

import (
	"html"
	"net/url"
	"strings"

	"lifepilot/internal/flex"
	"lifepilot/internal/model"
)

// Defaults substituted for fields a record does not carry.
const (
	DefaultTime     = "N/A"
	DefaultActivity = "Task"
	DefaultEmoji    = "📝"
)

// Items decodes an extracted value into schedule items. Only list values
// produce items; list members that are not objects are skipped. Missing or
// null fields get the package defaults and present non-string fields are
// coerced to text.
func Items(v flex.Value) []model.ScheduleItem {
	if !v.IsList() {
		return nil
	}
	out := make([]model.ScheduleItem, 0, v.Len())
	for _, rec := range v.Items() {
		if !rec.IsObject() {
			continue
		}
		out = append(out, model.ScheduleItem{
			Time:         field(rec, "time", DefaultTime),
			Activity:     field(rec, "activity", DefaultActivity),
			Emoji:        field(rec, "emoji", DefaultEmoji),
			ResourceLink: field(rec, "resource_link", model.NoResource),
		})
	}
	return out
}

func field(rec flex.Value, key, def string) string {
	v, ok := rec.Get(key)
	if !ok {
		return def
	}
	return v.String()
}

const tableHead = `<table class="styled-table">
<thead><tr>
<th>Time</th>
<th>Activity</th>
<th>Resource</th>
</tr></thead>
<tbody>`

const tableFoot = `</tbody></table>`

// Render builds the plan table markup and the plain-text plan, one
// "{time}: {activity}" line per item, in input order. Fields are rendered as
// given (Items already applied defaults). Cell text is HTML-escaped and
// resource links other than http(s) become NoResource.
func Render(items []model.ScheduleItem) (markup, plain string) {
	var m, p strings.Builder
	m.WriteString(tableHead)

	for _, it := range items {
		t, a, e := it.Time, it.Activity, it.Emoji
		r := SafeLink(it.ResourceLink)

		m.WriteString(`<tr><td>`)
		m.WriteString(html.EscapeString(t))
		m.WriteString(`</td><td>`)
		m.WriteString(html.EscapeString(e + " " + a))
		m.WriteString(`</td><td><a href="`)
		m.WriteString(html.EscapeString(r))
		m.WriteString(`" target="_blank">Open Resource</a></td></tr>`)

		p.WriteString(t)
		p.WriteString(": ")
		p.WriteString(a)
		p.WriteString("\n")
	}

	m.WriteString(tableFoot)
	return m.String(), p.String()
}

// SafeLink returns link when it is an absolute http or https URL, and
// NoResource otherwise.
func SafeLink(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil || u.Host == "" {
		return model.NoResource
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return link
	default:
		return model.NoResource
	}
}

// ChecklistLabel is the text shown next to an item's checkbox.
func ChecklistLabel(it model.ScheduleItem) string {
	return it.Time + " : " + it.Activity
}
