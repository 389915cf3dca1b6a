package web

import (
	_ "embed"
	"encoding/base64"
	"html/template"
	"io"
	"strings"
	"time"

	"lifepilot/internal/config"
	"lifepilot/internal/model"
	"lifepilot/internal/pipeline"
	"lifepilot/internal/plan"
)

//go:embed templates/page.html
var pageHTML string

var pageTmpl = template.Must(template.New("page").Parse(pageHTML))

// cardTitleRunes is how much of a video title a result card shows.
const cardTitleRunes = 30

var modeLabels = map[string]string{
	string(pipeline.ModeStandard): "Standard Agent (Gemini)",
	string(pipeline.ModeResearch): "Perplexity Research Mode",
}

type modeOption struct {
	Value    string
	Label    string
	Selected bool
}

type checkItem struct {
	Label string
	Link  string
}

// pageView is everything the page template reads.
type pageView struct {
	Timezones     []string
	Timezone      string
	Modes         []modeOption
	Goal          string
	KeyConfigured bool

	DateISO   string
	DateLabel string
	TimeLabel string

	Error  string
	Result *resultView
}

type resultView struct {
	Image       *model.Resource
	Strategy    string
	Cards       []model.Resource
	HasSchedule bool
	Table       template.HTML
	Checklist   []checkItem
	Calendar    template.URL
}

// PageInput selects the form state a page is rendered with.
type PageInput struct {
	Goal          string
	Timezone      string
	Mode          string
	KeyConfigured bool
	Error         string
}

func newPageView(in PageInput, now time.Time) *pageView {
	v := &pageView{
		Timezones:     config.Timezones,
		Timezone:      in.Timezone,
		Goal:          in.Goal,
		KeyConfigured: in.KeyConfigured,
		DateISO:       now.Format("2006-01-02"),
		DateLabel:     now.Format("Monday, January 02"),
		TimeLabel:     now.Format("03:04 PM"),
		Error:         in.Error,
	}
	for _, m := range config.Modes {
		v.Modes = append(v.Modes, modeOption{Value: m, Label: modeLabels[m], Selected: m == in.Mode})
	}
	return v
}

func newResultView(res *pipeline.Result) *resultView {
	rv := &resultView{
		Image:       res.Image,
		Strategy:    strings.Join(res.Queries, ", "),
		HasSchedule: len(res.Schedule) > 0,
		Table:       template.HTML(res.Markup),
	}
	for _, r := range res.Resources {
		r.Title = cardTitle(r.Title)
		rv.Cards = append(rv.Cards, r)
	}
	for _, it := range res.Schedule {
		c := checkItem{Label: plan.ChecklistLabel(it)}
		if link := plan.SafeLink(it.ResourceLink); link != model.NoResource {
			c.Link = link
		}
		rv.Checklist = append(rv.Checklist, c)
	}
	if res.Calendar != "" {
		rv.Calendar = calendarDataURI(res.Calendar)
	}
	return rv
}

// cardTitle keeps the first 30 characters of a title and marks the cut.
func cardTitle(title string) string {
	r := []rune(title)
	if len(r) > cardTitleRunes {
		r = r[:cardTitleRunes]
	}
	return string(r) + ".."
}

func calendarDataURI(ics string) template.URL {
	return template.URL("data:text/calendar;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(ics)))
}

// RenderPage writes the full HTML page. res may be nil for the empty form.
// now must already be in the display timezone.
func RenderPage(w io.Writer, in PageInput, now time.Time, res *pipeline.Result) error {
	v := newPageView(in, now)
	if res != nil {
		v.Result = newResultView(res)
	}
	return pageTmpl.Execute(w, v)
}
