package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifepilot/internal/ics"
	"lifepilot/internal/resource"
	"lifepilot/internal/youtube"
)

// scriptedGenerator answers breakdown and schedule prompts with canned text.
type scriptedGenerator struct {
	breakdown string
	schedule  string
	err       error
	prompts   []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompts []string) (string, error) {
	g.prompts = append(g.prompts, prompts...)
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(prompts[0], "Break down") {
		return g.breakdown, nil
	}
	return g.schedule, nil
}

type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	fail    bool
}

func (s *recordingSearcher) Search(_ context.Context, query string, _ int) ([]youtube.Video, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.fail {
		return nil, errors.New("search offline")
	}
	return []youtube.Video{{ID: "id-" + strings.ReplaceAll(query, " ", "-"), Title: "Video: " + query, Thumbnails: []string{"https://img/" + query}}}, nil
}

type recordingObserver struct {
	runs, finished int
	degraded        []string
	modelOK, modelE int
	calendarOK      bool
}

func (o *recordingObserver) RunStarted() { o.runs++ }
func (o *recordingObserver) RunFinished(_ time.Duration, ok bool) {
	o.finished++
	o.calendarOK = ok
}
func (o *recordingObserver) StageDegradedTo(stage string) { o.degraded = append(o.degraded, stage) }
func (o *recordingObserver) ModelCall(ok bool) {
	if ok {
		o.modelOK++
	} else {
		o.modelE++
	}
}

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func TestRunHappyPath(t *testing.T) {
	gen := &scriptedGenerator{
		breakdown: `Here are some queries: ["Learn Python basics", "Python for beginners"] enjoy!`,
		schedule:  "Sure! Here is your plan: ```json\n[{\"time\":\"9:00 AM\",\"activity\":\"Study\",\"emoji\":\"📚\",\"resource_link\":\"http://x\"}]\n```",
	}
	search := &recordingSearcher{}
	obs := &recordingObserver{}
	var progress []int

	p := New(gen, resource.NewFinder(search, nil), Options{
		Observer: obs,
		Progress: func(_ Stage, pct int) { progress = append(progress, pct) },
	})
	res := p.Run(context.Background(), "Learn Python", testNow)

	assert.Equal(t, StageRendered, res.Stage)
	assert.Empty(t, res.Degraded)

	require.NotNil(t, res.Image)
	assert.Equal(t, "Video: Learn Python", res.Image.Title)

	assert.Equal(t, []string{"Learn Python basics", "Python for beginners"}, res.Queries)
	assert.Equal(t, []string{"Learn Python", "Learn Python basics", "Python for beginners"}, search.queries)

	require.Len(t, res.Resources, 2)
	assert.Equal(t, "https://www.youtube.com/watch?v=id-Learn-Python-basics", res.Resources[0].Link)

	require.Len(t, res.Schedule, 1)
	assert.Equal(t, "Study", res.Schedule[0].Activity)
	assert.Equal(t, "9:00 AM: Study\n", res.Text)
	assert.Contains(t, res.Markup, "Open Resource")

	require.NotEmpty(t, res.Calendar)
	events, err := ics.Inspect(res.Calendar)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Start.Equal(testNow))

	assert.Equal(t, []int{0, 30, 60, 100}, progress)
	assert.Equal(t, 1, obs.runs)
	assert.Equal(t, 1, obs.finished)
	assert.Equal(t, 2, obs.modelOK)
	assert.True(t, obs.calendarOK)

	// Schedule prompt carries the current time and found resources.
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "Current Time: 09:00 AM.")
	assert.Contains(t, gen.prompts[1], "Video: Learn Python basics (https://www.youtube.com/watch?v=id-Learn-Python-basics)")
}

func TestRunModelDownDegradesEverything(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("quota exceeded")}
	search := &recordingSearcher{fail: true}
	obs := &recordingObserver{}

	res := New(gen, resource.NewFinder(search, nil), Options{Observer: obs}).Run(context.Background(), "Cook lasagna", testNow)

	assert.Equal(t, StageRendered, res.Stage)
	assert.Equal(t, []Stage{StageBreakdown, StageScheduleGeneration}, res.Degraded)
	assert.Equal(t, []string{"Cook lasagna"}, res.Queries)

	require.Len(t, res.Resources, 1)
	assert.Equal(t, "Search: Cook lasagna", res.Resources[0].Title)
	require.NotNil(t, res.Image)
	assert.Equal(t, resource.PlaceholderThumbnail, res.Image.Thumbnail)

	assert.Empty(t, res.Schedule)
	assert.Equal(t, "", res.Text)
	assert.Equal(t, "", res.Calendar)
	assert.Equal(t, 2, obs.modelE)
	assert.Equal(t, []string{"breakdown", "schedule_generation"}, obs.degraded)
}

func TestRunEmptyGoalUsesDefaultImageQuery(t *testing.T) {
	search := &recordingSearcher{}
	res := New(nil, resource.NewFinder(search, nil), Options{}).Run(context.Background(), "", testNow)

	// [""] fallback queries produce no lookups.
	assert.Equal(t, []string{DefaultImageQuery}, search.queries)
	assert.Equal(t, []string{""}, res.Queries)
	assert.Empty(t, res.Resources)
	assert.Equal(t, StageRendered, res.Stage)
}

func TestRunNestedBreakdownIsFlattened(t *testing.T) {
	gen := &scriptedGenerator{breakdown: "```json\n[[\"a\", \"b\"], \"c\"]\n```", schedule: "no plan"}
	search := &recordingSearcher{}
	res := New(gen, resource.NewFinder(search, nil), Options{}).Run(context.Background(), "goal", testNow)

	assert.Equal(t, []string{"a", "b", "c"}, res.Queries)
	assert.Equal(t, []string{"goal", "a", "b", "c"}, search.queries)
}

func TestBreakdownPromptModes(t *testing.T) {
	std := breakdownPrompt("Learn Go", ModeStandard)
	assert.Equal(t, "Break down 'Learn Go' into 3 short YouTube search queries. Return JSON list.", std)

	research := breakdownPrompt("Learn Go", ModeResearch)
	assert.True(t, strings.HasPrefix(research, ResearchInstruction+" Break down"))
}

func TestRunRepeatDaysReachesCalendar(t *testing.T) {
	gen := &scriptedGenerator{
		breakdown: `["q"]`,
		schedule:  `[{"time": "9", "activity": "A"}]`,
	}
	res := New(gen, resource.NewFinder(&recordingSearcher{}, nil), Options{RepeatDays: 5}).Run(context.Background(), "g", testNow)
	assert.Contains(t, res.Calendar, "COUNT=5")
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "resource_lookup", StageResourceLookup.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
