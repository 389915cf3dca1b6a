// Package pipeline sequences one planning run: topic image, query
// breakdown, per-query resource lookup, schedule generation and rendering.
//
// Every stage degrades in place instead of failing: a run always reaches
// StageRendered, possibly with empty sections.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lifepilot/internal/extract"
	"lifepilot/internal/flex"
	"lifepilot/internal/ics"
	"lifepilot/internal/llm"
	appLog "lifepilot/internal/log"
	"lifepilot/internal/model"
	"lifepilot/internal/plan"
	"lifepilot/internal/resource"
)

// Stage is a step of the linear run state machine.
type Stage int

const (
	StageIdle Stage = iota
	StageImageLookup
	StageBreakdown
	StageResourceLookup
	StageScheduleGeneration
	StageRendered
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageImageLookup:
		return "image_lookup"
	case StageBreakdown:
		return "breakdown"
	case StageResourceLookup:
		return "resource_lookup"
	case StageScheduleGeneration:
		return "schedule_generation"
	case StageRendered:
		return "rendered"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Mode selects the breakdown prompt flavor.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeResearch Mode = "research"
)

// ResearchInstruction is prepended to the breakdown prompt in research mode.
const ResearchInstruction = "Act like Perplexity AI. Be extremely precise, factual, and research-oriented."

// DefaultImageQuery is searched for the topic image when the goal is empty.
const DefaultImageQuery = "Productivity"

// Observer receives run-level events. All methods must be goroutine-safe.
type Observer interface {
	RunStarted()
	RunFinished(d time.Duration, calendarOK bool)
	StageDegradedTo(stage string)
	ModelCall(ok bool)
}

// ProgressFunc is called with the stage just completed and a 0-100 percentage.
type ProgressFunc func(stage Stage, percent int)

// Options configures a Pipeline.
type Options struct {
	Mode Mode
	// RepeatDays is forwarded to the calendar export.
	RepeatDays int
	Observer   Observer
	Progress   ProgressFunc
}

// Pipeline runs orchestrations against one model and one lookup façade.
type Pipeline struct {
	gen    llm.Generator
	finder *resource.Finder
	opts   Options
}

// New constructs a Pipeline. gen may be nil, in which case every model call
// degrades.
func New(gen llm.Generator, finder *resource.Finder, opts Options) *Pipeline {
	if opts.Mode == "" {
		opts.Mode = ModeStandard
	}
	return &Pipeline{gen: gen, finder: finder, opts: opts}
}

// Result is the output of one run.
type Result struct {
	model.Plan

	Stage Stage
	// Degraded lists stages that fell back to their degraded output.
	Degraded []Stage
}

// Run executes one orchestration for goal at the caller-supplied instant now
// (already in the display timezone).
func (p *Pipeline) Run(ctx context.Context, goal string, now time.Time) *Result {
	started := time.Now()
	p.runStarted()

	res := &Result{
		Plan:  model.Plan{Goal: goal, GeneratedAt: now},
		Stage: StageIdle,
	}
	appLog.Info("pipeline run start", "goal_len", len(goal), "mode", string(p.opts.Mode), "now", now.Format(time.RFC3339))
	p.progress(res.Stage, 0)

	// 1. Topic image.
	res.Stage = StageImageLookup
	imageQuery := goal
	if imageQuery == "" {
		imageQuery = DefaultImageQuery
	}
	if img, ok := p.finder.Lookup(ctx, flex.NewString(imageQuery)); ok {
		res.Image = &img
	} else {
		p.degrade(res)
	}

	// 2. Breakdown into search queries.
	res.Stage = StageBreakdown
	response := p.ask(ctx, breakdownPrompt(goal, p.opts.Mode))
	res.Queries = extract.Queries(response, goal)
	if response == "" {
		p.degrade(res)
	}
	appLog.Info("pipeline strategy identified", "queries", strings.Join(res.Queries, ", "))
	p.progress(res.Stage, 30)

	// 3. One lookup per query, sequentially, in order.
	res.Stage = StageResourceLookup
	res.Resources = make([]model.Resource, 0, len(res.Queries))
	for _, q := range res.Queries {
		if r, ok := p.finder.Lookup(ctx, flex.NewString(q)); ok {
			res.Resources = append(res.Resources, r)
		}
	}
	p.progress(res.Stage, 60)

	// 4. Schedule.
	res.Stage = StageScheduleGeneration
	nowStr := now.Format("03:04 PM")
	scheduleText := p.ask(ctx, schedulePrompt(goal, nowStr, res.Resources))
	res.Schedule = plan.Items(extract.Extract(scheduleText))
	if len(res.Schedule) == 0 {
		p.degrade(res)
	}
	p.progress(res.Stage, 100)

	// 5. Render.
	res.Stage = StageRendered
	res.Markup, res.Text = plan.Render(res.Schedule)
	if len(res.Schedule) > 0 {
		res.Calendar = ics.SerializeWith(res.Text, now, ics.SerializeOptions{RepeatDays: p.opts.RepeatDays})
	}

	calendarOK := len(res.Schedule) == 0 || res.Calendar != ""
	if p.opts.Observer != nil {
		p.opts.Observer.RunFinished(time.Since(started), calendarOK)
	}
	appLog.Info("pipeline run complete",
		"queries", len(res.Queries),
		"resources", len(res.Resources),
		"schedule_items", len(res.Schedule),
		"calendar", res.Calendar != "",
		"degraded", len(res.Degraded),
		"elapsed", time.Since(started).String(),
	)
	return res
}

// ask performs one model call; any failure is logged and reported as "".
func (p *Pipeline) ask(ctx context.Context, prompt string) string {
	if p.gen == nil {
		p.modelCall(false)
		return ""
	}
	text, err := p.gen.Generate(ctx, []string{prompt})
	if err != nil {
		appLog.Error("model call failed", err)
		p.modelCall(false)
		return ""
	}
	p.modelCall(true)
	return text
}

func (p *Pipeline) degrade(res *Result) {
	res.Degraded = append(res.Degraded, res.Stage)
	appLog.Info("pipeline stage degraded", "stage", res.Stage.String())
	if p.opts.Observer != nil {
		p.opts.Observer.StageDegradedTo(res.Stage.String())
	}
}

func (p *Pipeline) runStarted() {
	if p.opts.Observer != nil {
		p.opts.Observer.RunStarted()
	}
}

func (p *Pipeline) modelCall(ok bool) {
	if p.opts.Observer != nil {
		p.opts.Observer.ModelCall(ok)
	}
}

func (p *Pipeline) progress(s Stage, pct int) {
	if p.opts.Progress != nil {
		p.opts.Progress(s, pct)
	}
}
