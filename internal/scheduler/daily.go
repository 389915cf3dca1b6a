// Package scheduler runs an unattended planning run on a cron schedule and
// writes the plan text and calendar next to each other in an output dir.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "lifepilot/internal/log"
	"lifepilot/internal/pipeline"
)

// Runner is the subset of *pipeline.Pipeline the job needs.
type Runner interface {
	Run(ctx context.Context, goal string, now time.Time) *pipeline.Result
}

// Options configures a Daily job.
type Options struct {
	// Spec is a standard 5-field cron expression.
	Spec      string
	Goal      string
	OutputDir string
	Location  *time.Location
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Output names the files written by one run. ICSPath is "" when the run
// produced no calendar.
type Output struct {
	TextPath string
	ICSPath  string
}

// Daily wraps a cron instance with a single registered planning job.
type Daily struct {
	cron   *cron.Cron
	runner Runner
	opts   Options

	mu      sync.Mutex
	ctx     context.Context
	running bool
}

// New validates opts and registers the job. The schedule is not started
// until Start.
func New(runner Runner, opts Options) (*Daily, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is nil")
	}
	if opts.Goal == "" {
		return nil, errors.New("scheduler: goal is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("scheduler: output dir is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	d := &Daily{
		cron:   cron.New(cron.WithLocation(opts.Location)),
		runner: runner,
		opts:   opts,
		ctx:    context.Background(),
	}
	if _, err := d.cron.AddFunc(opts.Spec, d.tick); err != nil {
		return nil, fmt.Errorf("scheduler: parse spec %q: %w", opts.Spec, err)
	}
	return d, nil
}

// Start begins firing the job. ctx bounds each run; cancelling it does not
// stop the schedule, call Stop for that.
func (d *Daily) Start(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()

	d.cron.Start()
	for _, e := range d.cron.Entries() {
		appLog.Info("daily plan scheduled", "spec", d.opts.Spec, "next", e.Next.Format(time.RFC3339))
	}
}

// Stop halts the schedule and waits for a running job to finish.
func (d *Daily) Stop() {
	<-d.cron.Stop().Done()
}

func (d *Daily) tick() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		appLog.Info("daily plan skipped, previous run still active")
		return
	}
	d.running = true
	ctx := d.ctx
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if _, err := d.RunOnce(ctx); err != nil {
		appLog.Error("daily plan failed", err)
	}
}

// RunOnce performs one planning run and writes
// LifePilot-YYYYMMDD.txt and, when available, LifePilot-YYYYMMDD.ics.
func (d *Daily) RunOnce(ctx context.Context) (Output, error) {
	now := d.opts.Now().In(d.opts.Location)
	res := d.runner.Run(ctx, d.opts.Goal, now)
	if res == nil {
		return Output{}, errors.New("scheduler: runner returned no result")
	}

	if err := os.MkdirAll(d.opts.OutputDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("scheduler: create output dir: %w", err)
	}

	base := filepath.Join(d.opts.OutputDir, "LifePilot-"+now.Format("20060102"))
	var out Output

	out.TextPath = base + ".txt"
	if err := writeFileAtomic(out.TextPath, []byte(res.Text)); err != nil {
		return Output{}, err
	}

	if res.Calendar != "" {
		out.ICSPath = base + ".ics"
		if err := writeFileAtomic(out.ICSPath, []byte(res.Calendar)); err != nil {
			return Output{}, err
		}
	}

	appLog.Info("daily plan written",
		"text", out.TextPath,
		"ics", out.ICSPath,
		"schedule_items", len(res.Schedule),
	)
	return out, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lifepilot-*.tmp")
	if err != nil {
		return fmt.Errorf("scheduler: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("scheduler: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("scheduler: close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
