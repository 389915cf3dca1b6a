package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lifepilot/internal/capture"
	"lifepilot/internal/config"
	"lifepilot/internal/ics"
	"lifepilot/internal/llm"
	appLog "lifepilot/internal/log"
	"lifepilot/internal/metrics"
	"lifepilot/internal/pipeline"
	"lifepilot/internal/resource"
	"lifepilot/internal/scheduler"
	"lifepilot/internal/web"
	"lifepilot/internal/youtube"
)

const version = "0.1.0"

// flagConfig holds CLI flag values before they are merged into the config.
type flagConfig struct {
	configPath string
	listen     string
	goal       string
	out        string
	snapshot   string
	mode       string
	timezone   string
	logLevel   string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(conf, flags)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	defer appLog.Sync()

	appLog.Info("lifepilot starting", "version", version)

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"mode", conf.Mode,
		"model", conf.Gemini.Model,
		"api_key_set", conf.Gemini.APIKey != "",
		"repeat_days", conf.Calendar.RepeatDays,
		"daily_cron", conf.Daily.Cron,
		"once", flags.goal != "",
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	m := metrics.New()
	finder := resource.NewFinder(youtube.NewClient(conf.Search.BaseURL, conf.SearchTimeout()), m)
	breaker := llm.NewBreaker(llm.DefaultBreakerConfig("gemini"))

	if flags.goal != "" {
		if err := runOnce(ctx, conf, flags, finder, breaker); err != nil {
			appLog.Error("run failed", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, conf, finder, breaker, m); err != nil {
		appLog.Error("server exited with error", err)
		os.Exit(1)
	}
	appLog.Info("lifepilot exiting")
}

// runOnce executes a single plan for -goal, prints it and writes the
// calendar and optional snapshot.
func runOnce(ctx context.Context, conf *config.Config, flags flagConfig, finder *resource.Finder, breaker *llm.Breaker) error {
	gen, err := llm.NewGeminiClient(llm.Options{
		APIKey:  conf.Gemini.APIKey,
		Model:   conf.Gemini.Model,
		BaseURL: conf.Gemini.BaseURL,
		Timeout: conf.ModelTimeout(),
	})
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return fmt.Errorf("set gemini.api_key or %s: %w", "GEMINI_API_KEY", err)
		}
		return err
	}

	p := pipeline.New(breaker.Wrap(gen), finder, pipeline.Options{
		Mode:       pipeline.Mode(conf.Mode),
		RepeatDays: conf.Calendar.RepeatDays,
		Progress: func(st pipeline.Stage, pct int) {
			appLog.Info("progress", "stage", st.String(), "percent", pct)
		},
	})

	now := time.Now().In(conf.Location())
	res := p.Run(ctx, flags.goal, now)

	fmt.Printf("Strategy: %v\n", res.Queries)
	for _, r := range res.Resources {
		fmt.Printf("  - %s (%s)\n", r.Title, r.Link)
	}
	if len(res.Schedule) == 0 {
		fmt.Println("No schedule could be generated.")
	} else {
		fmt.Print(res.Text)
	}

	if res.Calendar != "" {
		if err := writeCalendar(flags.out, res.Calendar); err != nil {
			return err
		}
		if sessions := calendarSessions(res.Calendar, conf.Location()); sessions > 1 {
			fmt.Printf("Calendar repeats for %d days.\n", sessions)
		}
	}

	if flags.snapshot != "" {
		var page bytes.Buffer
		in := web.PageInput{Goal: flags.goal, Timezone: conf.Timezone, Mode: conf.Mode, KeyConfigured: true}
		if err := web.RenderPage(&page, in, now, res); err != nil {
			return fmt.Errorf("render snapshot page: %w", err)
		}
		if err := capture.CapturePlanPNG(ctx, page.Bytes(), capture.CaptureOptions{OutputPath: flags.snapshot}); err != nil {
			return err
		}
	}
	return nil
}

func writeCalendar(path, payload string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create calendar dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	appLog.Info("calendar written", "path", path)
	return nil
}

// calendarSessions parses the exported calendar back and counts its
// expanded sessions.
func calendarSessions(payload string, loc *time.Location) int {
	events, err := ics.Inspect(payload)
	if err != nil || len(events) == 0 {
		appLog.Error("calendar parse-back failed", err)
		return 0
	}
	return len(ics.Sessions(events[0], loc))
}

// serve runs the web UI and, when configured, the daily job until ctx ends.
func serve(ctx context.Context, conf *config.Config, finder *resource.Finder, breaker *llm.Breaker, m *metrics.Metrics) error {
	if conf.Daily.Cron != "" {
		daily, err := newDailyJob(conf, finder, breaker, m)
		if err != nil {
			return err
		}
		daily.Start(ctx)
		defer daily.Stop()
	}

	srv := web.NewServer(conf, web.Deps{
		Finder:  finder,
		Breaker: breaker,
		Metrics: m,
	})
	return srv.ListenAndServe(ctx)
}

func newDailyJob(conf *config.Config, finder *resource.Finder, breaker *llm.Breaker, m *metrics.Metrics) (*scheduler.Daily, error) {
	gen, err := llm.NewGeminiClient(llm.Options{
		APIKey:  conf.Gemini.APIKey,
		Model:   conf.Gemini.Model,
		BaseURL: conf.Gemini.BaseURL,
		Timeout: conf.ModelTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("daily job: %w", err)
	}

	p := pipeline.New(breaker.Wrap(gen), finder, pipeline.Options{
		Mode:       pipeline.Mode(conf.Mode),
		RepeatDays: conf.Calendar.RepeatDays,
		Observer:   m,
	})
	return scheduler.New(p, scheduler.Options{
		Spec:      conf.Daily.Cron,
		Goal:      conf.Daily.Goal,
		OutputDir: conf.Daily.OutputDir,
		Location:  conf.Location(),
	})
}

// applyFlags lets explicitly set CLI flags override file values.
func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.mode != "" {
		conf.Mode = flags.mode
	}
	if flags.timezone != "" {
		conf.Timezone = flags.timezone
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./lifepilot.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.goal, "goal", "", "Run a single plan for this goal and exit")
	flag.StringVar(&cfg.out, "out", "LifePilot.ics", "Calendar output path for -goal")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Also write a PNG snapshot of the plan page (requires Chromium)")
	flag.StringVar(&cfg.mode, "mode", "", "Breakdown mode: standard or research (overrides config)")
	flag.StringVar(&cfg.timezone, "timezone", "", "Display timezone (overrides config)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "DEBUG, INFO or ERROR (overrides config)")

	flag.Parse()

	return cfg
}
