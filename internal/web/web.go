package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/cors"

	"lifepilot/internal/config"
	"lifepilot/internal/llm"
	appLog "lifepilot/internal/log"
	"lifepilot/internal/metrics"
	"lifepilot/internal/model"
	"lifepilot/internal/pipeline"
	"lifepilot/internal/resource"
)

const (
	maxRequestBytes = 64 << 10
	shutdownTimeout = 10 * time.Second
)

// GeneratorFactory builds a model client for one run's API key.
type GeneratorFactory func(apiKey string) (llm.Generator, error)

// GeminiFactory returns a GeneratorFactory backed by llm.NewGeminiClient.
func GeminiFactory(gc config.GeminiConfig) GeneratorFactory {
	return func(apiKey string) (llm.Generator, error) {
		c, err := llm.NewGeminiClient(llm.Options{
			APIKey:  apiKey,
			Model:   gc.Model,
			BaseURL: gc.BaseURL,
			Timeout: time.Duration(gc.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Deps are the collaborators a Server shares across requests.
type Deps struct {
	Finder       *resource.Finder
	Breaker      *llm.Breaker
	Metrics      *metrics.Metrics
	NewGenerator GeneratorFactory
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Server serves the planning form, plan runs and a small JSON API.
type Server struct {
	cfg      *config.Config
	deps     Deps
	router   chi.Router
	validate *validator.Validate
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewGenerator == nil {
		deps.NewGenerator = GeminiFactory(cfg.Gemini)
	}
	s := &Server{
		cfg:      cfg,
		deps:     deps,
		router:   chi.NewRouter(),
		validate: validator.New(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="LifePilot", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	r.Get("/", s.handleIndex)
	r.Post("/run", s.handleRun)

	r.Route("/api", func(r chi.Router) {
		if len(s.cfg.CORSOrigins) > 0 {
			r.Use(cors.New(cors.Options{
				AllowedOrigins: s.cfg.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:         300,
			}).Handler)
		}
		r.Get("/timezones", s.handleTimezones)
		r.Post("/plan", s.handlePlan)
	})
}

// requestLogger logs one line per request with status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	in := s.pageInput(r.URL.Query().Get("timezone"), r.URL.Query().Get("mode"), "")
	s.renderPage(w, http.StatusOK, in, nil)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		in := s.pageInput("", "", "")
		in.Error = "Could not read the form."
		s.renderPage(w, http.StatusBadRequest, in, nil)
		return
	}

	in := s.pageInput(r.PostForm.Get("timezone"), r.PostForm.Get("mode"), r.PostForm.Get("goal"))
	res, status, err := s.runPlan(r.Context(), planRequest{
		Goal:     in.Goal,
		APIKey:   r.PostForm.Get("api_key"),
		Timezone: in.Timezone,
		Mode:     in.Mode,
	})
	if err != nil {
		in.Error = userMessage(err)
		s.renderPage(w, status, in, nil)
		return
	}
	s.renderPage(w, http.StatusOK, in, res)
}

// pageInput resolves form values against the configured defaults.
func (s *Server) pageInput(tz, mode, goal string) PageInput {
	if !config.IsTimezone(tz) {
		tz = s.cfg.Timezone
	}
	if _, ok := modeLabels[mode]; !ok {
		mode = s.cfg.Mode
	}
	return PageInput{
		Goal:          goal,
		Timezone:      tz,
		Mode:          mode,
		KeyConfigured: s.cfg.Gemini.APIKey != "",
	}
}

func (s *Server) renderPage(w http.ResponseWriter, status int, in PageInput, res *pipeline.Result) {
	now := s.deps.Now().In(config.ResolveLocation(in.Timezone))
	if res != nil {
		now = res.GeneratedAt
	}

	var buf bytes.Buffer
	if err := RenderPage(&buf, in, now, res); err != nil {
		appLog.Error("render page failed", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// planRequest is the body of POST /api/plan and the normalized form input.
type planRequest struct {
	Goal     string `json:"goal"`
	APIKey   string `json:"api_key"`
	Timezone string `json:"timezone" validate:"omitempty,oneof=Asia/Kolkata UTC US/Pacific US/Eastern Europe/London"`
	Mode     string `json:"mode" validate:"omitempty,oneof=standard research"`
}

// planResponse is the JSON response shape for /api/plan.
type planResponse struct {
	Plan      model.Plan `json:"plan"`
	Stage     string     `json:"stage"`
	Degraded  []string   `json:"degraded"`
	Timezone  string     `json:"timezone"`
	RequestID string     `json:"request_id,omitempty"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Timezone == "" {
		req.Timezone = s.cfg.Timezone
	}
	if req.Mode == "" {
		req.Mode = s.cfg.Mode
	}

	res, status, err := s.runPlan(r.Context(), req)
	if err != nil {
		writeError(w, status, userMessage(err))
		return
	}

	degraded := make([]string, 0, len(res.Degraded))
	for _, st := range res.Degraded {
		degraded = append(degraded, st.String())
	}
	writeJSON(w, http.StatusOK, planResponse{
		Plan:      res.Plan,
		Stage:     res.Stage.String(),
		Degraded:  degraded,
		Timezone:  req.Timezone,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

type timezonesResponse struct {
	Timezones []string `json:"timezones"`
	Default   string   `json:"default"`
	Modes     []string `json:"modes"`
}

func (s *Server) handleTimezones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, timezonesResponse{
		Timezones: config.Timezones,
		Default:   s.cfg.Timezone,
		Modes:     config.Modes,
	})
}

// runPlan builds the model client for req and executes one run. The
// returned status applies only when err is non-nil.
func (s *Server) runPlan(ctx context.Context, req planRequest) (*pipeline.Result, int, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = s.cfg.Gemini.APIKey
	}

	gen, err := s.deps.NewGenerator(apiKey)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, http.StatusBadRequest, err
		}
		appLog.Error("model setup failed", err)
		return nil, http.StatusServiceUnavailable, err
	}

	reqID := middleware.GetReqID(ctx)
	opts := pipeline.Options{
		Mode:       pipeline.Mode(req.Mode),
		RepeatDays: s.cfg.Calendar.RepeatDays,
		Progress: func(st pipeline.Stage, pct int) {
			appLog.Debug("run progress", "stage", st.String(), "percent", pct, "request_id", reqID)
		},
	}
	if s.deps.Metrics != nil {
		opts.Observer = s.deps.Metrics
	}

	p := pipeline.New(s.deps.Breaker.Wrap(gen), s.deps.Finder, opts)
	now := s.deps.Now().In(config.ResolveLocation(req.Timezone))
	return p.Run(ctx, req.Goal, now), http.StatusOK, nil
}

func userMessage(err error) string {
	if errors.Is(err, llm.ErrMissingAPIKey) {
		return "Please enter your API Key in the sidebar."
	}
	return "Connection Error: " + err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
