package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/matzehuels/poissonfields/pkg/compose"
	perrors "github.com/matzehuels/poissonfields/pkg/errors"
	"github.com/matzehuels/poissonfields/pkg/pipeline"
)

const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		src     sourceFlags
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve collages over HTTP",
		Long: `Serve collages over HTTP.

Routes:
  GET /collage.png   one fresh collage; query: term, seed, width, height,
                     min_images, max_images, containment
  GET /stats         run and cache counters as JSON
  GET /metrics       Prometheus metrics
  GET /healthz       liveness probe

Set REDIS_URL to share the download cache between several instances.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				c.config.Serve.Addr = addr
			}
			return c.runServe(cmd.Context(), src, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "listen address")
	cmd.Flags().StringSliceVar(&src.urls, "urls", nil, "use these image URLs instead of searching")
	cmd.Flags().StringVar(&src.urlFile, "url-file", "", "read image URLs from a file, one per line")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the download cache")

	return cmd
}

// runServe listens until ctx is cancelled, then drains in-flight requests.
func (c *CLI) runServe(ctx context.Context, src sourceFlags, noCache bool) error {
	runner, closer, err := c.newRunner(ctx, src, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer closer.Close()

	base := c.config.Pipeline
	if base.Background != "" {
		bg, err := compose.LoadBackground(base.Background)
		if err != nil {
			return fmt.Errorf("load background: %w", err)
		}
		runner.Background = bg
	}

	srv := newServer(runner, base, c.Logger)
	srv.stats.register()

	httpSrv := &http.Server{
		Addr:              c.config.Serve.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		c.Logger.Info("listening", "addr", httpSrv.Addr, "provider", runner.Searcher.Name())
		serverErrors <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		c.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			c.Logger.Warn("graceful shutdown incomplete", "error", err)
			return httpSrv.Close()
		}
		return nil
	}
}

// =============================================================================
// Server
// =============================================================================

// server answers collage requests with a shared runner. Each request gets
// its own options and seed; the runner itself is stateless.
type server struct {
	runner *pipeline.Runner
	base   pipeline.Options
	logger *log.Logger
	stats  *telemetry
}

func newServer(runner *pipeline.Runner, base pipeline.Options, logger *log.Logger) *server {
	return &server{runner: runner, base: base, logger: logger, stats: newTelemetry()}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", s.stats.handler())
	r.Get("/collage.png", s.handleCollage)
	return r
}

// requestLogger attaches a request-scoped logger and logs one line per
// request.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := s.logger.With("req", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(withLogger(r.Context(), l)))
		l.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.snapshot())
}

func (s *server) handleCollage(w http.ResponseWriter, r *http.Request) {
	opts, err := s.requestOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	opts.Logger = loggerFromContext(r.Context())

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		opts.Logger.Warn("collage failed", "code", perrors.GetCode(err), "error", err)
		writeError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Length", strconv.Itoa(len(res.PNG)))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Collage-Term", res.Term)
	h.Set("X-Collage-Seed", strconv.FormatUint(opts.Seed, 10))
	h.Set("X-Collage-Run", res.RunID)
	w.WriteHeader(http.StatusOK)
	w.Write(res.PNG)
}

// requestOptions overlays query parameters on the configured options.
func (s *server) requestOptions(r *http.Request) (pipeline.Options, error) {
	opts := s.base
	q := r.URL.Query()

	if term := q.Get("term"); term != "" {
		opts.Term = term
	}
	if c := q.Get("containment"); c != "" {
		opts.Containment = c
	}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return opts, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "seed")
		}
		opts.Seed = seed
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"width", &opts.Width},
		{"height", &opts.Height},
		{"min_images", &opts.MinImages},
		{"max_images", &opts.MaxImages},
	}
	for _, p := range ints {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "%s", p.name)
		}
		*p.dst = n
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	return opts, nil
}

// statusFor maps run error codes to HTTP statuses.
func statusFor(err error) int {
	switch perrors.GetCode(err) {
	case perrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case perrors.ErrCodeInsufficientCandidates, perrors.ErrCodeNotFound:
		return http.StatusNotFound
	case perrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case perrors.ErrCodeAcquisition, perrors.ErrCodeNetwork:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) {
		return 499 // client closed request
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Code  perrors.Code `json:"code,omitempty"`
	Error string       `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{
		Code:  perrors.GetCode(err),
		Error: perrors.UserMessage(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
