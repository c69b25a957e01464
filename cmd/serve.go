package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanclimate/suhi-cli/internal/catalog"
	"github.com/urbanclimate/suhi-cli/internal/config"
	"github.com/urbanclimate/suhi-cli/internal/monitoring"
	"github.com/urbanclimate/suhi-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the status server",
	Long:  "Serves run history, per-scene decisions and Prometheus metrics over HTTP, and accepts pipeline run requests.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initCatalog(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s := &server{
			cfg:     cfg,
			store:   st,
			metrics: monitoring.NewMetrics(),
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: s.routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// server bundles the HTTP handlers with their collaborators.
type server struct {
	cfg     *config.Config
	store   catalog.Store
	metrics *monitoring.Metrics
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleListRuns)
		r.Post("/runs", s.handleStartRun)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/decisions", s.handleListDecisions)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	runs, err := s.store.ListRuns(r.Context(), catalog.RunFilter{
		Status: catalog.RunStatus(q.Get("status")),
		City:   q.Get("city"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []catalog.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if catalog.ErrNotFound(err) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	decisions, err := s.store.ListDecisions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if decisions == nil {
		decisions = []catalog.SceneDecision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// handleStartRun kicks off a pipeline run in the background using the
// configured input paths with the requested season and year.
func (s *server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		City   string `json:"city"`
		Season string `json:"season"`
		Year   int    `json:"year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}

	city := req.City
	if city == "" {
		city = s.cfg.City.Name
	}
	if req.Year <= 0 {
		writeError(w, http.StatusBadRequest, eris.New("year is required"))
		return
	}
	if _, _, err := config.SeasonRange(req.Season, req.Year); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	runner := pipeline.NewRunner(pipeline.Options{
		City:          city,
		Season:        req.Season,
		Year:          req.Year,
		ScenesDir:     s.cfg.Paths.ScenesDir,
		ElevationPath: s.cfg.Paths.ElevationPath,
		LandCoverPath: s.cfg.Paths.LandCoverPath,
		BoundaryPath:  s.cfg.Paths.BoundaryPath,
		OutputDir:     s.cfg.Paths.OutputDir,
		Concurrency:   s.cfg.Pipeline.Concurrency,
	}, pipeline.WithStore(s.store), pipeline.WithMetrics(s.metrics))

	// Detach from the request context; the run outlives the response.
	go func() {
		manifest, err := runner.Run(context.Background())
		if err != nil {
			zap.L().Error("requested run failed",
				zap.String("city", city),
				zap.String("season", req.Season),
				zap.Int("year", req.Year),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("requested run complete",
			zap.String("run_id", manifest.RunID),
			zap.Int("outputs", len(manifest.Outputs)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"city":   city,
		"season": req.Season,
		"year":   req.Year,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
