// Package server exposes the cleaning pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/opencohort/colnorm/internal/classify"
	"github.com/opencohort/colnorm/internal/pipeline"
	"github.com/opencohort/colnorm/internal/warehouse"
)

// Runner is the pipeline surface the HTTP handlers call.
type Runner interface {
	CleanColumns(ctx context.Context, source, dest warehouse.Table, opts pipeline.CleanOptions) (*pipeline.Result, error)
	MergeTableVersions(ctx context.Context, sources []warehouse.Table, dest warehouse.Table, dryRun bool) (*pipeline.Result, error)
	Validate(ctx context.Context, source warehouse.Table) (*pipeline.ValidationReport, error)
}

// Profiler is the column-content check surface the HTTP handlers call.
type Profiler interface {
	BinaryStringColumns(ctx context.Context, table warehouse.Table) ([]string, error)
	FalseArrayColumns(ctx context.Context, table warehouse.Table) ([]string, error)
}

// Server is the HTTP front end.
type Server struct {
	runner   Runner
	profiler Profiler
	port     int
	logger   *slog.Logger
}

// New creates a Server. logger may be nil.
func New(runner Runner, profiler Profiler, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{runner: runner, profiler: profiler, port: port, logger: logger}
}

// Routes builds the request router.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Get("/heartbeat", s.handleHeartbeat)
	r.Post("/clean-columns", s.handleCleanColumns)
	r.Post("/merge-table-versions", s.handleMerge)
	r.Post("/validate", s.handleValidate)
	r.Post("/profile", s.handleProfile)

	return r
}

// Serve starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type cleanRequest struct {
	Source       string `json:"source"`
	Destination  string `json:"destination"`
	RecodeBinary bool   `json:"recode_binary"`
	DryRun       bool   `json:"dry_run"`
}

func (s *Server) handleCleanColumns(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	source, err := warehouse.ParseQualifiedTable(req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dest, err := warehouse.ParseQualifiedTable(req.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.runner.CleanColumns(r.Context(), source, dest, pipeline.CleanOptions{
		RecodeBinary: req.RecodeBinary,
		DryRun:       req.DryRun,
	})
	if err != nil {
		var impure *classify.ImpurityError
		if errors.As(err, &impure) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type mergeRequest struct {
	Sources     []string `json:"sources"`
	Destination string   `json:"destination"`
	DryRun      bool     `json:"dry_run"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	if len(req.Sources) < 2 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at least two source tables are required, got %d", len(req.Sources)))
		return
	}

	sources := make([]warehouse.Table, len(req.Sources))
	for i, raw := range req.Sources {
		tbl, err := warehouse.ParseQualifiedTable(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		sources[i] = tbl
	}
	dest, err := warehouse.ParseQualifiedTable(req.Destination)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.runner.MergeTableVersions(r.Context(), sources, dest, req.DryRun)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type validateRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	source, err := warehouse.ParseQualifiedTable(req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.runner.Validate(r.Context(), source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type profileRequest struct {
	Source string `json:"source"`
	Check  string `json:"check"`
}

type profileResponse struct {
	Table   string   `json:"table"`
	Check   string   `json:"check"`
	Columns []string `json:"columns"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}
	source, err := warehouse.ParseQualifiedTable(req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var cols []string
	switch req.Check {
	case "binary":
		cols, err = s.profiler.BinaryStringColumns(r.Context(), source)
	case "false-array", "":
		req.Check = "false-array"
		cols, err = s.profiler.FalseArrayColumns(r.Context(), source)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown check %q", req.Check))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Table: source.FQN(), Check: req.Check, Columns: cols})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
