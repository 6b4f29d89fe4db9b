// Package server exposes the pipeline's typed outputs over HTTP for the
// dashboard presentation layer: normalized previews, role mappings with
// unassigned roles flagged, cleaned rows, aggregates, and CSV snapshots.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/korvaus-labs/korvaus-cli/internal/aggregate"
	"github.com/korvaus-labs/korvaus-cli/internal/config"
	"github.com/korvaus-labs/korvaus-cli/internal/fetcher"
	"github.com/korvaus-labs/korvaus-cli/internal/pipeline"
	"github.com/korvaus-labs/korvaus-cli/internal/roles"
)

// Server serves the pipeline over HTTP.
type Server struct {
	cfg  *config.Config
	pipe *pipeline.Pipeline
}

// New creates a Server around a pipeline.
func New(cfg *config.Config, pipe *pipeline.Pipeline) *Server {
	return &Server{cfg: cfg, pipe: pipe}
}

// Router builds the chi router with CORS open for the dashboard origin.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/sources", s.handleSources)
	r.Route("/sources/{name}", func(r chi.Router) {
		r.Get("/columns", s.handleColumns)
		r.Get("/rows", s.handleRows)
		r.Get("/aggregate", s.handleAggregate)
		r.Get("/export.csv", s.handleExportCSV)
	})
	return r
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	type sourceInfo struct {
		Name string `json:"name"`
		URL  string `json:"url,omitempty"`
		Path string `json:"path,omitempty"`
	}
	out := make([]sourceInfo, 0, len(s.cfg.Sources))
	for _, sc := range s.cfg.Sources {
		out = append(out, sourceInfo{Name: sc.Name, URL: sc.URL, Path: sc.Path})
	}
	writeJSON(w, http.StatusOK, out)
}

// run executes the pipeline for the named source with role overrides taken
// from query parameters. A partial-mapping result is returned alongside the
// ambiguity error so handlers can decide how much to expose.
func (s *Server) run(r *http.Request) (*pipeline.Result, error) {
	name := chi.URLParam(r, "name")
	sc, ok := s.cfg.FindSource(name)
	if !ok {
		return nil, errSourceNotFound
	}

	src, opts := pipeline.BuildSource(sc)

	overrides := roles.Mapping{}
	q := r.URL.Query()
	if v := q.Get("provider_col"); v != "" {
		overrides[roles.Provider] = v
	}
	if v := q.Get("year_col"); v != "" {
		overrides[roles.Year] = v
	}
	if v := q.Get("amount_col"); v != "" {
		overrides[roles.Amount] = v
	}

	return s.pipe.Run(r.Context(), src, opts, overrides)
}

var errSourceNotFound = errors.New("source not found")

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(r)

	// Ambiguity is an expected outcome here: the mapping endpoint is exactly
	// where a caller comes to complete it.
	var amb *roles.AmbiguousMappingError
	if err != nil && !errors.As(err, &amb) {
		s.writeError(w, err)
		return
	}

	out := map[string]any{
		"columns": res.Normalized.Columns,
		"roles":   res.Roles,
	}
	if amb != nil {
		out["missing_roles"] = amb.MissingRoles
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	rows := res.Rows
	q := r.URL.Query()
	yearFrom, _ := strconv.Atoi(q.Get("year_from"))
	yearTo, _ := strconv.Atoi(q.Get("year_to"))
	var providers []string
	if v := q.Get("providers"); v != "" {
		providers = strings.Split(v, ",")
	}
	if yearFrom != 0 || yearTo != 0 || len(providers) > 0 {
		rows = pipeline.FilterRows(rows, yearFrom, yearTo, providers)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rows":          rows,
		"dropped_rows":  res.DroppedRows,
		"skipped_lines": res.SkippedLines,
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	agg, err := s.selectAggregate(res, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	res, err := s.run(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	agg, err := s.selectAggregate(res, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="aggregate.csv"`)
	if err := aggregate.WriteCSV(w, agg); err != nil {
		zap.L().Error("csv export failed", zap.Error(err))
	}
}

// selectAggregate picks the breakdown requested by ?by= and applies the
// optional long-tail collapse for single-dimension provider breakdowns.
func (s *Server) selectAggregate(res *pipeline.Result, r *http.Request) (*aggregate.Result, error) {
	q := r.URL.Query()

	var agg *aggregate.Result
	switch q.Get("by") {
	case "", "year":
		agg = res.ByYear
	case "provider":
		agg = res.ByProvider
	case "year,provider", "year_provider":
		agg = res.ByYearProvider
	default:
		return nil, errors.New("by must be year, provider, or year,provider")
	}

	if v := q.Get("top"); v != "" {
		topN, err := strconv.Atoi(v)
		if err != nil || topN < 1 {
			return nil, errors.New("top must be a positive integer")
		}
		if agg.By.Year {
			return nil, errors.New("top applies only to the provider breakdown")
		}
		label := q.Get("other_label")
		if label == "" {
			label = s.cfg.Export.OtherLabel
		}
		agg = aggregate.CollapseTail(agg, topN, label)
	}
	return agg, nil
}

// writeError maps pipeline failures onto the API: exhausted fetches surface
// as a bad gateway with per-strategy diagnostics, ambiguous mappings as an
// unprocessable entity carrying the column list for manual mapping.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errSourceNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "source not found"})
		return
	}

	var ingest *fetcher.IngestError
	if errors.As(err, &ingest) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":    "all fetch strategies failed; supply a local file instead",
			"attempts": ingest.Attempts,
		})
		return
	}

	var amb *roles.AmbiguousMappingError
	if errors.As(err, &amb) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":         "column roles could not be resolved; supply provider_col/year_col/amount_col",
			"missing_roles": amb.MissingRoles,
			"columns":       amb.Columns,
		})
		return
	}

	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
