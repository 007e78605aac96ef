package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/reage-cli/internal/config"
	"github.com/sells-group/reage-cli/internal/model"
	"github.com/sells-group/reage-cli/internal/pipeline"
	"github.com/sells-group/reage-cli/internal/store"
)

// maxBodyBytes caps analyze and tag request bodies.
const maxBodyBytes = 5 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		an, err := initAnalyzer()
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limiter := rate.NewLimiter(rate.Limit(cfg.Server.RatePerSec), cfg.Server.Burst)
		router := buildRouter(an, st, limiter)

		return startServer(ctx, router, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over config.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is cancelled, then shuts
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// api holds the dependencies of the HTTP handlers.
type api struct {
	analyzer *pipeline.Analyzer
	store    store.Store
}

// buildRouter wires the API routes. A nil limiter disables rate limiting.
func buildRouter(an *pipeline.Analyzer, st store.Store, limiter *rate.Limiter) http.Handler {
	a := &api{analyzer: an, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if limiter != nil {
			r.Use(rateLimit(limiter))
		}

		r.Get("/rules", a.listRules)
		r.Post("/analyze", a.analyze)

		r.Route("/analyses", func(r chi.Router) {
			r.Get("/", a.listAnalyses)
			r.Delete("/", a.clearAnalyses)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getAnalysis)
				r.Delete("/", a.deleteAnalysis)
				r.Put("/tags", a.updateTags)
				r.Get("/timeline", a.getTimeline)
				r.Get("/series", a.getSeries)
			})
		})
	})

	return r
}

// rateLimit rejects requests with 429 once the shared token bucket is empty.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeErrorMsg(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type analyzeRequest struct {
	Text     string   `json:"text"`
	Bureau   string   `json:"bureau"`
	FileName string   `json:"fileName"`
	Save     bool     `json:"save"`
	Compare  bool     `json:"compare"`
	Tags     []string `json:"tags"`
}

type analyzeResponse struct {
	pipeline.Result
	SavedIDs []string `json:"savedIds,omitempty"`
}

type partialSaveResponse struct {
	Error    string   `json:"error"`
	Partial  bool     `json:"partial"`
	SavedIDs []string `json:"savedIds"`
}

func (a *api) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeErrorMsg(w, http.StatusBadRequest, "text is required")
		return
	}
	bureau := strings.ToLower(strings.TrimSpace(req.Bureau))
	if bureau != "" && !config.ValidBureau(bureau) {
		writeErrorMsg(w, http.StatusBadRequest, "unknown bureau "+req.Bureau)
		return
	}

	res := a.analyzer.Analyze(pipeline.Input{Text: req.Text, Bureau: bureau, FileName: req.FileName})
	resp := analyzeResponse{Result: res}

	if req.Compare {
		prior, err := a.store.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		pipeline.CompareSeries(&resp.Result, prior)
	}
	if req.Save {
		ids, err := saveAccounts(r.Context(), a.store, resp.Result, normalizeTags(req.Tags))
		if err != nil {
			zap.L().Error("request failed", zap.Int("saved", len(ids)), zap.Error(err))
			// Earlier accounts stay saved; report them so the client can
			// retry or clean up.
			writeJSON(w, http.StatusInternalServerError, partialSaveResponse{
				Error:    "save failed",
				Partial:  len(ids) > 0,
				SavedIDs: ids,
			})
			return
		}
		resp.SavedIDs = ids
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *api) listRules(w http.ResponseWriter, _ *http.Request) {
	type ruleView struct {
		ID                 string         `json:"id"`
		Name               string         `json:"name"`
		Category           string         `json:"category"`
		Severity           model.Severity `json:"severity"`
		SuccessProbability int            `json:"successProbability"`
	}
	rs := a.analyzer.Engine().Rules()
	out := make([]ruleView, len(rs))
	for i, rule := range rs {
		out[i] = ruleView{rule.ID, rule.Name, string(rule.Category), rule.Severity, rule.Probability}
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) listAnalyses(w http.ResponseWriter, r *http.Request) {
	records, err := a.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, filterByTag(records, r.URL.Query().Get("tag")))
}

func (a *api) clearAnalyses(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Clear(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadRecord fetches the {id} record, writing 404 or 500 itself on failure.
func (a *api) loadRecord(w http.ResponseWriter, r *http.Request) (*model.AnalysisRecord, bool) {
	id := chi.URLParam(r, "id")
	rec, err := a.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if rec == nil {
		writeErrorMsg(w, http.StatusNotFound, "analysis not found")
		return nil, false
	}
	return rec, true
}

func (a *api) getAnalysis(w http.ResponseWriter, r *http.Request) {
	if rec, ok := a.loadRecord(w, r); ok {
		writeJSON(w, http.StatusOK, rec)
	}
}

func (a *api) deleteAnalysis(w http.ResponseWriter, r *http.Request) {
	ok, err := a.store.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeErrorMsg(w, http.StatusNotFound, "analysis not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) updateTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	tags := normalizeTags(req.Tags)
	if err := a.store.UpdateTags(r.Context(), id, tags); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeErrorMsg(w, http.StatusNotFound, "analysis not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "tags": tags})
}

func (a *api) getTimeline(w http.ResponseWriter, r *http.Request) {
	if rec, ok := a.loadRecord(w, r); ok {
		writeJSON(w, http.StatusOK, pipeline.RecordTimeline(*rec))
	}
}

func (a *api) getSeries(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.loadRecord(w, r)
	if !ok {
		return
	}
	all, err := a.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.RecordSeries(*rec, all))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError logs err and returns a generic message; internals never reach
// the client.
func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
	writeErrorMsg(w, status, http.StatusText(status))
}
