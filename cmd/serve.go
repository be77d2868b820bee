package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/internal/stream"
)

var servePort int

const (
	jobRetention  = time.Hour
	pruneInterval = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lead API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve", true)
		if err != nil {
			return err
		}
		defer env.Close()

		scraper, err := env.Scraper()
		if err != nil {
			return err
		}

		a := &api{
			ctx:       ctx,
			leads:     &leadService{scraper: scraper, store: env.Store, concurrency: cfg.Batch.Concurrency},
			revenue:   env.Growjo,
			enricher:  env.Enricher(),
			store:     env.Store,
			jobs:      stream.NewRegistry(),
			publisher: env.Publisher,
			tick:      time.Duration(cfg.Stream.TickMS) * time.Millisecond,
		}
		go a.pruneJobs(ctx, pruneInterval, jobRetention)

		err = startServer(ctx, buildRouter(a, cfg.Server.AllowedOrigins), resolvePort(servePort))
		a.wait()
		return err
	},
}

// api holds the handler dependencies. Background jobs run on ctx, so they
// stop with the server rather than with the request that started them.
type api struct {
	ctx       context.Context
	leads     *leadService
	revenue   enrich.RevenueResolver
	enricher  *enrich.Enricher
	store     store.Store
	jobs      *stream.Registry
	publisher *stream.Publisher // optional
	tick      time.Duration

	wg sync.WaitGroup
}

// buildRouter wires the API routes.
func buildRouter(a *api, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/leads", a.scrapeLeads)
		r.Get("/leads", a.listLeads)
		r.Post("/jobs", a.startJob)
		r.Get("/jobs/{id}", a.getJob)
		r.Get("/jobs/{id}/events", a.jobEvents)
		r.Get("/runs/{id}", a.getRun)
		r.Post("/revenue", a.resolveRevenue)
		r.Post("/enrich", a.enrichCompany)
	})
	return r
}

// leadsResponse is the body of a synchronous scrape.
type leadsResponse struct {
	Query        model.Query           `json:"query"`
	Leads        []model.LeadRecord    `json:"leads"`
	TotalScraped int                   `json:"total_scraped"`
	PerSource    map[string]int        `json:"per_source"`
	Failures     []model.SourceFailure `json:"failures,omitempty"`
	ElapsedTime  float64               `json:"elapsed_time"`
}

func (a *api) scrapeLeads(w http.ResponseWriter, r *http.Request) {
	var q model.Query
	if !decodeQuery(w, r, &q) {
		return
	}

	res, err := a.leads.Scrape(r.Context(), q, nil)
	if err != nil {
		body := map[string]any{"error": err.Error()}
		if res != nil && len(res.Failures) > 0 {
			body["failures"] = res.Failures
		}
		writeJSON(w, http.StatusBadGateway, body)
		return
	}

	leads := res.Leads
	if leads == nil {
		leads = []model.LeadRecord{}
	}
	writeJSON(w, http.StatusOK, leadsResponse{
		Query:        q,
		Leads:        leads,
		TotalScraped: res.TotalScraped,
		PerSource:    res.PerSource,
		Failures:     res.Failures,
		ElapsedTime:  res.Elapsed.Seconds(),
	})
}

func (a *api) startJob(w http.ResponseWriter, r *http.Request) {
	var q model.Query
	if !decodeQuery(w, r, &q) {
		return
	}

	job := a.jobs.Start(q)
	log := zap.L().With(zap.String("job_id", job.ID()), zap.String("query", q.String()))

	a.wg.Go(func() {
		res, err := a.leads.Scrape(a.ctx, q, job)
		var failures []model.SourceFailure
		if res != nil {
			failures = res.Failures
		}
		job.Finish(failures)
		if err != nil {
			log.Warn("job ended with error", zap.Error(err))
			return
		}
		log.Info("job complete", zap.Int("leads", len(res.Leads)), zap.Int("total_scraped", res.TotalScraped))
	})

	if a.publisher != nil {
		a.wg.Go(func() {
			if err := a.publisher.Watch(a.ctx, job, a.tick); err != nil && a.ctx.Err() == nil {
				log.Warn("job events not published", zap.Error(err))
			}
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"job_id": job.ID(),
		"events": "/v1/jobs/" + job.ID() + "/events",
	})
}

func (a *api) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := a.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (a *api) jobEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := a.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	stream.ServeSSE(w, r, job, a.tick)
}

func (a *api) listLeads(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no lead store configured")
		return
	}

	qs := r.URL.Query()
	filter := model.LeadFilter{
		RunID:    qs.Get("run_id"),
		Industry: qs.Get("industry"),
		City:     qs.Get("city"),
		State:    qs.Get("state"),
	}
	var err error
	if filter.Offset, err = intParam(qs.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}
	if filter.Limit, err = intParam(qs.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	leads, err := a.store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("list leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []model.LeadRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (a *api) getRun(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no lead store configured")
		return
	}
	run, err := a.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		zap.L().Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *api) resolveRevenue(w http.ResponseWriter, r *http.Request) {
	var req model.CompanyQuery
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CompanyName == "" {
		writeError(w, http.StatusBadRequest, "company_name is required")
		return
	}

	res := a.revenue.Resolve(r.Context(), req.CompanyName)
	status := http.StatusOK
	if res.Failed() {
		status = http.StatusNotFound
	}
	writeJSON(w, status, res)
}

func (a *api) enrichCompany(w http.ResponseWriter, r *http.Request) {
	var req model.CompanyQuery
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CompanyName == "" && req.Domain == "" {
		writeError(w, http.StatusBadRequest, "company_name or domain is required")
		return
	}

	res, err := a.enricher.Enrich(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// pruneJobs drops finished jobs older than maxAge until ctx ends.
func (a *api) pruneJobs(ctx context.Context, every, maxAge time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.jobs.Prune(maxAge); n > 0 {
				zap.L().Debug("pruned finished jobs", zap.Int("count", n))
			}
		}
	}
}

// wait blocks until background jobs have stopped.
func (a *api) wait() { a.wg.Wait() }

func decodeQuery(w http.ResponseWriter, r *http.Request, q *model.Query) bool {
	if err := json.NewDecoder(r.Body).Decode(q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if !q.Valid() {
		writeError(w, http.StatusBadRequest, "industry and location are required")
		return false
	}
	if q.Offset < 0 || q.Limit < 0 {
		writeError(w, http.StatusBadRequest, "offset and limit must be non-negative")
		return false
	}
	return true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid integer %q", s)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request through zap.
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

// resolvePort prefers the --port flag over the config.
func resolvePort(flagPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfg.Server.Port
}

// startServer serves handler until ctx ends, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
