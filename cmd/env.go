package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/fetcher"
	"github.com/sells-group/leadgen/internal/matchcache"
	"github.com/sells-group/leadgen/internal/orchestrator"
	"github.com/sells-group/leadgen/internal/parse"
	"github.com/sells-group/leadgen/internal/source"
	"github.com/sells-group/leadgen/internal/store"
	"github.com/sells-group/leadgen/internal/stream"
	anthropicpkg "github.com/sells-group/leadgen/pkg/anthropic"
	"github.com/sells-group/leadgen/pkg/apollo"
	"github.com/sells-group/leadgen/pkg/deepseek"
	"github.com/sells-group/leadgen/pkg/jina"
)

// appEnv holds the clients and backends the commands share. Optional
// clients are nil when their key is not configured.
type appEnv struct {
	Store      store.Store // nil unless requested
	Cache      matchcache.Cache
	Fetcher    *fetcher.HTTPFetcher
	Parser     *parse.Parser
	Jina       jina.Client
	Apollo     apollo.Client
	Growjo     *source.Growjo
	Classifier enrich.Classifier
	Publisher  *stream.Publisher

	closers []func()
}

// Close releases everything the environment opened, newest first.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *appEnv) onClose(fn func()) { e.closers = append(e.closers, fn) }

// Scraper builds a multi-source scraper. names overrides the configured
// source list when non-empty.
func (e *appEnv) Scraper(names ...string) (*orchestrator.Scraper, error) {
	sources, err := source.Build(cfg, source.Deps{
		Fetcher: e.Fetcher,
		Jina:    e.Jina,
		Apollo:  e.Apollo,
	}, names...)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, eris.New("no lead sources enabled")
	}
	return orchestrator.NewScraper(sources, e.Parser, cfg.Batch.Concurrency), nil
}

// Enricher builds the single-company enricher.
func (e *appEnv) Enricher() *enrich.Enricher {
	var rev enrich.RevenueResolver
	if e.Growjo != nil {
		rev = e.Growjo
	}
	return enrich.New(e.Apollo, rev, e.Classifier, e.Parser)
}

// initEnv validates the config for mode and sets up the shared clients.
// withStore also opens and migrates the lead store. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string, withStore bool) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &appEnv{Parser: parse.NewParser(nil)}

	if withStore {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
		env.onClose(func() { _ = st.Close() })
	}

	cache, err := initCache(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Cache = cache
	env.onClose(func() { _ = cache.Close() })

	env.Fetcher = fetcher.New(fetcher.Options{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		Rate:      rate.Limit(cfg.Fetch.RatePerSec),
		Burst:     cfg.Fetch.Burst,
		Attempts:  cfg.Fetch.MaxRetries + 1,
	})

	if cfg.Jina.Key != "" {
		jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
		if cfg.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		}
		env.Jina = jina.NewClient(cfg.Jina.Key, jinaOpts...)
	}
	if cfg.Apollo.Key != "" {
		env.Apollo = apollo.NewClient(cfg.Apollo.Key, apollo.WithBaseURL(cfg.Apollo.BaseURL))
	}

	var growjoOpts []source.GrowjoOption
	if env.Jina != nil {
		growjoOpts = append(growjoOpts,
			source.WithReader(env.Jina),
			source.WithSearcher(source.JinaSearcher{Client: env.Jina}),
		)
	}
	env.Growjo = source.NewGrowjo(cfg.Growjo.BaseURL, env.Fetcher, env.Cache, growjoOpts...)

	var ds deepseek.Client
	if cfg.DeepSeek.Key != "" {
		ds = deepseek.NewClient(cfg.DeepSeek.Key,
			deepseek.WithBaseURL(cfg.DeepSeek.BaseURL),
			deepseek.WithModel(cfg.DeepSeek.Model),
		)
	}
	var an anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		an = anthropicpkg.NewClient(cfg.Anthropic.Key)
	}
	if ds != nil || an != nil {
		env.Classifier = enrich.NewClassifier(ds, an, cfg.Anthropic.Model)
	}

	if cfg.NATS.URL != "" {
		pub, closeFn, err := stream.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			// events are optional; the API works without them
			zap.L().Warn("nats unavailable, job events not published", zap.Error(err))
		} else {
			env.Publisher = pub
			env.onClose(closeFn)
		}
	}

	return env, nil
}

// initStore opens the configured lead store and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		st = pg
	default:
		lite, err := store.NewSQLite(cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		st = lite
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initCache opens the configured match cache. An empty cache is seeded
// from the legacy JSON file when one exists.
func initCache(ctx context.Context) (matchcache.Cache, error) {
	var c matchcache.Cache
	switch cfg.Cache.Driver {
	case "postgres":
		pg, err := matchcache.NewPostgres(ctx, cfg.PostgresCacheURL())
		if err != nil {
			return nil, err
		}
		c = pg
	case "memory":
		c = matchcache.NewMemory()
	default:
		lite, err := matchcache.NewSQLite(ctx, cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		c = lite
	}

	if err := seedCache(ctx, c, cfg.Cache.LegacyFile); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// seedCache imports the legacy file into c when c is empty.
func seedCache(ctx context.Context, c matchcache.Cache, legacy string) error {
	if legacy == "" {
		return nil
	}
	if _, err := os.Stat(legacy); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	snap, err := c.All(ctx)
	if err != nil {
		return err
	}
	if snap.Len() > 0 {
		return nil
	}
	n, err := matchcache.Import(ctx, c, legacy)
	if err != nil {
		return eris.Wrap(err, "seed match cache")
	}
	zap.L().Info("seeded match cache from legacy file",
		zap.String("file", legacy),
		zap.Int("entries", n),
	)
	return nil
}

// batchOptions maps the batch config onto orchestrator options.
func batchOptions(name string) orchestrator.Options {
	return orchestrator.Options{
		Name:        name,
		Concurrency: cfg.Batch.Concurrency,
		BatchSize:   cfg.Batch.BatchSize,
		PauseMin:    time.Duration(cfg.Batch.PauseMinSecs) * time.Second,
		PauseMax:    time.Duration(cfg.Batch.PauseMaxSecs) * time.Second,
		Retry:       cfg.Batch.Retry,
	}
}
