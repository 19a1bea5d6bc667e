package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/goto-eat-map/csv2geojson/internal/address"
	"github.com/goto-eat-map/csv2geojson/internal/config"
	"github.com/goto-eat-map/csv2geojson/internal/genre"
	"github.com/goto-eat-map/csv2geojson/internal/metrics"
	"github.com/goto-eat-map/csv2geojson/internal/pipeline"
	"github.com/goto-eat-map/csv2geojson/internal/postal"
	"github.com/goto-eat-map/csv2geojson/internal/resilience"
	"github.com/goto-eat-map/csv2geojson/internal/store"
	"github.com/goto-eat-map/csv2geojson/internal/validate"
	"github.com/goto-eat-map/csv2geojson/pkg/geocode"
)

// pipelineEnv holds the components the run and serve commands share.
type pipelineEnv struct {
	Store        store.Store   // nil when nothing needs sqlite
	Redis        *redis.Client // nil unless the redis cache is selected
	Classifier   *genre.Classifier
	Regions      *address.Regions
	Metrics      *metrics.Registry
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the environment.
func (pe *pipelineEnv) Close() {
	if pe.Redis != nil {
		_ = pe.Redis.Close()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the sqlite database.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initClassifier loads the rule table from genre.rules_file, or the embedded
// default when unset.
func initClassifier(gc config.GenreConfig) (*genre.Classifier, error) {
	if gc.RulesFile == "" {
		return genre.NewDefaultClassifier()
	}
	rules, err := genre.LoadRules(gc.RulesFile)
	if err != nil {
		return nil, err
	}
	return genre.NewClassifier(rules), nil
}

// buildProviders creates the configured providers in cascade order.
func buildProviders(gc config.GeocodeConfig) ([]geocode.Provider, error) {
	opts := []geocode.Option{geocode.WithRetry(resilience.GeocodeRetry(gc))}
	if gc.RateLimit > 0 {
		opts = append(opts, geocode.WithRateLimit(gc.RateLimit))
	}

	providers := make([]geocode.Provider, 0, len(gc.Providers))
	for _, name := range gc.Providers {
		switch name {
		case "dams":
			providers = append(providers, geocode.NewDAMSProvider(gc.DAMSURL, opts...))
		case "gsi":
			providers = append(providers, geocode.NewGSIProvider(gc.GSIURL, opts...))
		case "google":
			providers = append(providers, geocode.NewGoogleProvider(gc.GoogleAPIKey, opts...))
		default:
			return nil, eris.Errorf("unknown geocode provider %q", name)
		}
	}
	return providers, nil
}

// buildGeocoder wraps the provider cascade with the configured cache.
func buildGeocoder(gc config.GeocodeConfig, st store.Store, rdb *redis.Client, providers []geocode.Provider) (geocode.Client, error) {
	cascade := geocode.NewCascadeClient(providers,
		geocode.WithCircuitBreaker(resilience.GeocodeCircuit(gc)),
	)
	names := cascade.Providers()
	if len(names) == 0 {
		return nil, eris.New("no geocode provider is available")
	}
	zap.L().Info("geocode providers", zap.Strings("providers", names), zap.String("cache", gc.Cache.Driver))

	ttl := time.Duration(gc.Cache.TTLDays) * 24 * time.Hour
	switch gc.Cache.Driver {
	case "sqlite":
		if st == nil {
			return nil, eris.New("sqlite geocode cache needs a store")
		}
		return geocode.NewCachedClient(cascade, store.GeocodeCache(st, ttl)), nil
	case "redis":
		if rdb == nil {
			return nil, eris.New("redis geocode cache needs a redis client")
		}
		return geocode.NewCachedClient(cascade, store.NewRedisCache(rdb, ttl)), nil
	case "memory":
		return geocode.NewCachedClient(cascade, geocode.NewMemoryCache()), nil
	case "none", "":
		return cascade, nil
	default:
		return nil, eris.Errorf("unknown geocode cache driver %q", gc.Cache.Driver)
	}
}

// needsStore reports whether c uses the sqlite database.
func needsStore(c *config.Config) bool {
	return c.Postal.Enabled || c.Geocode.Cache.Driver == "sqlite"
}

// initPipeline builds the store, caches, geocoder and orchestrator. Callers
// should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate("run"); err != nil {
		return nil, err
	}

	env := &pipelineEnv{Metrics: metrics.NewRegistry()}
	ok := false
	defer func() {
		if !ok {
			env.Close()
		}
	}()

	if needsStore(cfg) {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st

		if cfg.Geocode.Cache.Driver == "sqlite" {
			n, err := st.DeleteExpiredGeocodes(ctx)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				zap.L().Info("purged expired geocode cache entries", zap.Int("count", n))
			}
		}
	}

	if cfg.Geocode.Cache.Driver == "redis" {
		rdb, err := store.NewRedisClient(ctx, store.RedisOptions{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		env.Redis = rdb
	}

	classifier, err := initClassifier(cfg.Genre)
	if err != nil {
		return nil, err
	}
	env.Classifier = classifier

	regions, err := address.NewRegions(cfg.Regions.Aliases)
	if err != nil {
		return nil, err
	}
	env.Regions = regions

	providers, err := buildProviders(cfg.Geocode)
	if err != nil {
		return nil, err
	}
	geocoder, err := buildGeocoder(cfg.Geocode, env.Store, env.Redis, providers)
	if err != nil {
		return nil, err
	}

	var lookup postal.Lookup
	if cfg.Postal.Enabled {
		n, err := env.Store.CountPostalCodes(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			zap.L().Warn("postal table is empty, zip/region check disabled; run `csv2geojson postal import`")
		} else {
			lookup = postal.NewMemo(store.PostalLookup(env.Store))
		}
	}

	env.Orchestrator = pipeline.New(classifier, regions, geocoder, validate.New(lookup), pipeline.Options{
		Concurrency:    cfg.Pipeline.Concurrency,
		GeocodeTimeout: time.Duration(cfg.Pipeline.GeocodeTimeoutSecs) * time.Second,
		Metrics:        env.Metrics,
	})

	ok = true
	return env, nil
}
