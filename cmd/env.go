package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lensview/insight/internal/acquire"
	"github.com/lensview/insight/internal/cache"
	"github.com/lensview/insight/internal/enrich"
	"github.com/lensview/insight/internal/generate"
	"github.com/lensview/insight/internal/pipeline"
	"github.com/lensview/insight/internal/prompts"
	"github.com/lensview/insight/internal/store"
	"github.com/lensview/insight/internal/usage"
	"github.com/lensview/insight/pkg/llm"
	"github.com/lensview/insight/pkg/moderation"
	"github.com/lensview/insight/pkg/reader"
	"github.com/lensview/insight/pkg/transcribe"
	"github.com/lensview/insight/pkg/videometa"
	"github.com/lensview/insight/pkg/websearch"
)

// appEnv wires the configured dependency graph for a command run.
type appEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
	Limiter  usage.RateLimiter

	redis      *redis.Client
	memLimiter *usage.MemoryLimiter
}

// initApp builds the full pipeline from config.
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env := &appEnv{Store: st}

	llmOpts := []llm.Option{
		llm.WithRequestsPerSecond(cfg.LLM.RequestsPerSecond),
	}
	if cfg.LLM.TimeoutSecs > 0 {
		llmOpts = append(llmOpts, llm.WithTimeout(time.Duration(cfg.LLM.TimeoutSecs)*time.Second))
	}
	llmClient := llm.NewClient(cfg.LLM.Key, llmOpts...)

	var searchClient websearch.Client
	if cfg.WebSearch.Key != "" {
		searchClient = websearch.NewClient(cfg.WebSearch.Key,
			websearch.WithBaseURL(cfg.WebSearch.BaseURL),
			websearch.WithModel(cfg.WebSearch.Model),
		)
	} else {
		zap.L().Warn("web search key not configured; analyses run without live evidence")
	}

	readerClient := reader.NewClient(cfg.Reader.Key, reader.WithBaseURL(cfg.Reader.BaseURL))
	videoClient := videometa.NewClient(cfg.VideoMeta.Key, cfg.VideoMeta.BaseURL)
	transcribeClient := transcribe.NewClient(cfg.Transcribe.Key, cfg.Transcribe.BaseURL)

	var moderator moderation.Client
	if cfg.Moderation.Key != "" {
		moderator = moderation.NewClient(cfg.Moderation.Key,
			moderation.WithBaseURL(cfg.Moderation.BaseURL))
	} else {
		zap.L().Warn("moderation key not configured; screening gate disabled")
	}

	acquirer := acquire.New(cfg.Acquire, videoClient, readerClient, transcribeClient, cfg.Transcribe.CallbackURL)

	registry := prompts.NewRegistry(cfg.Prompts.Path,
		time.Duration(cfg.Prompts.CacheTTLSecs)*time.Second)

	enricher := enrich.New(cfg.Pipeline, searchClient, llmClient, cfg.LLM.TriageModel, st)
	generator := generate.New(registry, llmClient, cfg.LLM, cfg.Pipeline)
	reuser := cache.New(cfg.Cache, st)
	quota := usage.NewQuota(cfg.Usage, st)

	env.Pipeline = pipeline.New(cfg.Pipeline, st, acquirer, moderator, enricher, generator, reuser, quota)

	if cfg.Redis.Addr != "" {
		env.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := env.redis.Ping(ctx).Err(); err != nil {
			zap.L().Warn("redis unreachable; using in-memory rate limiting", zap.Error(err))
			env.redis.Close()
			env.redis = nil
		}
	}

	window := time.Duration(cfg.Usage.RateWindowSecs) * time.Second
	if env.redis != nil {
		env.Limiter = usage.NewRedisLimiter(env.redis, cfg.Usage.RateLimitPerMinute, window)
	} else {
		env.memLimiter = usage.NewMemoryLimiter(cfg.Usage.RateLimitPerMinute, window)
		env.Limiter = env.memLimiter
	}

	return env, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Close releases the environment's resources.
func (e *appEnv) Close() {
	if e.memLimiter != nil {
		e.memLimiter.Close()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("store close failed", zap.Error(err))
		}
	}
}
