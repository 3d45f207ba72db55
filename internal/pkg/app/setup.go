package app

import (
	"context"
	"fmt"
	"time"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/batch"
	"github.com/airenas/supaquery/internal/pkg/fetcher"
	"github.com/airenas/supaquery/internal/pkg/intent"
	"github.com/airenas/supaquery/internal/pkg/llm"
	"github.com/airenas/supaquery/internal/pkg/postgres"
	"github.com/airenas/supaquery/internal/pkg/query"
	"github.com/airenas/supaquery/internal/pkg/router"
	"github.com/airenas/supaquery/internal/pkg/storage"
	"github.com/airenas/supaquery/internal/pkg/summarizer"
	"github.com/airenas/supaquery/internal/pkg/transcriber"
	"github.com/airenas/supaquery/internal/pkg/vision"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
)

// SetDefaults sets config values used when nothing is configured
func SetDefaults(cfg *viper.Viper) {
	cfg.SetDefault("llm.url", "https://api.groq.com/openai/v1")
	cfg.SetDefault("llm.model", "llama3-70b-8192")
	cfg.SetDefault("vision.url", "https://generativelanguage.googleapis.com/v1beta")
	cfg.SetDefault("vision.model", "gemini-1.5-flash")
	cfg.SetDefault("stt.url", "https://api.openai.com/v1")
	cfg.SetDefault("stt.model", "whisper-1")
	cfg.SetDefault("storage.bucket", "receipts")
	cfg.SetDefault("batch.delay", 2*time.Second)
	cfg.SetDefault("batch.groupSize", 0)
	cfg.SetDefault("batch.groupPause", 0)
	cfg.SetDefault("tmp.dir", "/tmp/supaquery")
	cfg.SetDefault("fetch.timeout", 30*time.Second)
	cfg.SetDefault("worker.count", 1)
	cfg.SetDefault("timer.expire", 24*7*time.Hour)
	cfg.SetDefault("timer.runEvery", time.Hour)
}

// NewDBPool connects to postgres
func NewDBPool(ctx context.Context, cfg *viper.Viper) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		return nil, fmt.Errorf("can't parse db config: %w", err)
	}
	goapp.Log.Info().Int32("max_conn", dbConfig.MaxConns).Int32("min_conn", dbConfig.MinConns).Msg("db info")
	res, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("can't init db pool: %w", err)
	}
	return res, nil
}

// BatchConfig reads batch pacing
func BatchConfig(cfg *viper.Viper) *batch.Config {
	res := batch.DefaultConfig()
	if cfg.IsSet("batch.delay") {
		res.Delay = cfg.GetDuration("batch.delay")
	}
	res.GroupSize = cfg.GetInt("batch.groupSize")
	res.GroupPause = cfg.GetDuration("batch.groupPause")
	return res
}

// NewRouter wires all query handlers
func NewRouter(cfg *viper.Viper, pool *pgxpool.Pool) (*router.Service, error) {
	db, err := postgres.NewDB(pool)
	if err != nil {
		return nil, fmt.Errorf("can't init db: %w", err)
	}
	chat, err := llm.NewClient(cfg.GetString("llm.url"), cfg.GetString("llm.key"), cfg.GetString("llm.model"))
	if err != nil {
		return nil, fmt.Errorf("can't init llm: %w", err)
	}
	vm, err := vision.NewClient(cfg.GetString("vision.url"), cfg.GetString("vision.key"), cfg.GetString("vision.model"))
	if err != nil {
		return nil, fmt.Errorf("can't init vision: %w", err)
	}
	stt, err := transcriber.NewClient(cfg.GetString("stt.url"), cfg.GetString("stt.key"), cfg.GetString("stt.model"))
	if err != nil {
		return nil, fmt.Errorf("can't init transcriber: %w", err)
	}
	store, err := storage.NewStore(storage.Options{URL: cfg.GetString("storage.url"), User: cfg.GetString("storage.user"),
		Key: cfg.GetString("storage.key"), Bucket: cfg.GetString("storage.bucket"), Secure: cfg.GetBool("storage.https"),
		PublicURL: cfg.GetString("storage.publicUrl")})
	if err != nil {
		return nil, fmt.Errorf("can't init storage: %w", err)
	}
	fch, err := fetcher.NewFetcher(cfg.GetString("tmp.dir"), cfg.GetDuration("fetch.timeout"))
	if err != nil {
		return nil, fmt.Errorf("can't init fetcher: %w", err)
	}
	catalog, err := query.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("can't load query catalog: %w", err)
	}
	exec, err := postgres.NewExecutor(pool, catalog.Schema())
	if err != nil {
		return nil, fmt.Errorf("can't init executor: %w", err)
	}

	res := &router.Service{URLs: store}
	if res.Classifier, err = intent.NewClassifier(chat); err != nil {
		return nil, fmt.Errorf("can't init classifier: %w", err)
	}
	if res.Compiler, err = query.NewCompiler(chat, exec, catalog); err != nil {
		return nil, fmt.Errorf("can't init compiler: %w", err)
	}
	extractor, err := vision.NewExtractor(fch, vm)
	if err != nil {
		return nil, fmt.Errorf("can't init extractor: %w", err)
	}
	bCfg := BatchConfig(cfg)
	if res.Receipts, err = batch.NewReceipts(store, extractor, db, bCfg); err != nil {
		return nil, fmt.Errorf("can't init receipts: %w", err)
	}
	tr, err := transcriber.NewService(stt)
	if err != nil {
		return nil, fmt.Errorf("can't init transcription: %w", err)
	}
	sum, err := summarizer.NewService(chat)
	if err != nil {
		return nil, fmt.Errorf("can't init summarizer: %w", err)
	}
	if res.Audio, err = batch.NewAudio(db, fch, tr, sum, bCfg); err != nil {
		return nil, fmt.Errorf("can't init audio: %w", err)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}
