package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DARIONZITA/backend-professorIA/internal/api"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/classroom"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/grouping"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/insight"
	"github.com/DARIONZITA/backend-professorIA/internal/domain/transcription"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/cache"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/config"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/eventbus"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/llm"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/logging"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/ocrjob"
	"github.com/DARIONZITA/backend-professorIA/internal/infra/sqlite"
	"github.com/DARIONZITA/backend-professorIA/internal/server"
	"github.com/DARIONZITA/backend-professorIA/internal/version"
)

const shutdownTimeout = 30 * time.Second

func runServe(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.Must(cfg.LogMode)
	defer logger.Sync() //nolint:errcheck

	fmt.Fprintln(out, version.String()) //nolint:errcheck

	if err := ensureDataDir(cfg.DatabasePath); err != nil {
		return err
	}
	db, err := sqlite.OpenContext(ctx, cfg.DatabasePath, logger.Named("sqlite"))
	if err != nil {
		return err
	}

	bus := eventbus.New()
	defer bus.Close()

	store := classroom.NewStore(db, bus)
	if n, err := store.SeedDefaultStudents(ctx); err != nil {
		logger.Warn("seeding default students failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("seeded default students", zap.Int("count", n))
	}

	stack, err := llm.NewStackFromConfig(cfg, logger)
	if err != nil {
		_ = db.Close()
		return err
	}

	tr := transcription.NewRouter(stack.Vision, newJobRunner(cfg, logger), logger)
	synth := insight.NewSynthesizer(stack.Chain, logger)
	analyzer := classroom.NewAnalysisService(store, tr, synth, logger)

	groups, classes, closeCache, err := newCaches(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer closeCache()

	groupingSvc := grouping.NewService(stack.Chain, groups, classes, logger)
	go groupingSvc.Run(ctx, bus.Subscribe(eventbus.TopicAnalysisCreated))

	router := api.NewRouter(api.Services{
		Store:       store,
		Analyzer:    analyzer,
		Grouping:    groupingSvc,
		Transcriber: tr,
		Providers:   stack.Chain,
		Logger:      logger,
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Host = cfg.HTTPHost
	srvCfg.Port = cfg.HTTPPort
	if tr.Engine() == transcription.EngineOCRJob {
		srvCfg = srvCfg.CoverRequestsUpTo(cfg.OCRJobDeadline)
	}
	srv := server.NewServer(db, router, srvCfg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		_ = db.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newJobRunner returns nil when the remote OCR job path is disabled.
func newJobRunner(cfg config.Config, logger *zap.Logger) transcription.JobRunner {
	if cfg.OCRBackend == config.OCRBackendMultimodal || cfg.OCRSpaceURL == "" {
		return nil
	}
	return ocrjob.NewClient(
		ocrjob.NewHTTPBackend(cfg.OCRSpaceURL, nil),
		ocrjob.Config{
			PollInterval: cfg.OCRPollInterval,
			Deadline:     cfg.OCRJobDeadline,
			Language:     cfg.OCRLanguage,
		},
		logger,
	)
}

// newCaches builds the grouping and class-insight caches on the configured
// backend. The returned func releases the backend connection.
func newCaches(ctx context.Context, cfg config.Config, logger *zap.Logger) (*cache.Cache[grouping.Assignment], *cache.Cache[grouping.ClassInsights], func(), error) {
	opt := cache.WithLogger(logger)
	if cfg.CacheBackend != config.CacheBackendRedis {
		return cache.New[grouping.Assignment](cache.NewMemoryStore[grouping.Assignment](), cfg.GroupingCacheTTL, opt),
			cache.New[grouping.ClassInsights](cache.NewMemoryStore[grouping.ClassInsights](), cfg.GroupingCacheTTL, opt),
			func() {}, nil
	}

	rdb, err := cache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("grouping cache on redis", zap.String("addr", cfg.RedisAddr))
	return cache.New[grouping.Assignment](cache.NewRedisStore[grouping.Assignment](rdb, "professor:groups"), cfg.GroupingCacheTTL, opt),
		cache.New[grouping.ClassInsights](cache.NewRedisStore[grouping.ClassInsights](rdb, "professor:class"), cfg.GroupingCacheTTL, opt),
		func() { _ = rdb.Close() }, nil
}

// The generation chain feeds both insight and grouping.
var (
	_ insight.Generator  = (*llm.Chain)(nil)
	_ grouping.Generator = (*llm.Chain)(nil)
)
