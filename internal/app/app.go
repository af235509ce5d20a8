package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/RMahshie/sleepsense/internal/analysis"
	"github.com/RMahshie/sleepsense/internal/cache"
	"github.com/RMahshie/sleepsense/internal/config"
	"github.com/RMahshie/sleepsense/internal/metrics"
	"github.com/RMahshie/sleepsense/internal/navigation"
	"github.com/RMahshie/sleepsense/internal/processing"
	"github.com/RMahshie/sleepsense/internal/repository"
	"github.com/RMahshie/sleepsense/internal/repository/postgres"
	"github.com/RMahshie/sleepsense/internal/session"
	"github.com/RMahshie/sleepsense/internal/signal"
	"github.com/RMahshie/sleepsense/internal/storage"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// App is the wired viewer shared by the HTTP server and the desktop UI
type App struct {
	Config   *config.Config
	Manager  *session.Manager
	Reports  processing.ReportService
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	// History is the study and report history, nil without a database
	History repository.Repository

	db    *sql.DB
	redis *redis.Client
}

// New wires the viewer from cfg. Postgres, Redis and S3 are each optional;
// an unreachable one is logged and left disabled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	deps := processing.Dependencies{Metrics: a.Metrics}
	var recorder session.StudyRecorder

	// Step 1: Archive storage
	var fetcher signal.Fetcher
	if cfg.AWS.S3Bucket != "" {
		s3Service, err := storage.NewS3Service(storage.S3Config{
			Bucket:    cfg.AWS.S3Bucket,
			Endpoint:  cfg.AWS.S3Endpoint,
			Region:    cfg.AWS.Region,
			AccessKey: cfg.AWS.AccessKeyID,
			SecretKey: cfg.AWS.SecretAccessKey,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Archive storage disabled")
		} else {
			deps.Archive = s3Service
			fetcher = s3Service
		}
	}

	// Step 2: Database
	if cfg.Database.URL != "" {
		if err := a.openDatabase(ctx, &deps, &recorder); err != nil {
			log.Warn().Err(err).Msg("Persistence disabled")
		}
	}

	// Step 3: Summary cache
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			client.Close()
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Summary cache disabled")
		} else {
			a.redis = client
			deps.Cache = cache.NewRedisSummaryCache(client, cfg.Redis.TTL)
		}
	}

	store := signal.NewStore(signal.Options{
		MinRecordSeconds:    cfg.Data.MinRecordSeconds,
		MockDurationSeconds: cfg.Data.MockDurationSeconds,
		MockSeed:            cfg.Data.MockSeed,
	}, fetcher)

	frames := navigation.Config{
		DefaultFrame: cfg.Navigation.DefaultFrameSeconds,
		MinFrame:     cfg.Navigation.MinFrameSeconds,
		MaxFrame:     cfg.Navigation.MaxFrameSeconds,
	}
	a.Manager = session.NewManager(store, analysis.NewThresholdSummarizer(), frames, recorder)
	a.Reports = processing.NewReportService(deps)

	log.Info().
		Bool("archive", deps.Archive != nil).
		Bool("database", a.db != nil).
		Bool("cache", a.redis != nil).
		Msg("Viewer initialized")
	return a, nil
}

func (a *App) openDatabase(ctx context.Context, deps *processing.Dependencies, recorder *session.StudyRecorder) error {
	db, err := postgres.Open(ctx, a.Config.Database.URL)
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	repo := postgres.NewPostgresStudyRepository(db)
	a.db = db
	a.History = repo
	deps.Summaries = repo
	deps.Reports = repo
	*recorder = repo
	return nil
}

// Close releases the database and cache connections
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close summary cache")
		}
	}
}
