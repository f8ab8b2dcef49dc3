package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/jafarov01/property-management-bot/config"
	"github.com/jafarov01/property-management-bot/internal/api"
	"github.com/jafarov01/property-management-bot/internal/cache"
	"github.com/jafarov01/property-management-bot/internal/commands"
	"github.com/jafarov01/property-management-bot/internal/jobs"
	"github.com/jafarov01/property-management-bot/internal/messaging"
	"github.com/jafarov01/property-management-bot/internal/models"
	"github.com/jafarov01/property-management-bot/internal/notify"
	"github.com/jafarov01/property-management-bot/internal/parsing"
	"github.com/jafarov01/property-management-bot/internal/pipeline"
	"github.com/jafarov01/property-management-bot/internal/scheduler"
	"github.com/jafarov01/property-management-bot/internal/search"
	"github.com/jafarov01/property-management-bot/internal/services"
	"github.com/jafarov01/property-management-bot/internal/store"
	"github.com/jafarov01/property-management-bot/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operations service",
	Long:  `Start the HTTP server, the mail ingestion pipeline and the background job scheduler in one process`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return errors.Wrapf(err, "invalid timezone %s", cfg.Timezone)
	}

	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache, _ = cache.NewRedisCache(config.RedisConfig{Enabled: false})
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient, _ = search.NewElasticClient(config.ElasticConfig{})
	}

	sched, err := scheduler.New(loc)
	if err != nil {
		return err
	}

	entityStore := store.NewGormStore(db, readOnlyDB)
	emitter := notify.NewLogEmitter()
	parser := parsing.NewClient(cfg.Parser.BaseURL, cfg.Parser.Timeout)
	queue := pipeline.NewQueue()

	svc := services.NewService(
		entityStore, emitter, parser, redisCache, elasticClient,
		sched, queue, clockwork.NewRealClock(), loc, cfg.Jobs,
	)
	registry := commands.NewRegistry(svc)

	if err := jobs.Register(sched, svc, cfg.Jobs); err != nil {
		return err
	}
	sched.Start()

	consumer := pipeline.NewConsumer(queue, svc.HandleParseJob)
	g.Go(func() error {
		return consumer.Run(ctx)
	})

	if cfg.ServiceBus.Enabled {
		bus, err := messaging.NewAzureServiceBus(cfg.ServiceBus)
		if err != nil {
			return err
		}
		g.Go(func() error {
			log.Info().Str("queue", cfg.ServiceBus.QueueName).Msg("Starting Service Bus processor")
			return bus.ProcessMessages(ctx, svc.IngestMailboxMessage)
		})
		defer bus.Close()
	} else {
		log.Warn().Msg("Service Bus disabled, mail ingestion is off")
	}

	server := api.NewServer(cfg, svc, registry, tracer)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Service error")
		return err
	}

	queue.Close()
	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown error")
	}
	if tracer != nil {
		tracer.Close()
	}
	if err := redisCache.Close(); err != nil {
		log.Error().Err(err).Msg("Redis shutdown error")
	}

	log.Info().Msg("Service shut down gracefully")
	return nil
}

func initDatabases(cfg config.Config) (*gorm.DB, *gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DB.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}

	readOnlyDSN := cfg.DB.ReadOnlyDSN
	if readOnlyDSN == "" {
		readOnlyDSN = cfg.DB.DSN
	}
	readOnlyDB, err := gorm.Open(postgres.Open(readOnlyDSN), &gorm.Config{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}

	// Auto-migrate only the write database
	if err := models.SetupModels(db); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get underlying write DB connection")
	}
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	return db, readOnlyDB, nil
}
