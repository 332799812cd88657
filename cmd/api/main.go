package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/CBPFGMS/GOmapping/config"
	"github.com/CBPFGMS/GOmapping/internal/repositories/organization"
	"github.com/CBPFGMS/GOmapping/internal/repositories/orgmapping"
	"github.com/CBPFGMS/GOmapping/internal/repositories/similarityedge"
	"github.com/CBPFGMS/GOmapping/internal/repositories/syncrun"
	"github.com/CBPFGMS/GOmapping/pkg/cache"
	"github.com/CBPFGMS/GOmapping/pkg/database"
	"github.com/CBPFGMS/GOmapping/pkg/events"
	"github.com/CBPFGMS/GOmapping/pkg/httpclient"
	"github.com/CBPFGMS/GOmapping/pkg/kafka"
	"github.com/CBPFGMS/GOmapping/pkg/knowledgebase"
	"github.com/CBPFGMS/GOmapping/pkg/logging"
	appmiddleware "github.com/CBPFGMS/GOmapping/pkg/middleware"
	"github.com/CBPFGMS/GOmapping/pkg/recommend"
	"github.com/CBPFGMS/GOmapping/pkg/redis"
	groupsroutes "github.com/CBPFGMS/GOmapping/pkg/routes/groups"
	healthroutes "github.com/CBPFGMS/GOmapping/pkg/routes/health"
	orgroutes "github.com/CBPFGMS/GOmapping/pkg/routes/organization"
	similarityroutes "github.com/CBPFGMS/GOmapping/pkg/routes/similarity"
	syncroutes "github.com/CBPFGMS/GOmapping/pkg/routes/sync"
	"github.com/CBPFGMS/GOmapping/pkg/similarity"
	syncsvc "github.com/CBPFGMS/GOmapping/pkg/sync"
	"github.com/CBPFGMS/GOmapping/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.PrettyLogs})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: cfg.AppName,
		Endpoint:    cfg.TracingEndpoint,
		Insecure:    true,
		Enabled:     cfg.TracingEnabled,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Tracing shutdown failed")
		}
	}()

	db, err := database.Connect(ctx, database.Config{
		Driver:          "postgres",
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		UserName:        cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	migrationDriver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
	})
	if err := migrations.Migrate(cfg.DatabaseName, migrationDriver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	redisClient, err := redis.NewClient(redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	viewCache := cache.New(redisClient, logger, "views:", cfg.CacheTTL)
	locker := redis.NewLocker(redisClient, "lock:")

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaOutputTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		defer producer.Close()
	}
	emitter := events.NewEmitter(producer, logger)

	orgRepo := organization.NewRepository(db, logger)
	mappingRepo := orgmapping.NewRepository(db, logger)
	edgeRepo := similarityedge.NewRepository(db, logger)
	runRepo := syncrun.NewRepository(db, logger)

	kb := knowledgebase.New()
	summaryBuilder := similarity.NewSummaryBuilder(kb, 0, logger)
	engine := similarity.NewEngine(orgRepo, edgeRepo, mappingRepo, summaryBuilder, viewCache, emitter, logger)

	feedClient := httpclient.NewClient(httpclient.Config{
		Timeout: cfg.FeedTimeout,
		Auth: httpclient.BasicAuth{
			Username: cfg.FeedUsername,
			Password: cfg.FeedPassword,
		},
	}, logger)
	syncService := syncsvc.NewService(syncsvc.Config{
		GlobalOrgURL:       cfg.GlobalOrgFeedURL,
		OrgMappingURL:      cfg.OrgMappingFeedURL,
		MinInterval:        cfg.SyncMinInterval,
		ChecksumSampleSize: cfg.SyncChecksumSample,
		LockTTL:            cfg.SyncLockTTL,
	}, feedClient, orgRepo, mappingRepo, runRepo, syncsvc.RedisLocker{Locker: locker}, viewCache, emitter, logger)

	advisorClient := httpclient.NewClient(httpclient.DefaultConfig(), logger)
	var advisor recommend.Advisor
	if chat := recommend.NewChatAdvisor(recommend.ChatConfig{
		Endpoint:    cfg.AdvisorEndpoint,
		APIKey:      cfg.AdvisorAPIKey,
		Model:       cfg.AdvisorModel,
		Temperature: cfg.AdvisorTemperature,
		MaxTokens:   cfg.AdvisorMaxTokens,
	}, advisorClient, logger); chat != nil {
		advisor = chat
	}
	adviceService := recommend.NewService(advisor, kb, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = appmiddleware.Error(logger)
	e.Use(appmiddleware.Context())
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(appmiddleware.Logger(logger))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	checker := healthroutes.NewChecker(db, redisClient, cfg.Version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	orgroutes.NewHandler(orgRepo, mappingRepo, edgeRepo).Register(api.Group("/organizations"))
	similarityroutes.NewHandler(engine, cfg.SimilarityThreshold, cfg.SimilarityMaxBucket).Register(api)
	syncroutes.NewHandler(syncService).Register(api)
	groupsroutes.NewHandler(adviceService).Register(api)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:  time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting %s on port %d", cfg.AppName, cfg.Port)
		if err := e.StartServer(server); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	checker.SetReady(true)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	checker.SetReady(false)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}
