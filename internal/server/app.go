// Package server initializes and runs the batch upload API server: database
// and migrations, object storage gateway, archival task dispatcher, the
// service layer, and the HTTP endpoint with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mvasilkovs/astrobatch/internal/blobstore"
	"github.com/mvasilkovs/astrobatch/internal/dispatch"
	"github.com/mvasilkovs/astrobatch/internal/logging"
	"github.com/mvasilkovs/astrobatch/internal/server/api"
	"github.com/mvasilkovs/astrobatch/internal/server/config"
	"github.com/mvasilkovs/astrobatch/internal/server/repositories/repomanager"
	"github.com/mvasilkovs/astrobatch/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := blobstore.NewS3Gateway(ctx, blobstore.Options{
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}
	dispatcher := dispatch.NewECSDispatcher(ecs.NewFromConfig(awsCfg), dispatch.ECSOptions{
		ClusterARN:        cfg.ECSClusterARN,
		TaskDefinitionARN: cfg.ECSTaskDefinitionARN,
		ContainerName:     cfg.ECSContainerName,
		SubnetID:          cfg.ECSSubnetID,
		SecurityGroupID:   cfg.ECSSecurityGroupID,
		AssignPublicIP:    cfg.ECSAssignPublicIP,
	})

	uploadSvc := services.NewUploadService(db, repos, cfg, blobs, dispatcher, logger)
	batchSvc := services.NewBatchService(db, repos, cfg, logger)
	imageSvc := services.NewImageService(db, repos, cfg, blobs, logger)
	targetSvc := services.NewTargetService(db, repos)

	handlers := api.NewHandlers(uploadSvc, batchSvc, imageSvc, targetSvc, logger)
	router := api.NewRouter(cfg, logger, handlers)

	srv := &http.Server{
		Addr:    cfg.EndpointAddr,
		Handler: router,
	}

	return &App{config: cfg, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "http server error", "error", err.Error())
			cancelFunc()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err.Error())
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err.Error())
	}

	app.logger.Info(context.Background(), "server stopped")
}
