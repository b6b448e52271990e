package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/job-intake/internal/clients/engine"
	"github.com/maxaizer/job-intake/internal/config"
	"github.com/maxaizer/job-intake/internal/logger"
	"github.com/maxaizer/job-intake/internal/metrics"
	"github.com/maxaizer/job-intake/internal/progress"
	"github.com/maxaizer/job-intake/internal/queue"
	"github.com/maxaizer/job-intake/internal/repositories"
	"github.com/maxaizer/job-intake/internal/server"
	"github.com/maxaizer/job-intake/internal/services"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the worker pool",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	cfg, err := config.Get()
	if err != nil {
		return err
	}

	if err = logger.Setup(ctx, cfg.Logger); err != nil {
		return err
	}
	defer logger.Cleanup()

	metrics.Register()

	dbContext, err := openDatabase(cfg.DB)
	if err != nil {
		return err
	}
	defer dbContext.Close()

	rdb, err := queue.NewRedisClient(ctx, cfg.Queue.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	tasks := queue.New(rdb, cfg.Queue.Topic, cfg.Queue.MaxAttempts)
	recovered, err := tasks.RecoverInFlight(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		log.Infof("moved %d unfinished tasks back to the queue", recovered)
	}

	users := repositories.NewUsersRepository(dbContext.DB)
	postings := repositories.NewPostingsRepository(dbContext.DB)

	bus := EventBus.New()

	progressStore := progress.NewStore()
	if err = progressStore.Subscribe(bus); err != nil {
		return err
	}

	dispatcher, err := services.NewDispatcher(bus, tasks)
	if err != nil {
		return err
	}

	engineClient := engine.NewClient(cfg.Engine.URL, cfg.Engine.Timeout)
	engineClient.SetRateLimit(cfg.Engine.MaxRequestsPerSecond)
	engineClient.SetSharedSecret(cfg.Server.SharedSecret)

	ledger := services.NewCreditLedger(users)
	pool := services.NewWorkerPool(bus, tasks, engineClient, ledger, postings, cfg.Queue.Workers)

	monitor, err := services.NewQueueMonitor(tasks, services.DefaultMonitorSchedule)
	if err != nil {
		return err
	}
	defer monitor.Stop()

	api := server.New(server.Config{
		Port:           cfg.Server.Port,
		SharedSecret:   cfg.Server.SharedSecret,
		JWTSecret:      cfg.Server.JWTSecret,
		IntakeWait:     cfg.Server.IntakeWait,
		ProtectCredits: cfg.Server.ProtectCredits,
	}, server.Dependencies{
		Dispatcher: dispatcher,
		Ledger:     ledger,
		Callbacks:  services.NewCallbackIngestor(postings, users, cfg.Server.SharedSecret),
		Progress:   progressStore,
		Postings:   postings,
		Users:      users,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return api.Run(gctx) })

	err = g.Wait()
	log.Info("services stopped")
	return err
}

func openDatabase(cfg config.DBConfig) (*repositories.DbContext, error) {
	dbContext, err := repositories.NewDbContext(cfg.ConnectionString)
	if err != nil {
		return nil, err
	}
	if err = dbContext.Migrate(); err != nil {
		_ = dbContext.Close()
		return nil, err
	}
	return dbContext, nil
}
