package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/adrewards/backend/internal/ads"
	"github.com/adrewards/backend/internal/config"
	"github.com/adrewards/backend/internal/database"
	"github.com/adrewards/backend/internal/database/migrations"
	"github.com/adrewards/backend/internal/handlers"
	"github.com/adrewards/backend/internal/jobs"
	"github.com/adrewards/backend/internal/logging"
	"github.com/adrewards/backend/internal/middleware"
	"github.com/adrewards/backend/internal/notify"
	"github.com/adrewards/backend/internal/queue"
	"github.com/adrewards/backend/internal/routes"
	"github.com/adrewards/backend/internal/services/ledger"
	"github.com/adrewards/backend/internal/services/referral"
	"github.com/adrewards/backend/internal/services/reward"
	"github.com/adrewards/backend/internal/services/task"
	"github.com/adrewards/backend/internal/services/user"
	"github.com/adrewards/backend/internal/services/verify"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New(cfg.Environment)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if err := migrations.RunMigrations(db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	catalog := ads.NewCatalog(cfg.Ads, cfg.Reward.AdsPerCycle)

	// outbound transport: webhook when configured, logs otherwise
	var transport notify.Notifier
	if cfg.Transport.WebhookURL != "" {
		transport = notify.NewWebhookNotifier(cfg.Transport.WebhookURL, cfg.Transport.AuthToken)
	} else {
		log.Warn("no transport webhook configured; notifications go to the log")
		transport = notify.NewLogNotifier(log)
	}

	jobQueue := queue.NewQueue(db, log)

	// countdown goroutines never deliver inline: with redis available a
	// worker pool drains a fast queue, otherwise webhook deliveries ride the
	// durable job queue
	notifier := transport
	var worker *queue.Worker
	if cfg.Redis.URL != "" {
		redisClient, err := queue.NewRedisClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		redisQueue := queue.NewRedisQueue(redisClient)
		notifier = notify.NewQueuedNotifier(redisQueue)
		worker = queue.NewWorker(redisQueue, notify.DeliveryHandler(transport), 4, log)
		worker.Start()
	} else if cfg.Transport.WebhookURL != "" {
		notifier = notify.NewQueuedNotifier(queue.NewJobPusher(jobQueue))
	}

	registry := task.NewRegistry(db)
	ledgerSvc := ledger.NewLedgerService(db)
	referralSvc := referral.NewReferralService(db)
	userSvc := user.NewUserService(db, referralSvc)
	dispatcher := reward.NewDispatcher(db, cfg.Reward, referralSvc, notifier, log)

	settleRetry := jobs.RegisterJobHandlers(jobQueue, dispatcher, notify.DeliveryHandler(transport))
	go jobQueue.ProcessJobs()

	verifier := verify.NewManager(registry, dispatcher, notifier, settleRetry, verify.Config{
		Dwell:       time.Duration(cfg.Reward.DwellSeconds) * time.Second,
		Checkpoints: cfg.Reward.Checkpoints,
	}, log)

	reaper := jobs.NewStaleTaskReaper(
		registry, settleRetry, notifier,
		time.Duration(cfg.Reward.DwellSeconds)*time.Second,
		time.Duration(cfg.Reward.ReaperGrace)*time.Second,
		log,
	)
	scheduler := jobs.NewScheduler()
	if err := jobs.ScheduleRecurringJobs(scheduler, reaper); err != nil {
		log.WithError(err).Fatal("failed to schedule recurring jobs")
	}
	scheduler.StartAsync()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
	}))

	rateLimiter := middleware.NewRateLimiter(10, 30, 20, 5)

	userHandler := handlers.NewUserHandler(userSvc, referralSvc, ledgerSvc)
	taskHandler := handlers.NewTaskHandler(catalog, verifier, registry)
	adminHandler := handlers.NewAdminHandler(cfg, ledgerSvc, registry)

	routes.RegisterRoutes(router, userHandler, taskHandler, adminHandler, rateLimiter, cfg.JWT.Secret)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("reward engine listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// on shutdown, live countdowns are cancelled and must clear their task
	// registrations before the process exits
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	if err := verifier.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("verification shutdown error")
	}
	scheduler.Stop()
	jobQueue.Stop()
	if worker != nil {
		worker.Stop()
	}
	rateLimiter.Stop()
}
