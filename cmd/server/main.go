package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/api/handlers"
	"github.com/maheshrc27/postpilot/internal/api/middleware"
	"github.com/maheshrc27/postpilot/internal/db"
	job "github.com/maheshrc27/postpilot/internal/jobs"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg := config.LoadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	conn, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer closeDB(conn)

	if err := conn.Ping(); err != nil {
		fatal("database is unreachable", err)
	}

	if err := db.Migrate(conn); err != nil {
		fatal("failed to apply migrations", err)
	}

	postRepo := repository.NewPostRepository(conn)
	historyRepo := repository.NewPostingHistoryRepository(conn)
	credentialsRepo := repository.NewCredentialsRepository(conn)
	mediaAssetRepo := repository.NewMediaAssetRepository(conn)

	httpClient := service.NewHTTPClient(*cfg)
	instagramService := service.NewInstagramService(*cfg, httpClient, credentialsRepo)
	youtubeService := service.NewYoutubeService(*cfg, httpClient, credentialsRepo)
	tiktokService := service.NewTiktokService(*cfg, httpClient, credentialsRepo)
	publisherService := service.NewPublisherService(postRepo, historyRepo, instagramService, youtubeService, tiktokService)

	postService := service.NewPostService(postRepo, historyRepo)
	platformService := service.NewPlatformService(*cfg, credentialsRepo, publisherService)

	r2Service, err := service.NewR2Service(context.Background(), *cfg)
	if err != nil {
		fatal("failed to configure object storage", err)
	}
	mediaService := service.NewMediaService(mediaAssetRepo, r2Service)

	scheduler := job.NewPostScheduler(cfg.Scheduler, postRepo, publisherService)
	if err := scheduler.Start(); err != nil {
		fatal("failed to start post scheduler", err)
	}

	refreshTokenJob := job.NewTokenRefreshJob(credentialsRepo, youtubeService, tiktokService, instagramService)
	c := cron.New()
	c.AddFunc(job.TokenRefreshSchedule, func() { refreshTokenJob.RefreshTokens() })
	c.Start()

	var (
		client      *asynq.Client
		queueServer *asynq.Server
	)
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		client = asynq.NewClient(redisConn)
		defer client.Close()

		queueServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Scheduler.Concurrency,
		})
		queueW := queue.NewQueue(scheduler)

		go func() {
			slog.Info("starting the asynq server")
			if err := queueServer.Run(queueW.ServeMux()); err != nil {
				fatal("could not start asynq server", err)
			}
		}()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    cfg.BodyLimitMB * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("unhandled request error", "path", c.Path(), "error", err)
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": "Something went wrong. Please try again."})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, scheduler, client)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/upcoming", post.UpcomingPosts)
	api.Get("/posts/failed", post.FailedPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Patch("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Get("/posts/:id/attempts", post.PostAttempts)
	api.Post("/posts/:id/retry", post.RetryPost)

	platform := handlers.NewPlatformHandler(platformService)
	api.Get("/platforms", platform.ListPlatforms)
	api.Put("/platforms/:platform/credentials", platform.SaveCredentials)
	api.Delete("/platforms/:platform", platform.DeletePlatform)
	api.Get("/platforms/:platform/validate", platform.ValidatePlatform)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media", media.UploadMedia)
	api.Get("/media", media.ListMedia)
	api.Delete("/media/:id", media.RemoveMedia)

	schedulerHandler := handlers.NewSchedulerHandler(scheduler)
	api.Get("/scheduler", schedulerHandler.Status)
	api.Post("/scheduler/start", schedulerHandler.Start)
	api.Post("/scheduler/stop", schedulerHandler.Stop)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			fatal("failed to start server", err)
		}
	}()
	slog.Info("server is running", "port", cfg.Port)

	gracefulShutdown(app, func() {
		scheduler.Stop()
		c.Stop()
		if queueServer != nil {
			queueServer.Shutdown()
		}
	})
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func closeDB(conn *sql.DB) {
	slog.Info("closing database connection")
	if err := conn.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func gracefulShutdown(app *fiber.App, stopWorkers func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		slog.Error("failed to shut down server", "error", err)
	}

	stopWorkers()
	slog.Info("server shutdown complete")
}
