package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
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

	config "github.com/dailyquill/dailyquill/configs"
	"github.com/dailyquill/dailyquill/internal/api/handlers"
	"github.com/dailyquill/dailyquill/internal/api/middleware"
	"github.com/dailyquill/dailyquill/internal/connector"
	"github.com/dailyquill/dailyquill/internal/content"
	job "github.com/dailyquill/dailyquill/internal/jobs"
	"github.com/dailyquill/dailyquill/internal/media"
	"github.com/dailyquill/dailyquill/internal/oauth"
	"github.com/dailyquill/dailyquill/internal/queue"
	"github.com/dailyquill/dailyquill/internal/repository"
	"github.com/dailyquill/dailyquill/internal/scheduler"
	"github.com/dailyquill/dailyquill/internal/secrets"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.FrontendURL,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Api-Key",
		MaxAge:       3600,
	}))

	postRepo := repository.NewPostRepository(db)
	postLogRepo := repository.NewPostLogRepository(db)
	contentRepo := repository.NewContentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	keyring := secrets.NewKeyring(secrets.NewPostgresStore(db, []byte(cfg.SecretKey)))
	orchestrator := oauth.NewOrchestrator(*cfg, keyring)

	publisher := media.NewR2Publisher(*cfg)
	generator := media.NewGenerator(os.TempDir())
	connectors := connector.BuildAll(keyring, orchestrator, publisher)

	source := content.NewSource(contentRepo, cfg.FeedURL)
	sched := scheduler.New(source, generator, connectors, postRepo, postLogRepo, settingsRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	platform := handlers.NewPlatformHandler(orchestrator, keyring, connectors, settingsRepo)
	api.Get("/platforms", platform.ListPlatforms)
	api.Post("/platforms/:platform/credentials", platform.SaveCredential)
	api.Post("/platforms/:platform/connect", platform.Connect)
	api.Post("/platforms/:platform/token", platform.SetManualToken)
	api.Post("/platforms/:platform/disconnect", platform.Disconnect)
	api.Post("/platforms/:platform/toggle", platform.ToggleEnabled)

	post := handlers.NewPostHandler(postRepo, postLogRepo, contentRepo, client)
	api.Post("/posts/trigger", post.TriggerNow)
	api.Get("/posts", post.ListPosts)
	api.Post("/content", post.CreateContent)
	api.Get("/content", post.ListContent)
	api.Delete("/content/:id", post.RemoveContent)

	runDaily := func() {
		if err := queue.EnqueuePublishCycle(client, queue.PublishCyclePayload{}, 0); err != nil {
			log.Printf("Failed to enqueue daily publish cycle: %v", err)
		}
	}

	registrar := scheduler.NewCronRegistrar()
	defer registrar.Stop()

	settings := handlers.NewSettingsHandler(settingsRepo, registrar, runDaily)
	api.Get("/settings/info", settings.GetSettingsInfo)
	api.Post("/settings/update", settings.UpdateSettings)

	installDailyTrigger(registrar, settingsRepo, cfg, runDaily)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(keyring, orchestrator)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()
	defer c.Stop()

	// queue
	queueW := queue.NewQueue(sched)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishCycle, queueW.HandlePublishCycleTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func installDailyTrigger(registrar scheduler.TriggerRegistrar, settingsRepo repository.SettingsRepository, cfg *config.Config, runDaily func()) {
	hour, minute := cfg.PostingHour, cfg.PostingMinute
	if stored, err := settingsRepo.Get(context.Background()); err == nil && stored != nil {
		hour, minute = stored.PostingHour, stored.PostingMinute
	}
	if err := registrar.Install(hour, minute, runDaily); err != nil {
		log.Fatalf("Failed to install daily trigger: %v", err)
	}
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
