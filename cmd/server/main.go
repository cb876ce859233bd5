package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
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
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/api/handlers"
	"github.com/maheshrc27/crosspost/internal/api/middleware"
	job "github.com/maheshrc27/crosspost/internal/jobs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	switch len(cfg.SecretKey) {
	case 16, 24, 32:
	default:
		log.Fatalf("SECRET_KEY must be 16, 24 or 32 bytes long")
	}

	ctx := context.Background()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			slog.Error("unhandled error", "path", c.Path(), "error", err)
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-API-Key",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	tx := repository.NewTransactor(db)
	userRepo := repository.NewUserRepository(db)
	apiKeyRepo := repository.NewApiKeyRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	pendingAuthRepo := repository.NewPendingAuthRepository(db)
	pendingSelectionRepo := repository.NewPendingSelectionRepository(db)
	markerRepo := repository.NewMarkerRepository(db)
	automationSettingsRepo := repository.NewAutomationSettingsRepository(db)
	postRepo := repository.NewPostRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	postTargetRepo := repository.NewPostTargetRepository(db)
	postingHistoryRepo := repository.NewPostingHistoryRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)

	var storage service.ObjectStorage
	if r2Service, err := service.NewR2Service(ctx, cfg.R2); err != nil {
		slog.Warn("object storage disabled", "error", err)
	} else {
		storage = r2Service
	}

	authService := service.NewAuthService(cfg.Google, userRepo, httpClient)
	userService := service.NewUserService(userRepo)
	apiKeyService := service.NewApiKeyService(apiKeyRepo)
	selectionService := service.NewSelectionService(cfg.Selection.TTL, tx, pendingSelectionRepo, socialAccountRepo)
	twitterAuthService := service.NewTwitterAuthService(cfg.Twitter, cfg.SecretKey, pendingAuthRepo, socialAccountRepo, httpClient)
	twitterClient := service.NewTwitterClient(cfg.Twitter, cfg.SecretKey, httpClient)
	facebookService := service.NewFacebookService(cfg.Facebook, cfg.SecretKey, selectionService, socialAccountRepo, httpClient)
	instagramService := service.NewInstagramService(cfg.Instagram, cfg.SecretKey, socialAccountRepo, httpClient)
	youtubeService := service.NewYoutubeService(cfg.Google, cfg.SecretKey, socialAccountRepo, &http.Client{Timeout: 30 * time.Minute})
	platformService := service.NewPlatformService(socialAccountRepo, facebookService, instagramService, youtubeService)
	postService := service.NewPostService(tx, postRepo, postMediaRepo, postTargetRepo, socialAccountRepo, mediaAssetRepo, postingHistoryRepo, storage, cfg.Preview.TokenTTL)
	settingsService := service.NewSettingsService(automationSettingsRepo)
	automationService := service.NewAutomationService(cfg.Automation, automationSettingsRepo, socialAccountRepo, markerRepo, twitterClient)
	credentialService := service.NewCredentialService(socialAccountRepo, map[models.Platform]service.Refresher{
		models.PlatformYoutube:   youtubeService,
		models.PlatformInstagram: instagramService,
	})
	publishService := service.NewPublishService(postRepo, postMediaRepo, postTargetRepo, socialAccountRepo, postingHistoryRepo,
		map[models.Platform]service.Publisher{
			models.PlatformTwitter:   service.NewTwitterPublisher(twitterClient),
			models.PlatformFacebook:  facebookService,
			models.PlatformInstagram: instagramService,
			models.PlatformYoutube:   youtubeService,
		})

	automationJob := job.NewAutomationJob(automationService)
	refreshTokenJob := job.NewTokenRefreshJob(credentialService)
	scheduler := queue.NewScheduler(client)
	queueW := queue.NewQueue(publishService)

	authMiddleware := middleware.NewAuthMiddleware(*cfg, apiKeyService)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)
	app.Post("/logout", auth.Logout)

	platform := handlers.NewPlatformHandler(*cfg, platformService, twitterAuthService, facebookService, instagramService, youtubeService, selectionService)
	app.Get("/auth/twitter/callback", platform.TwitterCallback)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	post := handlers.NewPostHandler(postService, scheduler)
	app.Get("/preview/:id", post.Preview)

	automation := handlers.NewAutomationHandler(automationJob)
	app.Post("/internal/automation/tick", middleware.TriggerSecret(cfg.Automation.TriggerSecret), automation.Tick)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Post("/user/remove", user.RemoveUser)

	settings := handlers.NewSettingsHandler(settingsService)
	api.Get("/settings/info", settings.GetSettingsInfo)
	api.Post("/settings/update", settings.UpdateSettings)

	apiKeys := handlers.NewApiKeyHandler(apiKeyService)
	api.Post("/api_key/new", apiKeys.CreateApiKey)
	api.Get("/api_key/list", apiKeys.ListKeys)
	api.Post("/api_key/remove", apiKeys.RemoveAPIKey)

	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/publish", post.PublishPost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/history", post.History)
	api.Post("/posts/remove", post.RemovePost)
	api.Post("/posts/preview", post.IssuePreview)
	api.Post("/uploads", post.UploadURL)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)
	api.Get("/accounts/:platform/connect", platform.ConnectURL)
	api.Get("/selections/:id", platform.ListSelection)
	api.Post("/selections/:id", platform.FinalizeSelection)

	c := cron.New()
	if err := c.AddFunc("@every 10m", refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Invalid refresh schedule: %v", err)
	}
	if err := c.AddFunc(cfg.Automation.Schedule, automationJob.Run); err != nil {
		log.Fatalf("Invalid automation schedule %q: %v", cfg.Automation.Schedule, err)
	}
	c.Start()
	defer c.Stop()

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})
	go func() {
		log.Println("Starting the Asynq server...")
		if err := server.Run(queueW.Mux()); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Server is running on %s", cfg.ListenAddr)

	gracefulShutdown(app, server)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, server *asynq.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}
	server.Shutdown()

	log.Println("Server shutdown complete.")
}
