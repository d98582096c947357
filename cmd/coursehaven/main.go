package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/app/repository"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/auth"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/billing"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/cache"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/catalog"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/checkout"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/database"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/entitlements"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/env"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/health"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/jobqueue"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/mail"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/metrics"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/objectstore"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/router"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/security"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/statistics"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4001")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	// Define possible base paths
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/coursehaven to project root
		"../../../", // Fallback
	}

	basePath := ""
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); !os.IsNotExist(err) {
			basePath = path
			break
		}
	}
	if basePath == "" {
		panic("Could not find project root directory")
	}

	// init fiber app
	cfg := fiber.Config{
		BodyLimit: 12 * 1024 * 1024, // cover images are capped at 10 MiB
	}
	// client addresses from PROXY_HEADER are only trusted from TRUSTED_PROXIES
	ratelimit.ProxyConfigFromEnv(&cfg)
	app := fiber.New(cfg)

	// recovery and logging
	app.Use(recover.New(), logger.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins:     env.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, buildDependencies(app))

	return app
}

func buildDependencies(app *fiber.App) router.Dependencies {
	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	signer, err := security.NewCredentialSigner(
		env.GetEnv("JWT_USER_SECRET", ""),
		env.GetEnv("JWT_ADMIN_SECRET", ""),
		env.GetDuration("JWT_TTL", 24*time.Hour),
	)
	if err != nil {
		log.Fatalf("[Auth] invalid credential configuration: %v", err)
	}
	redisClient := cache.GetClient()
	authService := auth.NewService(repos.User, signer, cache.NewTokenRevocations(redisClient)).
		WithOpenAdminSignup(strings.EqualFold(env.GetEnv("ADMIN_SIGNUP_OPEN", "false"), "true"))

	ledger := entitlements.NewLedger(db)

	var images catalog.ImageStore
	if cfg, err := objectstore.LoadConfig(); err != nil {
		log.Warnf("[ObjectStore] disabled: %v", err)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := objectstore.NewClient(ctx, cfg)
		cancel()
		if err != nil {
			log.Errorf("[ObjectStore] could not connect: %v", err)
		} else {
			images = client
		}
	}
	courseCache := cache.NewJSONCache[[]models.Course](redisClient, "catalog:courses", 60*time.Second)
	catalogService := catalog.NewService(repos.Course, ledger, images, courseCache)

	gateway, err := billing.NewStripeGateway(env.GetEnv("STRIPE_SECRET_KEY", ""))
	if err != nil {
		log.Fatalf("[Billing] %v", err)
	}
	mailer := mail.NewSMTPMailerFromEnv()
	if !mailer.Enabled() {
		log.Warn("[Mail] SMTP_HOST not set, purchase receipts are not sent")
	}
	jobs := jobqueue.NewQueue(redisClient, env.GetInt("JOB_WORKERS", jobqueue.DefaultWorkers))
	receipts := jobqueue.NewReceiptQueue(jobs, mailer)
	jobs.Start()

	orchestrator := checkout.NewOrchestrator(
		catalogService,
		ledger,
		repos.CheckoutAttempt,
		repos.User,
		gateway,
		receipts,
		metrics.Recorder{},
		checkout.Config{
			Currency: env.GetEnv("PAYMENT_CURRENCY", "inr"),
			Timeout:  env.GetDuration("PAYMENT_TIMEOUT", 10*time.Second),
		},
	)

	monitor := health.NewMonitor(env.GetDuration("HEALTH_INTERVAL", health.DefaultInterval)).
		Register("database", health.DatabaseProbe(db)).
		Register("cache", health.RedisProbe(redisClient))
	monitor.Start()
	app.Hooks().OnShutdown(shutdownHook(orchestrator, jobs, monitor))

	statsCache := cache.NewJSONCache[statistics.Dashboard](redisClient, statistics.CacheKeyDashboard, statistics.CacheExpiration)

	return router.Dependencies{
		Auth:                authService,
		Catalog:             catalogService,
		Checkout:            orchestrator,
		Ledger:              ledger,
		Billing:             billing.NewServiceFromDB(db),
		Statistics:          statistics.NewService(db, statsCache).WithJobStats(jobs),
		Health:              monitor,
		StripeWebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		RateLimit:           ratelimit.ConfigFromEnv(ratelimit.NewStorage()),
		WebhookRecorder:     metrics.Recorder{},
		MetricsUser:         env.GetEnv("METRICS_USER", ""),
		MetricsPassword:     env.GetEnv("METRICS_PASSWORD", ""),
	}
}

type waiter interface{ Wait() }

type stopper interface{ Stop() }

// shutdownHook drains background work in dependency order: receipts still
// being handed over by checkout must reach the queue before its workers stop.
func shutdownHook(orchestrator waiter, jobs, monitor stopper) func() error {
	return func() error {
		orchestrator.Wait()
		jobs.Stop()
		monitor.Stop()
		return nil
	}
}
