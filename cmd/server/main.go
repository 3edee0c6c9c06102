package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-hall-reservation/internal/config"
	"github.com/iliyamo/event-hall-reservation/internal/database"
	"github.com/iliyamo/event-hall-reservation/internal/handler"
	"github.com/iliyamo/event-hall-reservation/internal/lifecycle"
	appmw "github.com/iliyamo/event-hall-reservation/internal/middleware"
	"github.com/iliyamo/event-hall-reservation/internal/payment"
	"github.com/iliyamo/event-hall-reservation/internal/queue"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
	"github.com/iliyamo/event-hall-reservation/internal/router"
	"github.com/iliyamo/event-hall-reservation/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	halls := repository.NewHallRepo(db)
	events := repository.NewEventRepo(db)
	reservations := repository.NewReservationRepo(db)
	payments := repository.NewPaymentRepo(db)
	categories := repository.NewCategoryRepo(db)

	processor, err := payment.NewStripeProcessor(
		cfg.StripeSecretKey,
		cfg.FrontendBaseURL+"/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		cfg.FrontendBaseURL+"/checkout/cancel",
	)
	if err != nil {
		log.Fatalf("payment processor: %v", err)
	}
	media := storage.NewMediaStore(cfg.UploadDir)

	engine := lifecycle.NewEngine(events, halls, reservations, payments, processor, media)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Expired reservations are reclaimed in the background; the sweep
	// uses the same occupancy query as the engine so hall status never
	// drifts between the two.
	sweeper := lifecycle.NewSweeper(reservations, halls, cfg.SweepInterval)
	go sweeper.Run(ctx)

	// The approval consumer appends event.approved messages to
	// logs/approvals.log and reconnects on broker failures.
	go func() {
		if err := queue.StartApprovalConsumer(); err != nil {
			log.Printf("approval consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	// Redis is optional: when unavailable the rate limiter and response
	// cache silently disable themselves.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and response cache disabled")
	}
	e.Use(appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cache := appmw.NewRedisCache(config.LoadCacheConfig(), rdb)

	authHandler := handler.NewAuthHandler(cfg, users, tokens, categories)
	hallHandler := handler.NewHallHandler(halls, events, reservations)
	categoryHandler := handler.NewCategoryHandler(categories)
	hostHandler := handler.NewHostHandler(engine, events)
	userHandler := handler.NewUserHandler(engine, events)
	adminHandler := handler.NewAdminHandler(engine, events, users, halls, reservations, payments, tokens)
	publicHandler := handler.NewPublicHandler(events, halls)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, cfg.JWTSecret)
	router.RegisterPublic(e, publicHandler, hallHandler, categoryHandler, cache)
	router.RegisterUser(e, userHandler, cfg.JWTSecret)
	router.RegisterHost(e, hostHandler, cfg.JWTSecret)
	router.RegisterAdmin(e, adminHandler, hallHandler, categoryHandler, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
