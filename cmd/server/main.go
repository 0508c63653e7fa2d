package main // Entry point package

import (
	"context"
	"log"       // Logging library
	"os/signal" // Signal handling for graceful shutdown
	"syscall"
	"time"

	"github.com/joho/godotenv"    // Loads .env files in development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/marvelstay/room-reservation/internal/config"
	"github.com/marvelstay/room-reservation/internal/database"
	"github.com/marvelstay/room-reservation/internal/gateway"
	"github.com/marvelstay/room-reservation/internal/handler"
	"github.com/marvelstay/room-reservation/internal/middleware"
	"github.com/marvelstay/room-reservation/internal/queue"
	"github.com/marvelstay/room-reservation/internal/repository"
	"github.com/marvelstay/room-reservation/internal/router"
	"github.com/marvelstay/room-reservation/internal/scheduler"
	"github.com/marvelstay/room-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	// Payment verification chain: HTTP client, wrapped in a retry decorator,
	// wrapped in a circuit breaker.  The engine only ever sees the outermost
	// verifier.
	verifier := gateway.NewBreaker(
		gateway.NewRetryVerifier(
			gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout),
			cfg.GatewayRetryAttempts,
			cfg.GatewayRetryBackoff,
		),
		gateway.BreakerConfig{
			Window:       cfg.BreakerWindow,
			MinCalls:     cfg.BreakerMinCalls,
			FailureRatio: cfg.BreakerFailureRatio,
			OpenTimeout:  cfg.BreakerOpenTimeout,
			HalfOpenMax:  cfg.BreakerHalfOpenMax,
		},
	)

	reservations := repository.NewReservationRepo(db)
	staff := repository.NewStaffRepo(db)
	publisher := queue.NewPublisher(cfg.AMQPURL, cfg.ConfirmedQueue)
	engine := service.NewReservationEngine(reservations, verifier, publisher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers: the bank-transfer payment consumer and the
	// overdue-reservation sweep.  Both stop when ctx is cancelled.
	consumer := queue.NewConsumer(cfg.AMQPURL, cfg.PaymentUpdateQueue, engine)
	go consumer.Start(ctx)

	sched := scheduler.New(engine, cfg.SweepInterval, cfg.SweepTimeout)
	go sched.Run(ctx)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, staff))
	router.RegisterReservations(e,
		handler.NewReservationHandler(engine),
		cfg.JWTSecret,
		middleware.NewTokenBucket(rlCfg, rdb),
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil {
			log.Printf("http server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
