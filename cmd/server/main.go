// Command server runs the lab booking front-end API.  It keeps one booking
// manager per signed-in user and forwards every change to the remote
// booking service.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"

	"github.com/iliyamo/lab-booking/internal/auth"
	"github.com/iliyamo/lab-booking/internal/booking"
	"github.com/iliyamo/lab-booking/internal/clock"
	"github.com/iliyamo/lab-booking/internal/config"
	"github.com/iliyamo/lab-booking/internal/database"
	"github.com/iliyamo/lab-booking/internal/handler"
	"github.com/iliyamo/lab-booking/internal/labdir"
	"github.com/iliyamo/lab-booking/internal/middleware"
	"github.com/iliyamo/lab-booking/internal/queue"
	"github.com/iliyamo/lab-booking/internal/remote"
	"github.com/iliyamo/lab-booking/internal/repository"
	"github.com/iliyamo/lab-booking/internal/router"
	"github.com/iliyamo/lab-booking/internal/session"
)

func main() {
	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to seed the environment from")
	migrate := flags.Bool("migrate", true, "create the decision audit table at startup")
	idle := flags.Duration("session-idle", 2*time.Hour, "drop user sessions idle for longer than this")
	_ = flags.Parse(os.Args[1:])

	config.LoadDotenv(*envFile)
	cfg := config.Load()

	client, err := remote.New(remote.Options{
		BaseURL:  cfg.BookingAPIURL,
		Timeout:  cfg.BookingAPITTL,
		Location: cfg.Location,
	})
	if err != nil {
		log.Fatalf("booking service: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis: unavailable; lab cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	labs := labdir.NewCachedDirectory(labdir.NewRemoteDirectory(client), config.LoadCacheConfig(), rdb)

	registry := session.NewRegistry(
		func(p auth.Provider) booking.Remote { return client.WithTokens(p) },
		session.WithClock(clock.NewSystem(cfg.Location)),
		session.WithIdleTTL(*idle),
	)

	h := handler.NewBookingHandler(registry, labs)
	h.ApproverRoles = cfg.ApproverRoles

	if pub := queue.NewPublisher(config.LoadQueueConfig(false)); pub.Enabled() {
		h.Publisher = pub
		defer pub.Close()
	} else {
		log.Printf("rabbitmq: no broker configured; decision events disabled")
	}

	if cfg.AuditEnabled {
		db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
		if err != nil {
			log.Fatalf("audit db: %v", err)
		}
		defer db.Close()
		if *migrate {
			if err := database.EnsureSchema(context.Background(), db); err != nil {
				log.Fatalf("audit db: %v", err)
			}
		}
		h.Decisions = repository.NewDecisionRepo(db)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	router.RegisterRoutes(e)
	router.RegisterBookings(e, h, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
