// Command auditor consumes booking decision events and records them in the
// booking_decisions table.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/iliyamo/lab-booking/internal/config"
	"github.com/iliyamo/lab-booking/internal/database"
	"github.com/iliyamo/lab-booking/internal/queue"
	"github.com/iliyamo/lab-booking/internal/repository"
)

func main() {
	flags := pflag.NewFlagSet("auditor", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file to seed the environment from")
	migrate := flags.Bool("migrate", true, "create the decision audit table at startup")
	_ = flags.Parse(os.Args[1:])

	config.LoadDotenv(*envFile)
	dbCfg := config.LoadDB()
	qCfg := config.LoadQueueConfig(true)

	db, err := database.Open(dbCfg.User, dbCfg.Pass, dbCfg.Host, dbCfg.Port, dbCfg.Name)
	if err != nil {
		log.Fatalf("auditor: open db: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("auditor: %v", err)
		}
	}

	log.Printf("auditor: consuming %s", qCfg.Queue)
	err = queue.StartDecisionConsumer(ctx, qCfg, repository.NewDecisionRepo(db))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("auditor: %v", err)
	}
	log.Printf("auditor: stopped")
}
