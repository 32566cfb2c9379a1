// tokend runs the digital-token rotation on its own, for deployments that
// keep the API and the rotation daemon in separate processes. By default it
// loops every 30 seconds; -cron switches to a schedule expression, -once runs
// a single cycle and exits.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"portalsalud/internal/logger"
	"portalsalud/internal/token"
)

func main() {
	cronSpec := flag.String("cron", "", `cron schedule (e.g. "@every 1m"); empty uses the fixed 30s loop`)
	once := flag.Bool("once", false, "run one rotation cycle and exit")
	flag.Parse()

	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}

	rt := token.NewRotator(db, lg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		n, err := rt.RunCycle(ctx)
		if err != nil {
			lg.Fatalw("rotation cycle failed", "error", err)
		}
		lg.Infow("rotation cycle done", "rotated", n)
		return
	}

	if *cronSpec != "" {
		c := cron.New()
		_, err := c.AddFunc(*cronSpec, func() {
			if n, err := rt.RunCycle(ctx); err != nil {
				lg.Errorw("rotation cycle failed", "error", err)
			} else if n > 0 {
				lg.Infow("rotated digital tokens", "count", n)
			}
		})
		if err != nil {
			lg.Fatalw("invalid cron spec", "spec", *cronSpec, "error", err)
		}
		lg.Infow("token daemon started", "schedule", *cronSpec)
		c.Start()
		<-ctx.Done()
		c.Stop()
		return
	}

	lg.Infow("token daemon started", "interval", token.DaemonInterval.String())
	rt.Run(ctx, token.DaemonInterval)
}
