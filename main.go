package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"horus/nutrition-api/db"
	"horus/nutrition-api/internal/config"
	"horus/nutrition-api/internal/googlefit"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	flag.Parse()

	log.SetPrefix("nutrition-api: ")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	gin.SetMode(cfg.Server.Mode)

	if cfg.Database.AutoMigrate {
		if _, err := db.Migrate(cfg.Database.URL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := newDBPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer pool.Close()
	log.Println("DB pool ready!")

	h := &Handler{
		db:       pool,
		cfg:      cfg,
		mailer:   logMailer{},
		profiles: pgProfiles{db: pool},
		metrics:  pgDailyMetrics{db: pool},
		now:      time.Now,
	}
	h.fit, h.fitErr = newFitSource(cfg.GoogleFit)
	if h.fitErr != nil {
		// Not fatal: every other route works, metrics requests report this.
		log.Printf("[googlefit] disabled: %v", h.fitErr)
	}

	router := gin.Default()
	router.SetTrustedProxies(nil)
	h.registerRoutes(router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runServer(gctx, cfg.Server.Addr(), router)
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			log.Println("Signal received, shutting down...")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped with error: %v", err)
	}
	log.Println("Shutdown complete")
}

// newFitSource builds the Google Fit aggregator from config. The returned
// error is kept by the caller rather than aborting startup.
func newFitSource(cfg config.GoogleFitConfig) (metricsSource, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	agg, err := googlefit.New(googlefit.Options{
		Credentials: googlefit.Credentials{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RefreshToken: cfg.RefreshToken,
		},
		TokenURL:     cfg.TokenURL,
		AggregateURL: cfg.AggregateURL,
		Location:     loc,
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}
