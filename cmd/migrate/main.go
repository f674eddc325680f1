// CLI tool to apply (or roll back) the embedded schema migrations in db/.
// golang-migrate tracks the applied version in schema_migrations.
// Usage: go run ./cmd/migrate [-down N]
package main

import (
	"flag"
	"fmt"
	"os"

	"horus/nutrition-api/db"
	"horus/nutrition-api/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to an optional YAML config file")
	down := flag.Int("down", 0, "Roll back this many migrations instead of migrating up")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *down > 0 {
		if err := db.Rollback(cfg.Database.URL, *down); err != nil {
			fmt.Fprintf(os.Stderr, "Error rolling back: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%d migration(s) rolled back.\n", *down)
		return
	}

	version, err := db.Migrate(cfg.Database.URL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error migrating: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Schema at version %d.\n", version)
}
