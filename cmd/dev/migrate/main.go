package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"linkbio/pkg/config"
	"linkbio/pkg/db"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration instead of applying")
	flag.Parse()

	cfg := config.Load()

	// Uses DIRECT_URL if set; poolers break migrate's advisory locks.
	if *down {
		if err := db.Rollback(cfg.MigrationsPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "rollback failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("rolled back one migration")
		return
	}

	if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}

	// Sanity check the runtime connection too (DATABASE_URL when set).
	// No DSNs in output — they carry credentials.
	pool, err := db.Open(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runtime db open failed: %v\n", err)
		os.Exit(1)
	}
	pool.Close()

	fmt.Println("migrations applied")
}
