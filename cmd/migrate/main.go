package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/adirsaban8-oss/ADIRS/internal/config"
	"github.com/adirsaban8-oss/ADIRS/internal/postgres"
)

const usage = "usage: migrate [up | down <steps> | force <version> | version]"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("migrate: %v", err)
	}
}

func run(args []string) error {
	databaseURL, err := resolveURL()
	if err != nil {
		return err
	}

	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		if err := postgres.MigrateUp(databaseURL); err != nil {
			return err
		}
		fmt.Println("migrations complete")
	case "down":
		steps := 1
		if len(args) >= 2 {
			if steps, err = strconv.Atoi(args[1]); err != nil || steps < 1 {
				return fmt.Errorf("invalid steps %q", args[1])
			}
		}
		if err := postgres.MigrateDown(databaseURL, steps); err != nil {
			return err
		}
		fmt.Printf("rolled back %d migration(s)\n", steps)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force needs a version\n%s", usage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		if err := postgres.Force(databaseURL, version); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		fmt.Printf("forced version to %d\n", version)
	case "version":
		v, dirty, err := postgres.Version(databaseURL)
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	return nil
}

// resolveURL prefers DATABASE_URL and falls back to the config file.
func resolveURL() (string, error) {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url, nil
	}
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Postgres.URL == "" {
		return "", fmt.Errorf("DATABASE_URL or database.postgres.url is required")
	}
	return cfg.Database.Postgres.URL, nil
}
