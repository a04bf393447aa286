package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/safar/go-storefront/internal/config"
)

// Applies migrations/*.sql to DATABASE_URL for the postgres store backend.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ping database: %v", err)
	}

	files, err := migrationFiles("migrations", direction)
	if err != nil {
		log.Fatalf("Read migration directory: %v", err)
	}

	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Read migration file %s: %v", path, err)
		}

		log.Printf("Running migration: %s", filepath.Base(path))
		if _, err := db.Exec(string(content)); err != nil {
			log.Fatalf("Execute migration %s: %v", path, err)
		}
	}

	log.Printf("Successfully ran %d migration(s) %s", len(files), direction)
}

// migrationFiles lists dir's migrations for direction, newest last for up
// and newest first for down.
func migrationFiles(dir, direction string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), fmt.Sprintf(".%s.sql", direction)) {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(dir, n)
	}
	return paths, nil
}
