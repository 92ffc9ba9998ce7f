package main

import (
	"flag"
	"log"

	"wordwrangler/internal/config"
	"wordwrangler/internal/db"
)

func main() {
	filePath := flag.String("file", "tasks.csv", "path to tasks csv")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	loaded, err := db.LoadTaskLibrary(conn, *filePath)
	if err != nil {
		log.Fatalf("failed to load tasks: %v", err)
	}
	log.Printf("loaded %d tasks", loaded)
}
