package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"scanlog/internal/config"
	"scanlog/internal/database/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to open PostgreSQL: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatalf("failed to connect to PostgreSQL: %v", err)
	}

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, os.Getenv("MIGRATIONS_DIR"))
	defer runner.Close()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}

	switch direction {
	case "up":
		if err := runner.MigrateUp(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		log.Println("migrations applied")
	case "down":
		if err := runner.MigrateDown(); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Println("migrations rolled back")
	default:
		log.Fatalf("unknown direction %q, expected up or down", direction)
	}
}
