package main

// Create a relationship manager account:
//   go run ./cmd/createrm -username alice -email alice@example.com -name "Alice" -password '...'

import (
	"context"
	"flag"
	"fmt"
	"os"

	"docrequests-backend/internal/rms"
	"docrequests-backend/internal/shared/config"
	"docrequests-backend/internal/shared/storage/db"
	"docrequests-backend/internal/shared/telemetry"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer telemetry.Sync()

	username := flag.String("username", "", "login name")
	email := flag.String("email", "", "email address")
	name := flag.String("name", "", "display name shown to clients")
	password := flag.String("password", os.Getenv("RM_PASSWORD"), "password (defaults to $RM_PASSWORD)")
	superuser := flag.Bool("superuser", true, "grant dashboard access")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultCLIOptions()))
	if err != nil {
		telemetry.Error("createrm.connect_failed", map[string]any{"error": err})
		return 1
	}
	defer sqlDB.Close()

	svc := rms.NewService(&rms.PGRepo{DB: sqlDB})
	user, err := svc.Register(ctx, rms.NewRM{
		Username:  *username,
		Email:     *email,
		Name:      *name,
		Password:  *password,
		Superuser: *superuser,
	})
	if err != nil {
		telemetry.Error("createrm.failed", map[string]any{"error": err})
		return 1
	}
	fmt.Printf("created rm %d (%s)\n", user.ID, user.Username)
	return 0
}
