package main

import (
	"context"
	"log"
	"net/http"
	"os"

	webAdapter "github.com/garystarr-surgi/wholesale-management/internal/adapters/web"
	"github.com/garystarr-surgi/wholesale-management/internal/app"
	"github.com/garystarr-surgi/wholesale-management/internal/core"
	"github.com/garystarr-surgi/wholesale-management/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	metrics := core.NewMetricsService(pool)
	availability := core.NewAvailabilityService(pool, metrics)
	pricing := core.NewPricingService(pool)

	svc := app.NewAppService(availability, pricing)

	policy, err := core.ParseSurplusPolicy(os.Getenv("SURPLUS_POLICY"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	handler := webAdapter.NewHandler(svc, allowedOrigins, policy)

	log.Printf("server starting on :%s (surplus policy: %s)", port, policy)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("server: %v", err)
	}
}
