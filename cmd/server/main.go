package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/xcaplin/tender-banana/internal/api"
	"github.com/xcaplin/tender-banana/internal/config"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Print("Loaded environment from .env")
	}

	cfg := config.Load()

	srv := api.NewServer(cfg)
	log.Printf("Server starting on port %s...", cfg.Port)
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
