package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophblog/internal/server"
	"github.com/dmitrijs2005/gophblog/internal/server/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	runErr := app.Run(context.Background())
	if err := app.Close(); err != nil {
		log.Printf("close error: %v", err)
	}
	if runErr != nil {
		log.Printf("%v", runErr)
		os.Exit(1)
	}
}
