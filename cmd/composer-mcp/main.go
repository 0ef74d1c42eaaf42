// Command composer-mcp serves the composer over MCP on stdio.
package main

import (
	"context"
	"log"
	"os"

	"github.com/Conceptual-Machines/magda-composer/internal/app"
	"github.com/Conceptual-Machines/magda-composer/internal/config"
	"github.com/Conceptual-Machines/magda-composer/internal/mcptools"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// stdout carries the protocol
	log.SetOutput(os.Stderr)

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.Load()

	services, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer func() {
		if err := services.Close(); err != nil {
			log.Printf("Failed to close services: %v", err)
		}
	}()

	s := mcptools.NewServer(Version, services.Controller, services.Retriever)
	if err := server.ServeStdio(s); err != nil {
		log.Printf("MCP server stopped: %v", err)
	}
}
