package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"childbehavior/internal/apitest"
	"childbehavior/internal/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	backend, err := apitest.NewSeeded(apitest.Options{
		Secret:        os.Getenv("MOCK_API_SECRET"),
		LoginAttempts: 10,
		Logging:       true,
	})
	if err != nil {
		log.Fatalf("Failed to seed mock backend: %v", err)
	}

	log.Printf("Seeded parent %s / %s and child %s / %s",
		apitest.SeedParentPhone, apitest.SeedParentPassword,
		apitest.SeedChildPhone, apitest.SeedChildPassword)

	addr := ":" + cfg.MockAPIPort
	server := &http.Server{
		Addr:         addr,
		Handler:      backend,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Mock API starting on http://localhost%s/api", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Mock API shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Warning: shutdown did not finish cleanly: %v", err)
	}
}
