package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pdf-annotator/internal/config"
	"pdf-annotator/internal/handler"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}
	// Wiring
	container, err := config.NewContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Handlers
	fileHandler := handler.NewFileHandler(
		container.FileService,
		container.Config.GetMaxFileSize(),
		container.Logger,
	)
	operationHandler := handler.NewOperationHandler(
		container.ProcessingService,
		container.Logger,
	)
	sessionHandler := handler.NewSessionHandler(
		container.SessionService,
		container.Logger,
	)

	// Router
	router := handler.NewRouter(
		fileHandler,
		operationHandler,
		sessionHandler,
		container.Config.GetAllowedOrigins(),
		handler.Recoverer(container.Logger),
		handler.RequestLogger(container.Logger),
	)

	// start server
	server := &http.Server{
		Addr:              ":" + container.Config.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Error("Server failed to start", err)
			os.Exit(1)
		}
	}()
	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	container.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		container.Logger.Error("Server shutdown failed", err)
	}
	container.Shutdown()

	container.Logger.Info("Server exited")
}
