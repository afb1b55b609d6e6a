package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// EDITOR_CONFIG_PATH may come from the same .env the server uses.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
