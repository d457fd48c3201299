package main

import (
	"os"

	"github.com/joho/godotenv"

	appLog "icsimport/internal/log"
)

func main() {
	// Optional .env for OAuth client settings in development.
	if err := godotenv.Load(); err == nil {
		appLog.Debug(".env loaded")
	}

	if err := rootCmd.Execute(); err != nil {
		appLog.Error("exiting", err)
		os.Exit(1)
	}
}
