package main

import (
	"os"

	"github.com/joho/godotenv"

	appLog "coursecal/internal/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		appLog.Debug("no .env loaded", "err", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
