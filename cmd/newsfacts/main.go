package main

import (
	"os"

	"newsfacts/cmd/handlers"
	"newsfacts/internal/logger"
)

func main() {
	logger.Init()
	if err := handlers.Execute(); err != nil {
		os.Exit(1)
	}
}
