// Package main is the entry point for the flight data server.
package main

import (
	"os"

	"github.com/flightops/flight-data-server/cmd/flightd/app"
	"github.com/flightops/flight-data-server/internal/logger"
)

func main() {
	err := app.NewRootCmd().Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
