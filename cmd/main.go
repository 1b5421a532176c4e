package main

import (
	"os"
)

// @title Civic Reporting System API
// @version 1.0
// @description Civic issue reporting service: lifecycle of reported issues, push notifications and real-time events.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
