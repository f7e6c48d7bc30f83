// Command lockdash serves the smart-lock dashboard.
package main

import (
	"log"

	"github.com/lockwatch/lockdash/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}
