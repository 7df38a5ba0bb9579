package main

import (
	"log"

	"github.com/MrSnakeDoc/studybot/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ studybot failed to start: %v", err)
	}
}
