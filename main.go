package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	os.MkdirAll(cfg.UploadDir, 0755)

	llm := NewAnthropicCompleter(cfg.AnthropicAPIKey, cfg.LLMModel)
	tracker := NewSessionTracker()
	classifier := NewClassifier(db, llm)
	reviews := NewReviewGenerator(db, llm)

	StartAnalysisScheduler(cfg, db, tracker, classifier)

	server := NewServer(cfg, db, llm, tracker, classifier, reviews)
	log.Printf("Starting Confusion Bank on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server.Routes()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
