package main

import (
	"github.com/joho/godotenv"

	"github.com/tessro/tunes/internal/cli"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cli.Execute()
}
