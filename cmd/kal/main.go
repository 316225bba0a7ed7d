package main

import (
	"github.com/joho/godotenv"

	"github.com/akarlsen/kal/cmd/kal/cmd"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	cmd.Execute()
}
