package main

import "github.com/joho/godotenv"

func main() {
	// A local .env is optional.
	_ = godotenv.Load()
	Execute()
}
