package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	loadLocalEnv()

	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
}
