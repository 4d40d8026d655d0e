package main

import (
	"os"

	"github.com/airesearcher/frontend/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
