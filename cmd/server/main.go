package main

import (
	"os"

	"github.com/garyjia/vehicle-service-tracker/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
