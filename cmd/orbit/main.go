package main

import (
	"os"

	"github.com/hardimpactdev/orbit-console/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
