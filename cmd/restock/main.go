package main

import (
	"os"

	"github.com/restock-alert/restock-alert/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
