package main

import (
	"os"

	"github.com/raoulx24/backup-pruner/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
