package main

import (
	"os"

	"commvault-ops/src/cli"
)

func main() {
	os.Exit(cli.Execute())
}
