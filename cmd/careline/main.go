package main

import (
	"os"

	"careline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitGenericError)
	}
}
