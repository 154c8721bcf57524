package main

import (
	"os"

	"gihan9a/configdist/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
