package main

import (
	"os"

	"github.com/schemajeli/schemajeli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
