package main

import (
	"os"

	"github.com/outofforest/ripple/cmd/ripple/cmd"
)

func main() {
	if err := cmd.Root.Execute(); err != nil {
		os.Exit(1)
	}
}
