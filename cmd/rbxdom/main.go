package main

import (
	"os"

	"github.com/ssargent/rbxdom/cmd/rbxdom/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
