package main

import (
	"os"

	"github.com/keywarden/keywarden/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
