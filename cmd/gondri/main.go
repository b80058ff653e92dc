package main

import (
	"os"

	"github.com/cvangysel/gondri/cmd/gondri/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
