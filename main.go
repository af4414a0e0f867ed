package main

import (
	"os"

	"github.com/toolpane/toolpane/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
