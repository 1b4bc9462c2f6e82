package main

import (
	"os"

	"github.com/prepwise/intervu/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
