package main

import (
	"os"

	"github.com/lcabon/resq/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
