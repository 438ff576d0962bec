package main

import (
	"os"

	"github.com/noface-00/prims/internal/cli"
)

func main() {
	if err := cli.New().Execute(); err != nil {
		os.Exit(1)
	}
}
