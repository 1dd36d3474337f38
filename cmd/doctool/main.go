package main

import (
	"fmt"
	"os"

	"github.com/ehtisham-afzal/outline/internal/cli"
)

// Set at build time.
var (
	BuildVersion = "0.0.0"
	Commit       = "unknown"
)

func root() int {
	root := cli.Root()
	root.Version = fmt.Sprintf("%s (%s)", BuildVersion, Commit)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}

func main() {
	os.Exit(root())
}
