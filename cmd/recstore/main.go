// Command recstore is the versioned record repository CLI.
package main

import (
	"os"

	"github.com/kilupskalvis/recstore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
