// Package main provides the entry point for the offsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/offsearch/cmd/offsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
