// Package main is the entry point for quotectl, the offline GreenQuote
// pricing CLI.
package main

import (
	"os"

	"greenquote/cmd/quotectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
