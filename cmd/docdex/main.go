// Package main is the entry point for the docdex CLI.
package main

import (
	"fmt"
	"os"
)

// version holds the current version of docdex.
var version = "1.0.0"

// main is the main function for the docdex CLI.
func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Execute is the primary entry point for the Cobra command structure.
func Execute() error {
	return rootCmd.Execute()
}
