// Package main provides the cachesim CLI: replay cache traces against
// eviction policies and compare their miss ratios.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
