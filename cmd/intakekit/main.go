// Package main provides the intakekit binary: an HTTP service that conducts
// LLM-driven interviews to populate requirements documents.
package main

import (
	"fmt"
	"os"

	// Register chat providers via init()
	_ "github.com/intakekit/intakekit/llm/providers"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
