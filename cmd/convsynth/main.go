// Command convsynth generates synthetic music recommendation dialogues.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "convsynth: %v\n", err)
		os.Exit(1)
	}
}
