// Command realtime talks to a realtime voice model from the terminal.
//
// Usage:
//
//	realtime [flags] <command> [args]
//
// Commands:
//
//	chat     - stream an audio file as microphone input and record the answer
//	decode   - decode a captured stream of server events
package main

import (
	"fmt"
	"os"

	"github.com/codewandler/realtime-go/cmd/realtime/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
