package playsim

import "os"

// ShowHelp prints usage information for the play simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Comet Escape Play Simulator
===========================

Plays sessions against a running server and checks that no finished
session is accepted twice.

Usage:
  go run ./cmd/playsim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:3000")
  -players int
        Number of simulated players (default 50)
  -sessions int
        Sessions played by each player (default 5)
  -workers int
        Players in flight at once (default CPU cores * 2)
  -max-score int
        Upper bound for generated scores (default 250)
  -min-duration duration
        Shortest reported run (default 8s)
  -timeout duration
        HTTP request timeout (default 30s)
  -log-format string
        text or json (default "text")
  -verbose
        Log every session outcome
  -help
        Show this help message

Examples:
  # Quick smoke test against a local server
  go run ./cmd/playsim -players 10 -sessions 3

  # Push a player past the daily session limit
  go run ./cmd/playsim -players 1 -sessions 40 -verbose
`)
}
