// Package main is the entry point of the trialclock command.
package main

import "github.com/sarchlab/trialclock/trialclock/cmd"

func main() {
	cmd.Execute()
}
