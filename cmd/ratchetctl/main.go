package main

import (
	"os"

	"github.com/stalker-loki/heraldratchet/cmd/ratchetctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
