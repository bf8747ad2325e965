package main

import (
	"os"

	"github.com/atendelab/chatwoot-harvest/cmd/cwharvest/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.OutputError("%v", err)
		os.Exit(1)
	}
}
