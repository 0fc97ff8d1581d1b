package main

import (
	"os"

	"github.com/theleywin/talentnest-graph/src/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
