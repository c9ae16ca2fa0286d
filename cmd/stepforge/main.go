package main

import (
	"fmt"
	"os"

	"stepforge/cmd/stepforge/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
