package main

import (
	"fmt"
	"os"

	"forgestr/libraries/forge"
	"forgestr/libraries/mcpserver"
)

func main() {
	rootCmd := forge.RootCommand()
	rootCmd.AddCommand(mcpserver.Command())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
