package main

import (
	"os"

	"github.com/manish3089/Token-Generator/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
