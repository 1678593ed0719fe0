package main

import (
	"os"

	"github.com/gnolang/octagon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
