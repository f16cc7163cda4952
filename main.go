package main

import (
	"os"

	"github.com/fixagent/prverify/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
