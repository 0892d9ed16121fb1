package main

import (
	"os"

	"github.com/janus-koncepts/wabot/cli"
)

func main() {
	cmd := cli.RootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
