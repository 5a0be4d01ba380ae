package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/sadopc/pomo/internal/cli"
	"github.com/sadopc/pomo/internal/logging"
)

// Version is injected at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("pomo"),
		kong.Description("A terminal Pomodoro timer with tasks and stats"),
		kong.Vars{"version": "pomo " + Version},
		kong.UsageOnError(),
		kong.Bind(&c),
	)

	err := ctx.Run()
	logging.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
