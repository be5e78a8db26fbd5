// Command sankalpctl runs maintenance tasks against the Sankalp store using
// the same configuration as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/sankalp/sankalp/internal/config"
	"github.com/sankalp/sankalp/internal/logging"
	"github.com/sankalp/sankalp/internal/server"
)

var CLI struct {
	EnvFile string `help:"Optional .env file to load before reading the environment." default:".env" type:"path"`
	DBPath  string `help:"SQLite database path (overrides DB_PATH)." name:"db"`
	Verbose bool   `help:"Enable debug logging." short:"v"`

	Recompute RecomputeCmd `cmd:"" help:"Rebuild streak rows, current streaks and missing badges."`
	Remind    RemindCmd    `cmd:"" help:"Run one reminder pass now."`
	Stats     StatsCmd     `cmd:"" help:"Print a user's streak breakdown as JSON."`
	Badges    BadgesCmd    `cmd:"" help:"Print the badge catalog."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("sankalpctl"),
		kong.Description("Sankalp admin tool"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	logger := logging.NewCLI(os.Stderr, CLI.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &appContext{ctx: ctx, logger: logger, out: os.Stdout}

	// The catalog is static; every other command needs the store.
	if kctx.Command() != "badges" {
		cfg, err := config.Load(CLI.EnvFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid configuration:\n%v\n", err)
			os.Exit(1)
		}
		if CLI.DBPath != "" {
			cfg.DBPath = CLI.DBPath
		}

		deps, err := server.Open(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer deps.Close()
		app.deps = deps
	}

	if err := kctx.Run(app); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
