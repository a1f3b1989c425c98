package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "arcadewallet",
		Usage: "Game wallet for the arcade score program on Solana",
		Description: `Derive signers, check balances, buy game tokens and save scores.

Without --server every command talks to the Solana RPC node directly, configured
through the same environment variables (or CONFIG_FILE) as the sidecar server.
With --server, commands go through a running sidecar instead.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			deriveCommand(),
			addressCommand(),
			balanceCommand(),
			tokenBalanceCommand(),
			buyCommand(),
			saveScoreCommand(),
			scoreCommand(),
			eventsCommand(),
			healthCommand(),
			versionCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Sidecar server URL (empty talks to the RPC node directly)",
				EnvVars: []string{"ARCADEWALLET_SERVER_URL"},
			},
			&cli.StringFlag{
				Name:    "signer",
				Usage:   "Signer handle returned by derive",
				EnvVars: []string{"ARCADEWALLET_SIGNER"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall deadline for one command, including confirmation",
				Value: 2 * time.Minute,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for diagnostics on stderr",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "error",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq expression applied to the JSON output (string results print raw)",
			},
		},
	}
}
