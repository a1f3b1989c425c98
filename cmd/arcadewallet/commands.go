package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/brojonat/arcadewallet/service/keys"
	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

// run opens the backend and calls fn under the --timeout deadline.
func run(c *cli.Context, fn func(ctx context.Context, b backend) error) error {
	b := openBackend(c)
	defer b.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	return fn(ctx, b)
}

func requireSigner(c *cli.Context) (string, error) {
	signer := c.String("signer")
	if signer == "" {
		return "", fmt.Errorf("signer is required (set ARCADEWALLET_SIGNER or use --signer)")
	}
	return signer, nil
}

func deriveCommand() *cli.Command {
	return &cli.Command{
		Name:  "derive",
		Usage: "Derive a signer handle from a BIP-39 mnemonic",
		Description: `Prints a signer handle to pass to the other commands via --signer.

The handle contains the private key. Treat it like the mnemonic.

Example:
  arcadewallet derive --generate --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mnemonic",
				Aliases: []string{"m"},
				Usage:   "BIP-39 mnemonic phrase",
				EnvVars: []string{"ARCADEWALLET_MNEMONIC"},
			},
			&cli.StringFlag{
				Name:    "passphrase",
				Usage:   "Optional BIP-39 passphrase",
				EnvVars: []string{"ARCADEWALLET_PASSPHRASE"},
			},
			&cli.BoolFlag{
				Name:  "generate",
				Usage: "Generate a fresh mnemonic instead of reading one",
			},
			&cli.IntFlag{
				Name:  "bits",
				Usage: "Entropy bits for --generate (128 to 256, a multiple of 32)",
				Value: 128,
			},
		},
		Action: func(c *cli.Context) error {
			mnemonic := c.String("mnemonic")
			generated := false
			if c.Bool("generate") {
				if mnemonic != "" {
					return fmt.Errorf("--generate and --mnemonic are mutually exclusive")
				}
				var err error
				mnemonic, err = keys.NewMnemonic(c.Int("bits"))
				if err != nil {
					return err
				}
				generated = true
			}
			if mnemonic == "" {
				return fmt.Errorf("mnemonic is required (set ARCADEWALLET_MNEMONIC, use --mnemonic, or --generate)")
			}

			return run(c, func(ctx context.Context, b backend) error {
				signer, err := b.DeriveSigner(ctx, mnemonic, c.String("passphrase"))
				if err != nil {
					return fmt.Errorf("failed to derive signer: %w", err)
				}
				address, err := b.AddressOf(ctx, signer)
				if err != nil {
					return fmt.Errorf("failed to resolve address: %w", err)
				}

				out := map[string]string{
					"signer":  signer,
					"address": address,
				}
				if generated {
					out["mnemonic"] = mnemonic
				}

				return render(c, out, func(w io.Writer) {
					if generated {
						fmt.Fprintf(w, "Mnemonic: %s\n", mnemonic)
					}
					fmt.Fprintf(w, "Address:  %s\n", address)
					fmt.Fprintf(w, "Signer:   %s\n", signer)
				})
			})
		},
	}
}

func addressCommand() *cli.Command {
	return &cli.Command{
		Name:  "address",
		Usage: "Show the address of the signer",
		Action: func(c *cli.Context) error {
			signer, err := requireSigner(c)
			if err != nil {
				return err
			}

			return run(c, func(ctx context.Context, b backend) error {
				address, err := b.AddressOf(ctx, signer)
				if err != nil {
					return fmt.Errorf("failed to resolve address: %w", err)
				}
				return render(c, map[string]string{"address": address}, func(w io.Writer) {
					fmt.Fprintln(w, address)
				})
			})
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "balance",
		Usage: "Show the signer's SOL balance",
		Action: func(c *cli.Context) error {
			signer, err := requireSigner(c)
			if err != nil {
				return err
			}

			return run(c, func(ctx context.Context, b backend) error {
				lamports, err := b.GetNativeBalance(ctx, signer)
				if err != nil {
					return fmt.Errorf("failed to get balance: %w", err)
				}
				return render(c, map[string]uint64{"lamports": lamports}, func(w io.Writer) {
					fmt.Fprintf(w, "%.9f SOL (%d lamports)\n", float64(lamports)/float64(solana.LAMPORTS_PER_SOL), lamports)
				})
			})
		},
	}
}

func tokenBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:  "token-balance",
		Usage: "Show the signer's game token balance",
		Action: func(c *cli.Context) error {
			signer, err := requireSigner(c)
			if err != nil {
				return err
			}

			return run(c, func(ctx context.Context, b backend) error {
				balance, err := b.GetTokenBalance(ctx, signer)
				if err != nil {
					return fmt.Errorf("failed to get token balance: %w", err)
				}
				return render(c, map[string]float64{"balance": balance}, func(w io.Writer) {
					fmt.Fprintf(w, "%g tokens\n", balance)
				})
			})
		},
	}
}

func buyCommand() *cli.Command {
	return &cli.Command{
		Name:      "buy",
		Usage:     "Buy game tokens, paid for by the signer",
		ArgsUsage: "AMOUNT",
		Action: func(c *cli.Context) error {
			signer, err := requireSigner(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return fmt.Errorf("amount is required")
			}
			amount, err := strconv.ParseFloat(c.Args().Get(0), 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("amount must be a positive number, got %q", c.Args().Get(0))
			}

			return run(c, func(ctx context.Context, b backend) error {
				r, err := b.BuyToken(ctx, signer, amount)
				if err != nil {
					return fmt.Errorf("failed to buy tokens: %w", err)
				}
				return render(c, r, func(w io.Writer) {
					printReceipt(w, fmt.Sprintf("Bought %g tokens", amount), r)
				})
			})
		},
	}
}

func saveScoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "save-score",
		Usage:     "Save a score, signed and paid for by the signer",
		ArgsUsage: "SCORE",
		Action: func(c *cli.Context) error {
			signer, err := requireSigner(c)
			if err != nil {
				return err
			}
			if c.NArg() != 1 {
				return fmt.Errorf("score is required")
			}
			score, err := strconv.ParseUint(c.Args().Get(0), 10, 64)
			if err != nil {
				return fmt.Errorf("score must be an unsigned integer, got %q", c.Args().Get(0))
			}

			return run(c, func(ctx context.Context, b backend) error {
				r, err := b.SaveScore(ctx, signer, score)
				if err != nil {
					return fmt.Errorf("failed to save score: %w", err)
				}
				return render(c, r, func(w io.Writer) {
					printReceipt(w, fmt.Sprintf("Saved score %d", score), r)
				})
			})
		},
	}
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "Show the stored score",
		Action: func(c *cli.Context) error {
			return run(c, func(ctx context.Context, b backend) error {
				score, err := b.GetScore(ctx)
				if err != nil {
					return fmt.Errorf("failed to get score: %w", err)
				}
				return render(c, map[string]uint64{"score": score}, func(w io.Writer) {
					fmt.Fprintln(w, score)
				})
			})
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check sidecar server health",
		Action: func(c *cli.Context) error {
			serverURL := c.String("server")
			if serverURL == "" {
				return fmt.Errorf("server is required (set ARCADEWALLET_SERVER_URL or use --server)")
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(serverURL + "/health")
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
			}

			return render(c, map[string]interface{}{"url": serverURL, "status": resp.StatusCode}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Server is healthy (status: %d)\n", resp.StatusCode)
				fmt.Fprintf(w, "  URL: %s\n", serverURL)
			})
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			w := c.App.Writer
			fmt.Fprintf(w, "arcadewallet CLI\n")
			fmt.Fprintf(w, "  Version: %s\n", version)
			fmt.Fprintf(w, "  Commit:  %s\n", commit)
			fmt.Fprintf(w, "  Built:   %s\n", date)
			return nil
		},
	}
}

func printReceipt(w io.Writer, headline string, r *receipt) {
	fmt.Fprintf(w, "✓ %s\n", headline)
	fmt.Fprintf(w, "  Signature:    %s\n", r.Signature)
	fmt.Fprintf(w, "  Confirmation: %s\n", r.Confirmation)
}
