package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/config"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
	"github.com/hpungsan/memoreal/internal/mint"
	"github.com/hpungsan/memoreal/internal/ops"
	"github.com/hpungsan/memoreal/internal/token"
	"github.com/hpungsan/memoreal/internal/web"
)

// env carries the resources commands share.
type env struct {
	db          *sql.DB
	cfg         *config.Config
	clock       clock.Clock
	keypairPath string
	program     identity.PublicKey
}

// newEnv resolves the keypair location and metadata program from cfg.
func newEnv(db *sql.DB, cfg *config.Config, baseDir string, clk clock.Clock) (*env, error) {
	program, err := cfg.ResolveMetadataProgram(mint.DefaultMetadataProgram)
	if err != nil {
		return nil, err
	}
	return &env{
		db:          db,
		cfg:         cfg,
		clock:       clk,
		keypairPath: cfg.ResolveKeypairPath(baseDir),
		program:     program,
	}, nil
}

// loadKeypair reads the signing identity.
func (e *env) loadKeypair() (*identity.Keypair, error) {
	return identity.LoadKeypair(e.keypairPath)
}

// orchestrator wires the local token ledger as both minter and metadata registry.
func (e *env) orchestrator() *mint.Orchestrator {
	ledger := token.NewLedger(e.db, e.program, e.clock)
	return mint.NewOrchestrator(ledger, ledger, e.program)
}

// clockAt returns a clock pinned to --at when set, else the env clock.
func (e *env) clockAt(c *cli.Context) clock.Clock {
	if c.IsSet("at") {
		return clock.Fixed(c.Int64("at"))
	}
	return e.clock
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "memoreal",
		Usage:   "Time capsules with optional collectible minting",
		Version: Version,
		Commands: []*cli.Command{
			keygenCmd(e),
			createCmd(e),
			fetchCmd(e),
			viewCmd(e),
			statusCmd(e),
			listCmd(e),
			mintCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// keygenCmd creates the keygen command.
func keygenCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate the signing keypair",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Keypair path (default: config keypair_path)"},
		},
		Action: func(c *cli.Context) error {
			path := e.keypairPath
			if out := c.String("out"); out != "" {
				path = out
			}

			kp, err := identity.GenerateKeypair()
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := kp.Save(path); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			return outputJSON(map[string]string{
				"public_key": kp.PublicKey().String(),
				"path":       path,
			})
		},
	}
}

// createCmd creates the create command.
func createCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a capsule (message from --message or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title (max 64 bytes)"},
			&cli.StringFlag{Name: "recipient", Aliases: []string{"r"}, Usage: "Recipient (max 64 bytes)"},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Message (max 256 bytes)"},
			&cli.StringFlag{Name: "media", Usage: "Media reference, e.g. ipfs://... (max 256 bytes)"},
			&cli.StringFlag{Name: "type", Value: "general", Usage: "Capsule type: general|time_locked"},
			&cli.Int64Flag{Name: "unlock-at", Usage: "Unix time a time_locked capsule opens"},
			&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "Location tag (max 64 bytes)"},
		},
		Action: func(c *cli.Context) error {
			kp, err := e.loadKeypair()
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error() + " (run 'memoreal keygen')"))
			}

			message := c.String("message")
			if !c.IsSet("message") && stdinHasData() {
				message, err = readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			}

			input := ops.CreateInput{
				Authority:      kp.Authority(),
				Title:          c.String("title"),
				Recipient:      c.String("recipient"),
				Message:        message,
				MediaReference: c.String("media"),
				Type:           c.String("type"),
			}
			if c.IsSet("unlock-at") {
				v := c.Int64("unlock-at")
				input.UnlockAt = &v
			}
			if c.IsSet("location") {
				v := c.String("location")
				input.Location = &v
			}

			output, err := ops.Create(c.Context, e.db, e.cfg, e.clock, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Print a stored capsule record without evaluating unlock gates",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(c.Context, e.db, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// viewCmd creates the view command.
func viewCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "Open a capsule if its unlock gates pass",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "location", Aliases: []string{"l"}, Usage: "Presented location"},
			&cli.Int64Flag{Name: "at", Usage: "Evaluate as of this Unix time"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ViewInput{ID: c.Args().First()}
			if c.IsSet("location") {
				v := c.String("location")
				input.Location = &v
			}

			output, err := ops.View(c.Context, e.db, e.clockAt(c), input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show a capsule's header and whether it is unlockable",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "at", Usage: "Evaluate as of this Unix time"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Status(c.Context, e.db, e.clockAt(c), ops.StatusInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List capsule headers, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "Filter by author (base58)"},
			&cli.StringFlag{Name: "type", Usage: "Filter by type: general|time_locked"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max items (max 100)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(c.Context, e.db, ops.ListInput{
				Author: c.String("author"),
				Type:   c.String("type"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// mintCmd creates the mint command.
func mintCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "mint",
		Usage:     "Mint a capsule as a one-of-a-kind collectible",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mint", Usage: "Existing mint address held by the author (default: create one)"},
			&cli.StringFlag{Name: "name", Usage: "Collectible name (default: capsule title)"},
			&cli.StringFlag{Name: "symbol", Usage: "Collectible symbol (default: config mint_symbol)"},
			&cli.StringFlag{Name: "uri", Usage: "Metadata URI (default: capsule media reference)"},
		},
		Action: func(c *cli.Context) error {
			kp, err := e.loadKeypair()
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error() + " (run 'memoreal keygen')"))
			}

			input := ops.MintInput{
				ID:      c.Args().First(),
				Invoker: kp.Authority(),
			}
			if input.Mint, err = parseKeyFlag(c, "mint"); err != nil {
				return outputError(err)
			}
			input.Name = stringFlag(c, "name")
			input.Symbol = stringFlag(c, "symbol")
			input.URI = stringFlag(c, "uri")

			output, err := ops.Mint(c.Context, e.db, e.cfg, e.clock, e.orchestrator(), input)
			if err != nil {
				// A partial mint still reports what was created
				if output != nil && output.MintResult != nil {
					_ = outputJSON(output)
				}
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the read-only web viewer",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(e.db, e.clock, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if mErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// maxStdinBytes bounds how much piped input create will read.
const maxStdinBytes = 64 << 10

// readStdin reads stdin, failing if it exceeds limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// stringFlag returns a pointer to the flag value when the flag was given.
func stringFlag(c *cli.Context, name string) *string {
	if !c.IsSet(name) {
		return nil
	}
	v := c.String(name)
	return &v
}

// parseKeyFlag parses an optional base58 identity flag.
func parseKeyFlag(c *cli.Context, name string) (*identity.PublicKey, error) {
	s := strings.TrimSpace(c.String(name))
	if s == "" {
		return nil, nil
	}
	key, err := identity.ParsePublicKey(s)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid --%s: %v", name, err))
	}
	return &key, nil
}
