package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vaultgraph/internal"
	pkgconfig "github.com/starford/vaultgraph/pkg/config"
)

var version = "dev"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}
}

// loadConfig reads the config file. The default file may be absent, in
// which case built-in defaults apply.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	path := cmd.String("config")
	var err error
	if cmd.IsSet("config") {
		err = pkgconfig.Load(path, cfg)
	} else {
		_, err = pkgconfig.LoadIfExists(path, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func scan(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	so := internal.ScanOptions{
		Format:           cmd.String("format"),
		IncludeExternal:  cmd.Bool("include-external"),
		FailOnUnresolved: cmd.Bool("fail-on-unresolved"),
	}
	// Logs go to stderr so stdout carries only the report.
	return internal.Scan(ctx, os.Stdout, so, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr), internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:    "vaultgraph",
		Usage:   "Resolve the wikilinks, Markdown links and embeds of a Markdown vault into a link graph",
		Version: version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag()},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Scan the vault, watch it for changes and serve the graph over HTTP",
				Action: serve,
				Flags:  []cli.Flag{configFlag()},
			},
			{
				Name:   "scan",
				Usage:  "Scan the vault once and report unresolved references",
				Action: scan,
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "format",
						Usage: "Report format: text or json",
						Value: internal.FormatText,
					},
					&cli.BoolFlag{
						Name:  "include-external",
						Usage: "Also report unresolved external URLs",
					},
					&cli.BoolFlag{
						Name:  "fail-on-unresolved",
						Usage: "Exit with status 1 when unresolved references are found",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Scan the vault and serve graph tools over MCP stdio",
				Action: mcp,
				Flags:  []cli.Flag{configFlag()},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, internal.ErrUnresolved) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
