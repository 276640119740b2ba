package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/onto/internal"
	"github.com/starford/onto/internal/index"
	"github.com/starford/onto/internal/service"
	pkgconfig "github.com/starford/onto/pkg/config"
)

var errValidationFailed = errors.New("validation failed")

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if s := cmd.String("store"); s != "" {
		cfg.Store.Path = s
	}
	return cfg, nil
}

// cliLogger writes to stderr so stdout carries only command output.
func cliLogger(cfg *internal.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
}

// openService builds an in-memory service over the configured store. The
// SQLite projection is attached only when withIndex is set.
func openService(cmd *cli.Command, withIndex bool) (*internal.Config, *service.Service, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := internal.OpenStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	opts := []service.Option{
		service.WithLogger(cliLogger(cfg)),
		service.WithStrict(cfg.Validation.Strict),
	}
	closer := func() {}
	if withIndex {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init index: %w", err)
		}
		opts = append(opts, service.WithIndex(db))
		closer = func() { _ = db.Close() }
	}
	return cfg, service.New(store, opts...), closer, nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check every store file against the declared schema",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strict", Usage: "Treat warnings as failures"},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, svc, done, err := openService(cmd, false)
			if err != nil {
				return err
			}
			defer done()

			strict := cmd.Bool("strict") || cfg.Validation.Strict
			report, passed, err := svc.Validate(ctx, strict)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				err = writeJSON(os.Stdout, report)
			} else {
				err = writeReport(os.Stdout, report, strict)
			}
			if err != nil {
				return err
			}
			if !passed {
				return errValidationFailed
			}
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a query against the loaded graph",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print hits as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			q := cmd.Args().First()
			if q == "" {
				return errors.New("search: query argument is required")
			}
			_, svc, done, err := openService(cmd, false)
			if err != nil {
				return err
			}
			defer done()

			hits, err := svc.SearchHits(ctx, q)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return writeJSON(os.Stdout, hits)
			}
			return writeHits(os.Stdout, hits)
		},
	}
}

func graphCommand() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Usage:     "Walk outgoing edges breadth-first from an instance",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Maximum depth to expand", Value: 1},
			&cli.BoolFlag{Name: "json", Usage: "Print steps as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("graph: id argument is required")
			}
			_, svc, done, err := openService(cmd, false)
			if err != nil {
				return err
			}
			defer done()

			_, steps, err := svc.Traverse(ctx, id, int(cmd.Int("depth")))
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return writeJSON(os.Stdout, steps)
			}
			return writeSteps(os.Stdout, steps)
		},
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Rebuild the SQLite projection from the store",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, svc, done, err := openService(cmd, true)
			if err != nil {
				return err
			}
			defer done()

			if err := svc.Reindex(ctx); err != nil {
				return err
			}
			g, err := svc.Graph(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "indexed %d instances and %d edges into %s\n",
				len(g.Instances), len(g.Edges), cfg.SQLite.Path)
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API and watch the store for changes",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
		},
	}
}
