package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/maxmcd/shaderloom/internal/tracing"
	"github.com/maxmcd/shaderloom/pkg/loom"
	"github.com/mitchellh/go-wordwrap"
	cli "github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/trace"
)

var (
	commandHelpTemplate = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}}{{if .VisibleFlags}} [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}{{if .Description}}

Description:
   {{.Description | nindent 3 | trim}}{{end}}{{if .VisibleFlags}}

Options:{{range .VisibleFlags}}
   {{.}}{{end}}{{end}}
`

	appHelpTemplate = `Usage: {{.Usage}}
	{{.Description | nindent 3 | trim}}
Commands:{{range .VisibleCommands}}
	{{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}

Options:
	{{range $index, $option := .VisibleFlags}}{{if $index}}
	{{end}}{{$option}}{{end}}
`
)

var tracer trace.Tracer

func init() {
	tracer = tracing.Tracer("command")
}

func cliApp(cmd *commands) *cli.App {
	app := &cli.App{
		Name:                  "loom",
		Usage:                 "loom [--version] [--help] <command> [args]",
		Description:           "Runs shader preprocessing pipelines written in Starlark.",
		Version:               loom.Version,
		HideHelpCommand:       true,
		CustomAppHelpTemplate: appHelpTemplate,
		Writer:                cmd.stdout,
		ErrWriter:             cmd.stderr,
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Build pipelines",
				UsageText: `
loom build [options] <path>...

Runs the build() function of each pipeline script. Files returned by build()
are written relative to the script's directory. Modules the pipeline loads
are looked up in the embedded library first and on disk second, relative to
the pipeline.

Several pipelines are built in parallel, each in its own runtime.

loom build shaders/loom.star
loom build --define target=metal a/loom.star b/loom.star
`,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "define",
						Usage: "set a build define as key=value, overriding loom.toml, to pass multiple defines use this flag multiple times",
					},
					&cli.BoolFlag{
						Name:  "sandbox",
						Usage: "only load modules from disk that are inside the pipeline's directory",
					},
				},
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "loom build "+fmt.Sprintf("%q", c.Args().Slice()))
					defer span.End()

					if c.Args().Len() == 0 {
						return cli.ShowCommandHelp(c, "build")
					}
					defines, err := parseDefines(c.StringSlice("define"))
					if err != nil {
						return err
					}
					return cmd.build(ctx, c.Args().Slice(), buildOptions{
						defines: defines,
						sandbox: c.Bool("sandbox"),
					})
				},
			},
			{
				Name:      "run",
				Usage:     "Run an embedded module",
				UsageText: "loom run <module> [arg]",
				Action: func(c *cli.Context) error {
					ctx, span := tracer.Start(c.Context, "loom run "+fmt.Sprintf("%q", c.Args().Slice()))
					defer span.End()

					if c.Args().Len() == 0 {
						return cli.ShowCommandHelp(c, "run")
					}
					return cmd.run(ctx, c.Args().First(), c.Args().Tail())
				},
			},
			{
				Name:      "modules",
				Usage:     "List the embedded modules",
				UsageText: "loom modules",
				Action: func(c *cli.Context) error {
					return cmd.modules()
				},
			},
			{
				Name:  "bundle",
				Usage: "Bundle a script tree into an artifact",
				UsageText: `
loom bundle [options] <root>...

Collects every .star file below each root into one artifact. Paths inside
the artifact are relative to their root and must be unique across roots.
`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "file to write the artifact to, stdout when empty",
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "fail if the output file is not identical to a fresh bundle instead of writing it",
					},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() == 0 {
						return cli.ShowCommandHelp(c, "bundle")
					}
					return cmd.bundle(c.Args().Slice(), c.String("output"), c.Bool("check"))
				},
			},
		},
	}

	for _, c := range app.Commands {
		c.CustomHelpTemplate = commandHelpTemplate

		// Wrap the options help to the terminal width. Requires knowledge of
		// the longest flag length.
		longest := 0
		for _, flag := range c.Flags {
			for _, name := range flag.Names() {
				if len(name) > longest {
					longest = len(name)
				}
			}
		}
		for _, flag := range c.Flags {
			switch c := flag.(type) {
			case *cli.BoolFlag:
				c.Usage = formatFlag(c.Usage, longest)
			case *cli.StringFlag:
				c.Usage = formatFlag(c.Usage, longest)
			case *cli.StringSliceFlag:
				c.Usage = formatFlag(c.Usage, longest)
			}
		}
	}
	return app
}

// RunCLI runs the cli with os.Args
func RunCLI() {
	defer tracing.Stop()

	// Patch cli lib to remove bool default
	oldFlagStringer := cli.FlagStringer
	cli.FlagStringer = func(f cli.Flag) string {
		return strings.TrimSuffix(oldFlagStringer(f), " (default: false)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		s := make(chan os.Signal, 1)
		signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
		<-s
		cancel()
		fmt.Fprintln(os.Stderr, "Got interrupt, shutting down")
		os.Exit(1)
	}()

	cmd := newCommands(os.Stdout, os.Stderr)
	if err := cliApp(cmd).RunContext(ctx, os.Args); err != nil {
		logger.Print(formatError(err, cmd.source, os.Stderr))
		// Explicitly call stop since the Exit will not call the defer
		tracing.Stop()
		os.Exit(1)
	}
}

func formatFlag(usage string, longest int) string {
	return strings.ReplaceAll(
		wordwrap.WrapString(usage,
			uint(terminalWidth()-3-longest-3),
		), "\n", "\n\t")
}
