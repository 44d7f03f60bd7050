// Command confect composes hierarchical YAML configurations from the
// command line: single compositions, multirun sweep expansion, and config
// group listing.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	confect "github.com/0xalexb/confect"
	"github.com/0xalexb/confect/compose"
	"github.com/0xalexb/confect/logging"
	"github.com/0xalexb/confect/override"
	"github.com/0xalexb/confect/source"
	"github.com/0xalexb/confect/value"
)

func main() {
	app := newApp()

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "confect",
		Usage: "compose hierarchical YAML configurations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Aliases: []string{"d"},
				Value:   ".",
				Usage:   "directory searched for configs and config groups",
			},
			&cli.StringFlag{
				Name:    "config-name",
				Aliases: []string{"n"},
				Value:   "config",
				Usage:   "primary config to compose, without extension",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "error",
				Usage: "log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "resolve",
				Usage: "resolve interpolations in the output",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "compose",
				Usage:     "compose a config and print the merged YAML",
				ArgsUsage: "[override ...]",
				Action:    runCompose,
			},
			{
				Name:      "multirun",
				Usage:     "expand sweep overrides and compose every job",
				ArgsUsage: "[override ...]",
				Action:    runMultirun,
			},
			{
				Name:      "list",
				Usage:     "list configs and groups under a path",
				ArgsUsage: "[path]",
				Action:    runList,
			},
			{
				Name:   "version",
				Usage:  "print version information",
				Action: runVersion,
			},
		},
	}
}

func newComposer(c *cli.Context) (*compose.Composer, source.Source) {
	src := source.NewCaching(source.FromDir(c.String("config-dir")))

	logger := logging.NewLogger(
		logging.LoggerConfig{Level: c.String("log-level")}, os.Stderr)

	composer := compose.New(src,
		compose.WithLogger(logging.Component(logger, "compose")),
		compose.WithResolve(c.Bool("resolve")))

	return composer, src
}

func runCompose(c *cli.Context) error {
	composer, _ := newComposer(c)

	res, err := composer.Compose(c.String("config-name"), c.Args().Slice())
	if err != nil {
		return err
	}

	return printConfig(c, res.Config)
}

func runMultirun(c *cli.Context) error {
	composer, src := newComposer(c)

	parsed, err := override.ParseMany(c.Args().Slice())
	if err != nil {
		return err
	}

	jobs := override.ExpandWith(parsed, func(key string) []string {
		return src.List(key, source.FilterConfig)
	})

	for i, job := range jobs {
		res, err := composer.Compose(c.String("config-name"), job)
		if err != nil {
			return fmt.Errorf("job %d (%s): %w", i, strings.Join(job, " "), err)
		}

		fmt.Fprintf(c.App.Writer, "# job %d: %s\n", i, strings.Join(job, " "))

		err = printConfig(c, res.Config)
		if err != nil {
			return err
		}
	}

	return nil
}

func runList(c *cli.Context) error {
	_, src := newComposer(c)

	for _, name := range src.List(c.Args().First(), source.FilterAny) {
		fmt.Fprintln(c.App.Writer, name)
	}

	return nil
}

func runVersion(c *cli.Context) error {
	fmt.Fprintf(c.App.Writer, "confect %s (built %s)\n",
		confect.Version, confect.CompiledAt)

	return nil
}

func printConfig(c *cli.Context, config *value.Dict) error {
	data, err := value.MarshalYAML(value.DictVal(config))
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(c.App.Writer, string(data))

	return err
}
