package command

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/aggregator/internal/cli/output"
	"github.com/yndnr/aggregator/internal/infra/buildinfo"
	"github.com/yndnr/aggregator/internal/infra/confloader"
	"github.com/yndnr/aggregator/internal/worker/config"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    buildinfo.Name,
		Usage:   "Exchange trade ingest worker with graceful shutdown",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RunCommand(),
			StatusCommand(),
			CheckpointsCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"AGGREGATOR_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override log.level (notset, debug, info, warning, error, critical)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigFile string
	LogLevel   string
	Output     string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigFile: c.String("config"),
		LogLevel:   c.String("log-level"),
		Output:     c.String("output"),
	}
}

// LoadConfig layers defaults, the file, the environment and the log level
// override, then verifies the result.
func LoadConfig(configFile, logLevel string) (*config.Config, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	if logLevel != "" {
		opts = append(opts, confloader.WithOverrides(map[string]any{"log.level": logLevel}))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	flags := ParseGlobalFlags(c)
	cfg, err := LoadConfig(flags.ConfigFile, flags.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func formatter(c *cli.Context) (output.Formatter, error) {
	format, err := output.ParseFormat(ParseGlobalFlags(c).Output)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format), nil
}

// PrintError prints err to w with a highlighted prefix.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
}
