package command

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/aggregator/internal/cli/output"
	"github.com/yndnr/aggregator/internal/worker/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Load and verify the configuration",
				Action: configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(ParseGlobalFlags(c).Output)
	if err != nil {
		return err
	}
	// A config has no tabular form; YAML is its native shape.
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewFormatter(format).Format(c.App.Writer, config.Sanitize(cfg))
}

func configValidate(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, color.GreenString("configuration is valid"))
	return nil
}
