package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/aggregator/internal/cli/output"
	"github.com/yndnr/aggregator/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Print build information",
		Action: version,
	}
}

func version(c *cli.Context) error {
	format, err := output.ParseFormat(ParseGlobalFlags(c).Output)
	if err != nil {
		return err
	}
	if format == output.FormatTable {
		info := buildinfo.Get()
		fmt.Fprintf(c.App.Writer, "%s %s\n  commit:  %s\n  built:   %s\n  go:      %s\n",
			buildinfo.Name, info.Version, info.Commit, info.BuildTime, info.GoVersion)
		return nil
	}
	return output.NewFormatter(format).Format(c.App.Writer, buildinfo.Get())
}
