package command

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/aggregator/internal/cli/connection"
	"github.com/yndnr/aggregator/internal/cli/output"
	"github.com/yndnr/aggregator/internal/storage/checkpoint"
)

// StatusCommand returns the command that queries a running worker.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show health and checkpoints of a running worker",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Metrics listener of the worker (defaults to metrics.addr)",
			},
		},
		Action: status,
	}
}

type statusReport struct {
	Addr        string                  `json:"addr" yaml:"addr"`
	Status      string                  `json:"status" yaml:"status"`
	Checkpoints []checkpoint.Checkpoint `json:"checkpoints" yaml:"checkpoints"`
}

func (r statusReport) Table() *output.Table {
	return checkpointList(r.Checkpoints).Table()
}

func status(c *cli.Context) error {
	addr := c.String("addr")
	if addr == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		addr = cfg.Metrics.Addr
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, connection.DefaultTimeout)
	defer cancel()

	client := connection.NewHTTPClient(addr)
	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("health check %s: %w", client.BaseURL(), err)
	}
	cps, err := client.Checkpoints(ctx)
	if err != nil {
		return fmt.Errorf("checkpoints %s: %w", client.BaseURL(), err)
	}

	report := statusReport{Addr: client.BaseURL(), Status: health.Status, Checkpoints: cps}
	if _, ok := f.(*output.TableFormatter); ok {
		state := color.GreenString(health.Status)
		if health.ShuttingDown() {
			state = color.YellowString(health.Status)
		}
		fmt.Fprintf(c.App.Writer, "Worker:  %s\nStatus:  %s\n\n", report.Addr, state)
	}
	return f.Format(c.App.Writer, report)
}
