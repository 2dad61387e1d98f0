package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/aggregator/internal/cli/output"
	"github.com/yndnr/aggregator/internal/storage/checkpoint"
)

// CheckpointsCommand returns the command that reads the checkpoint store.
// Badger holds a directory lock, so the worker must be stopped; use status
// against a running worker.
func CheckpointsCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkpoints",
		Usage: "Print checkpoints from storage.data_dir (worker must be stopped)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Override storage.data_dir",
			},
		},
		Action: listCheckpoints,
	}
}

type checkpointList []checkpoint.Checkpoint

func (l checkpointList) Table() *output.Table {
	t := output.NewTable("STREAM", "SYMBOL", "TRADE_ID", "SEQ", "TRADE_TIME", "UPDATED_AT")
	for _, cp := range l {
		t.AddRow(
			cp.Stream,
			cp.Symbol,
			cp.TradeID,
			strconv.FormatUint(cp.Seq, 10),
			output.FormatTime(cp.TradeTime),
			output.FormatTime(cp.UpdatedAt),
		)
	}
	return t
}

func listCheckpoints(c *cli.Context) error {
	dir := c.String("data-dir")
	if dir == "" {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		dir = cfg.Storage.DataDir
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}

	store, err := checkpoint.Open(checkpoint.Options{Dir: dir})
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	all, err := store.All(c.Context)
	if err != nil {
		return err
	}
	return f.Format(c.App.Writer, checkpointList(all))
}
