package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yndnr/aggregator/internal/exchange"
	"github.com/yndnr/aggregator/internal/infra/scheduler"
	"github.com/yndnr/aggregator/internal/infra/shutdown"
	"github.com/yndnr/aggregator/internal/storage/checkpoint"
)

// consumer drains one partition into the sink.
type consumer struct {
	w      *Worker
	index  int
	name   string
	stream string
	in     <-chan exchange.Trade

	last     checkpoint.Checkpoint
	hasLast  bool
	pending  int // trades since the last scheduled checkpoint
	inflight *scheduler.Task
}

func newConsumer(w *Worker, index int) *consumer {
	prefix := w.cfg.Shutdown.ConsumerPrefix
	if prefix == "" {
		prefix = shutdown.DefaultConsumerPrefix
	}
	return &consumer{
		w:      w,
		index:  index,
		name:   fmt.Sprintf("%s-%d", prefix, index),
		stream: fmt.Sprintf("%s/%d", w.opts.Stream.Name(), index),
		in:     w.partitions[index],
	}
}

// run publishes until the partition is closed. Once shutdown begins it
// keeps draining what is buffered, then writes a final checkpoint.
func (c *consumer) run(ctx context.Context) error {
	log := taskLogger(ctx, c.w.logger)
	latch := c.w.handler.Latch().Done()
	var published int

	for {
		select {
		case t, ok := <-c.in:
			if !ok {
				err := c.flush(ctx)
				log.Info("consumer finished", "published", published)
				return err
			}
			if c.publish(ctx, log, t) {
				published++
			}
		case <-latch:
			latch = nil
			log.Info("shutdown started, draining partition", "buffered", len(c.in))
		}
	}
}

func (c *consumer) publish(ctx context.Context, log *slog.Logger, t exchange.Trade) bool {
	if err := c.w.opts.Publisher.Publish(ctx, t); err != nil {
		c.w.metrics.IncPublishError()
		log.Warn("publish failed", "symbol", t.Symbol, "trade_id", t.TradeID, "error", err)
		return false
	}
	c.w.metrics.IncTradePublished(t.Symbol)

	c.last = checkpoint.Checkpoint{
		Symbol:    t.Symbol,
		TradeID:   t.TradeID,
		Seq:       t.Seq,
		TradeTime: t.Time,
	}
	c.hasLast = true
	c.pending++
	if c.pending >= c.w.cfg.Exchange.CheckpointEvery {
		c.checkpointAsync(log)
	}
	return true
}

// checkpointAsync saves the current position as a background task. A save
// cancelled by shutdown is covered by flush. At most one save per consumer
// is in flight.
func (c *consumer) checkpointAsync(log *slog.Logger) {
	if c.inflight != nil {
		select {
		case <-c.inflight.Done():
			c.inflight = nil
		default:
			return
		}
	}

	cp := c.last
	stream := c.stream
	store := c.w.opts.Store
	t, err := c.w.handler.Background(fmt.Sprintf("checkpoint-%d", c.index), func(ctx context.Context) error {
		return store.Save(ctx, stream, cp)
	})
	switch {
	case err == nil:
		c.inflight = t
		c.pending = 0
	case errors.Is(err, shutdown.ErrShutdown):
		// Spawned as shutdown began and already cancelled; flush waits for it.
		if t != nil {
			c.inflight = t
		}
	default:
		log.Warn("failed to schedule checkpoint", "error", err)
	}
}

func (c *consumer) flush(ctx context.Context) error {
	if !c.hasLast {
		return nil
	}
	// An older save finishing after this one would roll the position back.
	if c.inflight != nil {
		select {
		case <-c.inflight.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := c.w.opts.Store.Save(ctx, c.stream, c.last); err != nil {
		return fmt.Errorf("final checkpoint %s: %w", c.stream, err)
	}
	c.pending = 0
	return nil
}
