// Package checkpoint persists per-stream progress in Badger.
//
// A checkpoint records the last trade a consumer handed to the sink, so a
// restarted worker can report where it left off.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/aggregator/internal/telemetry/metric"
)

// Common errors.
var (
	ErrNotFound = errors.New("checkpoint: not found")
	ErrClosed   = errors.New("checkpoint: store closed")
)

const (
	keyPrefix = "checkpoint/"

	defaultGCInterval  = 10 * time.Minute
	defaultGCThreshold = 0.5
)

// Checkpoint is the last trade processed on one stream.
type Checkpoint struct {
	Stream    string    `json:"stream" yaml:"stream"`
	Symbol    string    `json:"symbol" yaml:"symbol"`
	TradeID   string    `json:"trade_id" yaml:"trade_id"`
	Seq       uint64    `json:"seq" yaml:"seq"`
	TradeTime time.Time `json:"trade_time" yaml:"trade_time"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Options configures a Store.
type Options struct {
	// Dir is the Badger data directory. Ignored when InMemory is set.
	Dir      string
	InMemory bool

	// GCInterval is how often the value log is compacted. Zero means 10m.
	GCInterval time.Duration

	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Store is a Badger-backed checkpoint store.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	metrics *metric.Registry

	mu     sync.RWMutex // guards closed against in-flight operations
	closed bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens or creates a store.
func Open(o Options) (*Store, error) {
	if !o.InMemory && o.Dir == "" {
		return nil, fmt.Errorf("checkpoint: dir is required")
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "checkpoint")

	opts := badger.DefaultOptions(o.Dir)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open db: %w", err)
	}

	s := &Store{
		db:      db,
		logger:  logger,
		metrics: o.Metrics,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}

	interval := o.GCInterval
	if interval <= 0 {
		interval = defaultGCInterval
	}
	if o.InMemory {
		close(s.doneCh)
	} else {
		go s.gcLoop(interval)
	}

	logger.Info("checkpoint store opened", "dir", o.Dir, "in_memory", o.InMemory)
	return s, nil
}

func key(stream string) []byte {
	return []byte(keyPrefix + stream)
}

// Save stores cp under stream, replacing any previous checkpoint.
func (s *Store) Save(ctx context.Context, stream string, cp Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	cp.Stream = stream
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(stream), value)
	}); err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", stream, err)
	}
	s.metrics.IncCheckpointWrite()
	return nil
}

// Load returns the checkpoint for stream.
func (s *Store) Load(ctx context.Context, stream string) (Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return Checkpoint{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Checkpoint{}, ErrClosed
	}

	var cp Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(stream))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cp)
		})
	})
	if err != nil {
		return Checkpoint{}, err
	}
	return cp, nil
}

// All returns every stored checkpoint, ordered by stream.
func (s *Store) All(ctx context.Context) ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var cp Checkpoint
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &cp)
			}); err != nil {
				return err
			}
			out = append(out, cp)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close stops background GC and closes the database. Safe to call twice.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("checkpoint: close db: %w", err)
	}
	s.logger.Info("checkpoint store closed")
	return nil
}

func (s *Store) gcLoop(interval time.Duration) {
	defer close(s.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(defaultGCThreshold)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Error("value log gc failed", "error", err)
					}
					break
				}
			}
		case <-s.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
