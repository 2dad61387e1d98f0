package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	loggerKey contextKey = "aggregator.logger"
	taskKey   contextKey = "aggregator.task"
)

type taskInfo struct {
	name string
	id   string
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns slog.Default if none is set.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// WithTask records the running task in the context.
func WithTask(ctx context.Context, name, id string) context.Context {
	return context.WithValue(ctx, taskKey, taskInfo{name: name, id: id})
}

// TaskFromContext returns the task recorded by WithTask.
func TaskFromContext(ctx context.Context) (name, id string) {
	if t, ok := ctx.Value(taskKey).(taskInfo); ok {
		return t.name, t.id
	}
	return "", ""
}

// L returns the context logger enriched with task attributes.
func L(ctx context.Context) *slog.Logger {
	l := FromContext(ctx)
	if name, id := TaskFromContext(ctx); name != "" {
		l = l.With("task", name, "task_id", id)
	}
	return l
}
