package shutdown

import (
	"strings"

	"github.com/yndnr/aggregator/internal/infra/scheduler"
)

// DefaultConsumerPrefix marks long-lived stream-drain tasks.
const DefaultConsumerPrefix = "consumer"

// IsConsumer reports whether a task name carries the consumer prefix.
// An empty prefix means DefaultConsumerPrefix.
func IsConsumer(name, prefix string) bool {
	if prefix == "" {
		prefix = DefaultConsumerPrefix
	}
	return strings.HasPrefix(name, prefix)
}

// Classify partitions tasks into ordinary tasks and consumers.
// Input order is preserved in both partitions.
func Classify(tasks []*scheduler.Task, prefix string) (ordinary, consumers []*scheduler.Task) {
	for _, t := range tasks {
		if IsConsumer(t.Name(), prefix) {
			consumers = append(consumers, t)
			continue
		}
		ordinary = append(ordinary, t)
	}
	return ordinary, consumers
}
