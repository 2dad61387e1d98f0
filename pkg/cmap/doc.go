// Package cmap provides a concurrent map keyed by string.
//
// The map is split into shards, each guarded by its own RWMutex, and keys
// are routed to shards with murmur3. It backs the scheduler's live task
// table and the background task registry, both of which see frequent
// insert/delete traffic from many goroutines.
//
// Usage:
//
//	m := cmap.New[*scheduler.Task]()
//	m.Set(task.ID(), task)
//	t, ok := m.Get(id)
//
// All operations are safe for concurrent use. Range takes read locks shard
// by shard, so it observes a per-shard consistent view only.
package cmap
