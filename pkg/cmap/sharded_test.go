package cmap

import (
	"fmt"
	"sync"
	"testing"
)

func TestNew(t *testing.T) {
	m := New[int]()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if len(m.shards) != DefaultShardCount {
		t.Errorf("shard count = %d, want %d", len(m.shards), DefaultShardCount)
	}
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{2, 2},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if len(m.shards) != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, len(m.shards), tt.expected)
			}
		})
	}
}

func TestSetAndGet(t *testing.T) {
	m := New[int]()

	m.Set("task-1", 100)
	m.Set("task-2", 200)

	val, ok := m.Get("task-1")
	if !ok || val != 100 {
		t.Errorf("Get(task-1) = (%d, %v), want (100, true)", val, ok)
	}

	val, ok = m.Get("nonexistent")
	if ok {
		t.Errorf("Get(nonexistent) = (%d, %v), want (0, false)", val, ok)
	}
}

func TestPop(t *testing.T) {
	m := New[int]()
	m.Set("task-1", 7)

	val, ok := m.Pop("task-1")
	if !ok || val != 7 {
		t.Errorf("Pop(task-1) = (%d, %v), want (7, true)", val, ok)
	}
	if m.Has("task-1") {
		t.Error("task-1 should not exist after Pop")
	}

	if _, ok := m.Pop("task-1"); ok {
		t.Error("second Pop should report missing key")
	}

	// Delete of a missing key must not panic
	m.Delete("nonexistent")
}

func TestCountAndClear(t *testing.T) {
	m := New[int]()
	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("task-%d", i), i)
	}

	if got := m.Count(); got != 50 {
		t.Errorf("Count() = %d, want 50", got)
	}

	if removed := m.Clear(); removed != 50 {
		t.Errorf("Clear() = %d, want 50", removed)
	}
	if got := m.Count(); got != 0 {
		t.Errorf("Count() after Clear = %d, want 0", got)
	}
}

func TestRangeEarlyStop(t *testing.T) {
	m := New[int]()
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	visited := 0
	m.Range(func(string, int) bool {
		visited++
		return visited < 3
	})
	if visited != 3 {
		t.Errorf("visited = %d, want 3", visited)
	}
}

func TestValues(t *testing.T) {
	m := New[int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	sum := 0
	for _, v := range m.Values() {
		sum += v
	}
	if sum != 6 {
		t.Errorf("sum of Values() = %d, want 6", sum)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d-%d", id, i)
				m.Set(key, i)
				m.Get(key)
				if i%2 == 0 {
					m.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if got := m.Count(); got != 8*100 {
		t.Errorf("Count() = %d, want %d", got, 8*100)
	}
}
