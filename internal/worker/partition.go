package worker

import "github.com/spaolacci/murmur3"

// Partition maps a symbol onto one of n partitions.
func Partition(symbol string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(murmur3.Sum32([]byte(symbol)) % uint32(n))
}
