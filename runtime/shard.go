package runtime

import "github.com/cespare/xxhash/v2"

const DefaultShardCount = 64

func shardIndex[K ~string](key K, count int) int {
	return int(xxhash.Sum64String(string(key)) % uint64(count))
}

func shardCount(n int) int {
	if n <= 0 {
		return DefaultShardCount
	}
	return n
}
