// Package shard maps recipient IDs to worker shards.
package shard

import "github.com/zeebo/xxh3"

// Select returns the shard in [0, n) for id. The same id always lands on the
// same shard for a given n, and growing n moves only about 1/n of the ids.
func Select(id string, n int) int {
	return Jump(xxh3.HashString(id), n)
}

// Jump implements the Jump consistent hashing algorithm.
// Copied from: https://github.com/dgryski/go-jump
// Google's "Jump" Consistent Hash function: https://arxiv.org/abs/1406.2294
func Jump(key uint64, buckets int) int {
	if buckets <= 0 {
		return 0
	}

	var b, j int64 = -1, 0
	for j < int64(buckets) {
		b = j
		key = key*2862933555777941757 + 1
		j = int64(float64(b+1) * (float64(int64(1)<<31) / float64((key>>33)+1)))
	}
	return int(b)
}
