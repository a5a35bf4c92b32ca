package ircline

import "github.com/pior/ircline/internal/shard"

// ShardSelector picks the delivery shard of a recipient.
// It receives the recipient ID and the number of shards, and returns an
// index in [0, shardCount).
//
// All writes to a recipient go through its shard, which keeps them in order,
// so a selector must return the same shard for the same ID.
type ShardSelector func(id string, shardCount int) int

// DefaultShardSelector uses Jump Hash over xxh3 for consistent shard selection.
func DefaultShardSelector(id string, shardCount int) int {
	return shard.Select(id, shardCount)
}
