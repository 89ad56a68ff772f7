package collection

import "hash/fnv"

// shardIndex hashes id into [0, numShards), the same fnv64a family
// internal/graph uses, so a document's text segment, vector segment, and
// graph node co-locate on the same shard number (spec.md §3).
func shardIndex(id string, numShards int) int {
	if numShards < 1 {
		numShards = 1
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum64() % uint64(numShards))
}
