package federation

import "testing"

func TestAssignTextShardsOnePerNode(t *testing.T) {
	nodes := []NodeID{"a", "b", "c"}
	assignment := AssignTextShards(nodes)

	seen := map[NodeID]bool{}
	for shard := range nodes {
		owner, ok := assignment.NodeForShard(shard)
		if !ok {
			t.Fatalf("expected shard %d to be assigned", shard)
		}
		seen[owner] = true
	}
	if len(seen) != len(nodes) {
		t.Fatalf("expected every node to own exactly one shard, got %v", seen)
	}
}

func TestHomeShardIsDeterministicAndInRange(t *testing.T) {
	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		s1 := HomeShard(id, 8)
		s2 := HomeShard(id, 8)
		if s1 != s2 {
			t.Fatalf("expected HomeShard to be deterministic for %q", id)
		}
		if s1 < 0 || s1 >= 8 {
			t.Fatalf("expected shard in [0,8), got %d", s1)
		}
	}
}

func TestHomeShardDistributesAcrossShards(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 100; i++ {
		id := string(rune('a' + i%26))
		seen[HomeShard(id+string(rune(i)), 4)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected documents to spread across more than one shard, got %v", seen)
	}
}
