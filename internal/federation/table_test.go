package federation

import (
	"testing"
	"time"
)

func TestTableReconcileAddsNewPeersOnly(t *testing.T) {
	tbl := NewTable("self")
	tbl.Reconcile([]PeerAddr{{ID: "a", AdvertiseAddr: "10.0.0.1:9000"}, {ID: "self", AdvertiseAddr: "ignored"}})

	if len(tbl.Peers()) != 1 {
		t.Fatalf("expected self to be excluded, got %+v", tbl.Peers())
	}
	n, ok := tbl.Get("a")
	if !ok || n.Liveness != LivenessNormal || n.Drain != DrainNormal {
		t.Fatalf("unexpected node state: %+v ok=%v", n, ok)
	}

	tbl.SetDrain("a", DrainDraining)
	tbl.Reconcile([]PeerAddr{{ID: "a", AdvertiseAddr: "10.0.0.1:9000"}})
	n, _ = tbl.Get("a")
	if n.Drain != DrainDraining {
		t.Fatalf("expected reconcile to leave an already-tracked node's drain state untouched, got %v", n.Drain)
	}
}

func TestTableRoutableSkipsDeadDrainingAndIncompatible(t *testing.T) {
	tbl := NewTable("self")
	tbl.Upsert(Node{ID: "healthy", Liveness: LivenessNormal, Drain: DrainNormal})
	tbl.Upsert(Node{ID: "dead", Liveness: LivenessDead, Drain: DrainNormal})
	tbl.Upsert(Node{ID: "draining", Liveness: LivenessNormal, Drain: DrainDraining})
	tbl.Upsert(Node{ID: "incompatible", Liveness: LivenessNormal, Drain: DrainNormal, Incompatible: true})

	routable := tbl.Routable()
	if len(routable) != 1 || routable[0].ID != "healthy" {
		t.Fatalf("expected only the healthy node to be routable, got %+v", routable)
	}
}

func TestTableSweepLivenessTransitionsOnMissedHeartbeats(t *testing.T) {
	tbl := NewTable("self")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl.Upsert(Node{ID: "a", Liveness: LivenessNormal, LastHeartbeat: base})

	suspectAfter := 6 * time.Second
	deadAfter := 30 * time.Second

	changed := tbl.sweepLiveness(base.Add(3*time.Second), suspectAfter, deadAfter)
	if len(changed) != 0 {
		t.Fatalf("expected no transition before suspectAfter elapses, got %+v", changed)
	}

	changed = tbl.sweepLiveness(base.Add(7*time.Second), suspectAfter, deadAfter)
	if len(changed) != 1 || changed[0].Liveness != LivenessSuspect {
		t.Fatalf("expected a transition to suspect, got %+v", changed)
	}

	changed = tbl.sweepLiveness(base.Add(31*time.Second), suspectAfter, deadAfter)
	if len(changed) != 1 || changed[0].Liveness != LivenessDead {
		t.Fatalf("expected a transition to dead, got %+v", changed)
	}
}

func TestTableRecordHeartbeatRecoversFromSuspect(t *testing.T) {
	tbl := NewTable("self")
	base := time.Now()
	tbl.Upsert(Node{ID: "a", Liveness: LivenessSuspect, LastHeartbeat: base.Add(-10 * time.Second)})

	tbl.RecordHeartbeat("a", LocalProtocolInfo([]Capability{CapText}), base)

	n, _ := tbl.Get("a")
	if n.Liveness != LivenessNormal {
		t.Fatalf("expected recovery to normal, got %v", n.Liveness)
	}
}

func TestTableRemoveDropsEntryEntirely(t *testing.T) {
	tbl := NewTable("self")
	tbl.Upsert(Node{ID: "a"})
	tbl.Remove("a")
	if _, ok := tbl.Get("a"); ok {
		t.Fatalf("expected node to be gone after Remove")
	}
}
