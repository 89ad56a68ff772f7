package federation

import (
	"context"
	"sync"
	"time"
)

// Table is the in-memory node table: the live view of the cluster this
// process currently believes in, reconciled from a Discoverer and kept
// current by Runner's liveness sweep. It is the federation-layer
// analogue of internal/nodes.Registry's onlineNodes cache, generalized
// from "paired device" semantics to "cluster peer" semantics.
type Table struct {
	self NodeID

	mu    sync.RWMutex
	nodes map[NodeID]*Node
}

// NewTable creates an empty table for the given local node id. self is
// never reconciled away by Reconcile and is excluded from Peers().
func NewTable(self NodeID) *Table {
	return &Table{self: self, nodes: map[NodeID]*Node{}}
}

// Self returns this process's own node id.
func (t *Table) Self() NodeID { return t.self }

// Upsert inserts or replaces a node entry wholesale.
func (t *Table) Upsert(n Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := n
	t.nodes[n.ID] = &cp
}

// Get returns a copy of the node entry for id, if tracked.
func (t *Table) Get(id NodeID) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Remove deletes id from the table (spec.md §4.10's liveness "removed"
// transition: an admin action takes the node out entirely).
func (t *Table) Remove(id NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, id)
}

// Peers returns every tracked node except self, in no particular order.
func (t *Table) Peers() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Node, 0, len(t.nodes))
	for id, n := range t.nodes {
		if id == t.self {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// Routable returns every peer currently eligible to receive new
// queries (spec.md §4.10's Federated search: "skipping
// draining/dead/incompatible peers").
func (t *Table) Routable() []Node {
	all := t.Peers()
	out := make([]Node, 0, len(all))
	for _, n := range all {
		if n.Routable() {
			out = append(out, n)
		}
	}
	return out
}

// Reconcile adds any PeerAddr not already tracked as a fresh, pending
// (not-yet-handshaken) LivenessNormal/DrainNormal node. Existing
// entries are left untouched — rediscovering an already-known peer
// must not reset its liveness/drain state.
func (t *Table) Reconcile(peers []PeerAddr) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range peers {
		if p.ID == t.self {
			continue
		}
		if _, ok := t.nodes[p.ID]; ok {
			continue
		}
		t.nodes[p.ID] = &Node{
			ID:            p.ID,
			AdvertiseAddr: p.AdvertiseAddr,
			Liveness:      LivenessNormal,
			Drain:         DrainNormal,
		}
	}
}

// RecordHeartbeat marks id as having just been heard from: liveness
// resets to normal (recovery from suspect/dead) and its protocol info
// is refreshed from the handshake response.
func (t *Table) RecordHeartbeat(id NodeID, proto ProtocolInfo, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	n.LastHeartbeat = now
	n.Liveness = LivenessNormal
	n.Protocol = proto
	n.Incompatible = !Negotiate(LocalProtocolInfo(nil), proto)
}

// SetDrain transitions id between normal/draining/drained
// (spec.md §4.10's "Drain" administrative primitive).
func (t *Table) SetDrain(id NodeID, state DrainState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.nodes[id]
	if !ok {
		return false
	}
	n.Drain = state
	return true
}

// sweepLiveness advances every peer's liveness state given the
// interval-derived suspect/dead thresholds, per spec.md §4.10: three
// missed heartbeats -> suspect, then a further timeout without
// recovery -> dead. A heartbeat interval of hbInterval means three
// missed heartbeats have elapsed once suspectAfter has passed since
// last-heartbeat; deadAfter is measured the same way from
// last-heartbeat, not from entry into suspect, matching
// ClusterConfig's independent SuspectAfter/DeadAfter durations.
func (t *Table) sweepLiveness(now time.Time, suspectAfter, deadAfter time.Duration) []Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	var changed []Node
	for id, n := range t.nodes {
		if id == t.self || n.Liveness == LivenessRemoved {
			continue
		}
		if n.LastHeartbeat.IsZero() {
			continue
		}
		since := now.Sub(n.LastHeartbeat)
		next := n.Liveness
		switch {
		case since >= deadAfter:
			next = LivenessDead
		case since >= suspectAfter:
			next = LivenessSuspect
		default:
			next = LivenessNormal
		}
		if next != n.Liveness {
			n.Liveness = next
			changed = append(changed, *n)
		}
	}
	return changed
}

// contextDiscover adapts a Discoverer call with its own timeout so a
// stalled discovery mechanism can't block a liveness sweep tick
// indefinitely.
func contextDiscover(ctx context.Context, d Discoverer, timeout time.Duration) ([]PeerAddr, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Discover(ctx)
}
