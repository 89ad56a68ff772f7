// Package federation implements the multi-node cluster layer: a node
// table populated by a pluggable discovery mechanism, protocol
// negotiation between peers, a liveness state machine driven by
// periodic heartbeats, administrative drain/undrain, and the
// scatter-gather routers for federated search and federated indexing.
//
// A single process is both a peer (it answers RPCs from other nodes
// against its own local shards) and a router (it fans a query or a
// write out to every node that owns a shard of the target
// collection). Table, Router, and Server compose around that: Table
// tracks who else is in the cluster and whether they're healthy,
// Router decides where a request goes, Server is what a peer's Router
// talks to.
package federation

import "time"

// NodeID identifies one cluster member.
type NodeID string

// LivenessState is a node's position in the liveness state machine
// (spec.md §4.10: normal -> suspect -> dead -> removed).
type LivenessState string

const (
	LivenessNormal  LivenessState = "normal"
	LivenessSuspect LivenessState = "suspect"
	LivenessDead    LivenessState = "dead"
	LivenessRemoved LivenessState = "removed"
)

// DrainState is a node's administrative availability for new queries.
//
// spec.md §4.10 names only {normal, draining}. This implementation
// also recognizes a terminal "drained" state — reached once a draining
// node's in-flight requests have all completed — because
// internal/config's ClusterConfig.DrainState already validates against
// a three-value set ("normal"/"draining"/"drained"), and an operator
// driving a rolling upgrade needs a way to observe "draining is done,
// safe to take the process down" rather than polling in-flight request
// counts directly. "drained" behaves identically to "draining" for
// routing purposes (the router skips both); it exists only for
// observability.
type DrainState string

const (
	DrainNormal   DrainState = "normal"
	DrainDraining DrainState = "draining"
	DrainDrained  DrainState = "drained"
)

// Capability names something a node can serve (mirrors the
// capabilities a collection's backends require: "text", "vector",
// "graph").
type Capability string

const (
	CapText   Capability = "text"
	CapVector Capability = "vector"
	CapGraph  Capability = "graph"
)

// ProtocolInfo is what a node advertises about the wire protocol it
// speaks, exchanged at handshake (spec.md §4.10 "Protocol
// negotiation").
type ProtocolInfo struct {
	Version            int      `json:"version"`
	MinSupportedVersion int     `json:"min_supported_version"`
	Capabilities       []string `json:"capabilities"`
}

// CurrentProtocolVersion is this build's protocol version.
const CurrentProtocolVersion = 1

// MinSupportedProtocolVersion is the oldest peer protocol version this
// build still accepts.
const MinSupportedProtocolVersion = 1

// LocalProtocolInfo returns this process's own ProtocolInfo, advertising
// caps.
func LocalProtocolInfo(caps []Capability) ProtocolInfo {
	names := make([]string, len(caps))
	for i, c := range caps {
		names[i] = string(c)
	}
	return ProtocolInfo{
		Version:             CurrentProtocolVersion,
		MinSupportedVersion: MinSupportedProtocolVersion,
		Capabilities:        names,
	}
}

// Node is one entry in the node table: {node-id, advertise-addr,
// protocol-version, capabilities, last-heartbeat, drain-state}
// (spec.md §4.10 "Node table").
type Node struct {
	ID            NodeID        `json:"id"`
	AdvertiseAddr string        `json:"advertise_addr"`
	Protocol      ProtocolInfo  `json:"protocol"`
	Liveness      LivenessState `json:"liveness"`
	Drain         DrainState    `json:"drain"`
	Incompatible  bool          `json:"incompatible"`
	LastHeartbeat time.Time     `json:"last_heartbeat"`
}

// Routable reports whether the router may send this node new queries:
// not dead, not removed, not incompatible, and not draining/drained.
func (n Node) Routable() bool {
	switch n.Liveness {
	case LivenessDead, LivenessRemoved:
		return false
	}
	if n.Incompatible {
		return false
	}
	switch n.Drain {
	case DrainDraining, DrainDrained:
		return false
	}
	return true
}
