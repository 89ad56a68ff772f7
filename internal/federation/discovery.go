package federation

import "context"

// Discoverer is a pluggable mechanism for learning about cluster peers
// (spec.md §4.10: "a pluggable discovery mechanism (static list / DNS
// SRV / gossip)"). Discover returns the current known set of peers;
// Table reconciles it against the existing node table on every
// liveness sweep tick, adding new peers and leaving already-tracked
// ones (and their liveness/drain state) untouched.
type Discoverer interface {
	Discover(ctx context.Context) ([]PeerAddr, error)
}

// PeerAddr is one peer as returned by a Discoverer: just an identity
// and a dial address, before any handshake has happened.
type PeerAddr struct {
	ID            NodeID
	AdvertiseAddr string
}

// StaticDiscoverer implements Discoverer over a fixed configuration
// list, the simplest of the three mechanisms spec.md names and the one
// internal/config.ClusterConfig.Peers already supplies addresses for.
type StaticDiscoverer struct {
	peers []PeerAddr
}

// NewStaticDiscoverer builds a StaticDiscoverer from id->addr pairs.
func NewStaticDiscoverer(peers map[NodeID]string) *StaticDiscoverer {
	list := make([]PeerAddr, 0, len(peers))
	for id, addr := range peers {
		list = append(list, PeerAddr{ID: id, AdvertiseAddr: addr})
	}
	return &StaticDiscoverer{peers: list}
}

func (d *StaticDiscoverer) Discover(ctx context.Context) ([]PeerAddr, error) {
	out := make([]PeerAddr, len(d.peers))
	copy(out, d.peers)
	return out, nil
}
