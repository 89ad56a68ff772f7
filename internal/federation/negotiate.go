package federation

// Negotiate implements spec.md §4.10's handshake rule: a node accepts
// a peer iff the (protocol-version, min-supported-version,
// capabilities) the peer advertises has a non-empty intersection with
// what local requires — concretely, each side's version must fall
// within the other's [min-supported-version, version] window, and the
// capability sets must share at least one member (an empty local
// capability filter is treated as "any capability is acceptable", so a
// pure router process with no local capability preference can
// negotiate with every peer).
func Negotiate(local, peer ProtocolInfo) bool {
	if peer.Version < local.MinSupportedVersion || local.Version < peer.MinSupportedVersion {
		return false
	}
	if len(local.Capabilities) == 0 {
		return true
	}
	want := map[string]struct{}{}
	for _, c := range local.Capabilities {
		want[c] = struct{}{}
	}
	for _, c := range peer.Capabilities {
		if _, ok := want[c]; ok {
			return true
		}
	}
	return false
}
