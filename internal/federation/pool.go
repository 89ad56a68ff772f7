package federation

import (
	"context"
	"sync"
	"time"
)

// Pool holds one PeerClient per peer, dialing lazily and pruning
// connections that have gone unused past idleTimeout (spec.md §4.10's
// "connections are pooled per peer; an idle timeout prunes them").
type Pool struct {
	tlsCfg      TLSConfig
	idleTimeout time.Duration

	mu      sync.Mutex
	entries map[NodeID]*poolEntry
}

type poolEntry struct {
	client   *PeerClient
	lastUsed time.Time
}

// NewPool creates an empty connection pool.
func NewPool(tlsCfg TLSConfig, idleTimeout time.Duration) *Pool {
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Minute
	}
	return &Pool{tlsCfg: tlsCfg, idleTimeout: idleTimeout, entries: map[NodeID]*poolEntry{}}
}

// Get returns the pooled client for a peer, dialing it on first use.
func (p *Pool) Get(ctx context.Context, id NodeID, addr string) (*PeerClient, error) {
	p.mu.Lock()
	if e, ok := p.entries[id]; ok {
		e.lastUsed = time.Now()
		p.mu.Unlock()
		return e.client, nil
	}
	p.mu.Unlock()

	client, err := DialPeer(ctx, id, addr, p.tlsCfg)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[id]; ok {
		// Lost a race with a concurrent dial; keep the one already
		// stored and close ours.
		_ = client.Close()
		e.lastUsed = time.Now()
		return e.client, nil
	}
	p.entries[id] = &poolEntry{client: client, lastUsed: time.Now()}
	return client, nil
}

// Prune closes and removes every pooled connection idle past the
// pool's idleTimeout.
func (p *Pool) Prune(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, e := range p.entries {
		if now.Sub(e.lastUsed) >= p.idleTimeout {
			_ = e.client.Close()
			delete(p.entries, id)
		}
	}
}

// CloseAll tears down every pooled connection.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, e := range p.entries {
		_ = e.client.Close()
		delete(p.entries, id)
	}
}
