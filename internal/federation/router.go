package federation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prism-search/prism/internal/perr"
)

// ShardStatus reports how many of a collection's shards a federated
// operation reached, matching spec.md §4.10's federated-search
// response shape: shard_status:{total, successful, failed}.
type ShardStatus struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// FederatedSearchResult is a federated search's merged response:
// {results, total, is_partial, shard_status} verbatim from spec.md
// §4.10.
type FederatedSearchResult struct {
	Results     []SearchHit `json:"results"`
	Total       int         `json:"total"`
	IsPartial   bool        `json:"is_partial"`
	ShardStatus ShardStatus `json:"shard_status"`
}

// RouterConfig bounds a federated search per spec.md §4.10: "if fewer
// than min_successful_shards succeed within partial_results_timeout,
// the response is an error; otherwise partial results are served with
// is_partial = true". Field names match internal/config.ClusterConfig
// so a Router can be built directly off the loaded configuration.
type RouterConfig struct {
	MinSuccessfulShards   int
	PartialResultsTimeout time.Duration
}

// DefaultRouterConfig mirrors internal/config.ClusterConfig's applied
// defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{MinSuccessfulShards: 1, PartialResultsTimeout: 5 * time.Second}
}

// peerSearcher is the remote-peer method set Router actually needs —
// *PeerClient's Search/Index, narrowed to an interface so tests can
// substitute an in-process fake instead of dialing real connections.
type peerSearcher interface {
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Index(ctx context.Context, req IndexRequest) (IndexResponse, error)
}

// Router is the federation-wide query/write entry point: it fans a
// request out to every shard of a collection (skipping
// draining/dead/incompatible peers per spec.md §4.10), merges
// results, and routes single-document writes to their home shard.
type Router struct {
	table   *Table
	local   PeerService // this node's own collection manager, reached without an RPC hop
	getPeer func(ctx context.Context, id NodeID, addr string) (peerSearcher, error)
	cfg     RouterConfig
}

// NewRouter builds a Router backed by a real connection pool. local
// answers RPCs against this node's own shard directly (in-process),
// the same way every other shard is answered over the wire by its
// owning node's Server.
func NewRouter(table *Table, pool *Pool, local PeerService, cfg RouterConfig) *Router {
	if cfg.MinSuccessfulShards <= 0 {
		cfg = DefaultRouterConfig()
	}
	getPeer := func(ctx context.Context, id NodeID, addr string) (peerSearcher, error) {
		return pool.Get(ctx, id, addr)
	}
	return &Router{table: table, local: local, getPeer: getPeer, cfg: cfg}
}

type shardOutcome struct {
	hits []SearchHit
	err  error
}

// FederatedSearch implements spec.md §4.10's "Federated search": scatter
// req to every routable shard of the collection (this node's own plus
// every Routable() peer), gather within PartialResultsTimeout, and
// merge by score. Fewer than MinSuccessfulShards successful responses
// is a hard error; otherwise the response carries whatever succeeded,
// with IsPartial set whenever any shard failed or timed out.
func (r *Router) FederatedSearch(ctx context.Context, req SearchRequest) (FederatedSearchResult, error) {
	peers := r.table.Routable()
	total := len(peers) + 1 // +1 for this node's own local shard

	ctx, cancel := context.WithTimeout(ctx, r.cfg.PartialResultsTimeout)
	defer cancel()

	outcomes := make([]shardOutcome, total)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, err := r.local.Search(req)
		outcomes[0] = shardOutcome{hits: resp.Hits, err: err}
	}()

	for i, n := range peers {
		i, n := i+1, n
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := r.getPeer(ctx, n.ID, n.AdvertiseAddr)
			if err != nil {
				outcomes[i] = shardOutcome{err: err}
				return
			}
			resp, err := client.Search(ctx, req)
			outcomes[i] = shardOutcome{hits: resp.Hits, err: err}
		}()
	}
	wg.Wait()

	status := ShardStatus{Total: total}
	var merged []SearchHit
	for _, o := range outcomes {
		if o.err != nil {
			status.Failed++
			continue
		}
		status.Successful++
		merged = append(merged, o.hits...)
	}

	if status.Successful < r.cfg.MinSuccessfulShards {
		return FederatedSearchResult{}, perr.Upstream("federation.insufficient_shards",
			fmt.Errorf("only %d/%d shards succeeded, need at least %d", status.Successful, status.Total, r.cfg.MinSuccessfulShards))
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if req.Limit > 0 && len(merged) > req.Limit {
		merged = merged[:req.Limit]
	}

	result := FederatedSearchResult{
		Results:     merged,
		Total:       len(merged),
		IsPartial:   status.Failed > 0,
		ShardStatus: status,
	}
	return result, nil
}

// FederatedIndex implements spec.md §4.10's "Federated index":
// documents are routed to their home shard by hash(doc_id) mod
// num_shards; the owner node indexes locally.
func (r *Router) FederatedIndex(ctx context.Context, assignment TextShardAssignment, numShards int, req IndexRequest) (IndexResponse, error) {
	shard := HomeShard(req.DocID, numShards)
	owner, ok := assignment.NodeForShard(shard)
	if !ok {
		return IndexResponse{}, perr.Configuration("federation.unassigned_shard",
			"no node is assigned to this document's home shard")
	}
	if owner == r.table.Self() {
		return r.local.Index(req)
	}
	node, ok := r.table.Get(owner)
	if !ok || !node.Routable() {
		return IndexResponse{}, perr.Upstream("federation.owner_unreachable",
			fmt.Errorf("home shard owner %s is not routable", owner))
	}
	client, err := r.getPeer(ctx, owner, node.AdvertiseAddr)
	if err != nil {
		return IndexResponse{}, perr.Upstream("federation.owner_dial_failed", err)
	}
	return client.Index(ctx, req)
}
