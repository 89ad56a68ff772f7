package federation

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeLocal struct {
	hits []SearchHit
}

func (f fakeLocal) Heartbeat(req HeartbeatRequest) HeartbeatResponse { return HeartbeatResponse{} }

func (f fakeLocal) Search(req SearchRequest) (SearchResponse, error) {
	return SearchResponse{Hits: f.hits}, nil
}

func (f fakeLocal) Index(req IndexRequest) (IndexResponse, error) { return IndexResponse{Indexed: true}, nil }

type fakePeer struct {
	hits []SearchHit
	err  error
	hung bool
}

func (f fakePeer) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if f.hung {
		<-ctx.Done()
		return SearchResponse{}, ctx.Err()
	}
	if f.err != nil {
		return SearchResponse{}, f.err
	}
	return SearchResponse{Hits: f.hits}, nil
}

func (f fakePeer) Index(ctx context.Context, req IndexRequest) (IndexResponse, error) {
	if f.err != nil {
		return IndexResponse{}, f.err
	}
	return IndexResponse{Indexed: true}, nil
}

func newTestRouter(t *testing.T, local PeerService, peers map[NodeID]peerSearcher, cfg RouterConfig) *Router {
	t.Helper()
	tbl := NewTable("self")
	for id := range peers {
		tbl.Upsert(Node{ID: id, AdvertiseAddr: string(id), Liveness: LivenessNormal, Drain: DrainNormal})
	}
	r := &Router{
		table: tbl,
		local: local,
		getPeer: func(ctx context.Context, id NodeID, addr string) (peerSearcher, error) {
			p, ok := peers[id]
			if !ok {
				return nil, errors.New("no such peer")
			}
			return p, nil
		},
		cfg: cfg,
	}
	if r.cfg.MinSuccessfulShards <= 0 {
		r.cfg = DefaultRouterConfig()
	}
	return r
}

func TestFederatedSearchMergesAllShardsByScore(t *testing.T) {
	local := fakeLocal{hits: []SearchHit{{DocID: "1", Score: 0.5}}}
	peers := map[NodeID]peerSearcher{
		"b": fakePeer{hits: []SearchHit{{DocID: "2", Score: 0.9}}},
	}
	r := newTestRouter(t, local, peers, RouterConfig{MinSuccessfulShards: 1, PartialResultsTimeout: time.Second})

	result, err := r.FederatedSearch(context.Background(), SearchRequest{Collection: "articles"})
	if err != nil {
		t.Fatalf("FederatedSearch: %v", err)
	}
	if result.IsPartial {
		t.Fatalf("expected a fully successful search to not be partial")
	}
	if len(result.Results) != 2 || result.Results[0].DocID != "2" {
		t.Fatalf("expected results merged and sorted by score, got %+v", result.Results)
	}
	if result.ShardStatus != (ShardStatus{Total: 2, Successful: 2, Failed: 0}) {
		t.Fatalf("unexpected shard status: %+v", result.ShardStatus)
	}
}

func TestFederatedSearchReturnsPartialWhenSomeShardsFail(t *testing.T) {
	local := fakeLocal{hits: []SearchHit{{DocID: "1", Score: 0.5}}}
	peers := map[NodeID]peerSearcher{
		"b": fakePeer{err: errors.New("unreachable")},
	}
	r := newTestRouter(t, local, peers, RouterConfig{MinSuccessfulShards: 1, PartialResultsTimeout: time.Second})

	result, err := r.FederatedSearch(context.Background(), SearchRequest{})
	if err != nil {
		t.Fatalf("FederatedSearch: %v", err)
	}
	if !result.IsPartial {
		t.Fatalf("expected a partially failed search to be marked partial")
	}
	if result.ShardStatus.Failed != 1 || result.ShardStatus.Successful != 1 {
		t.Fatalf("unexpected shard status: %+v", result.ShardStatus)
	}
}

func TestFederatedSearchErrorsBelowMinSuccessfulShards(t *testing.T) {
	local := fakeLocal{hits: []SearchHit{{DocID: "1", Score: 0.5}}}
	peers := map[NodeID]peerSearcher{
		"b": fakePeer{err: errors.New("unreachable")},
		"c": fakePeer{err: errors.New("unreachable")},
	}
	r := newTestRouter(t, local, peers, RouterConfig{MinSuccessfulShards: 3, PartialResultsTimeout: time.Second})

	if _, err := r.FederatedSearch(context.Background(), SearchRequest{}); err == nil {
		t.Fatalf("expected an error when fewer than MinSuccessfulShards succeed")
	}
}

func TestFederatedSearchRespectsPartialResultsTimeout(t *testing.T) {
	local := fakeLocal{hits: []SearchHit{{DocID: "1", Score: 0.5}}}
	peers := map[NodeID]peerSearcher{
		"b": fakePeer{hung: true},
	}
	r := newTestRouter(t, local, peers, RouterConfig{MinSuccessfulShards: 1, PartialResultsTimeout: 20 * time.Millisecond})

	result, err := r.FederatedSearch(context.Background(), SearchRequest{})
	if err != nil {
		t.Fatalf("FederatedSearch: %v", err)
	}
	if !result.IsPartial || result.ShardStatus.Failed != 1 {
		t.Fatalf("expected the hung shard to time out and count as failed, got %+v", result)
	}
}

func TestFederatedIndexRoutesToHomeShardOwner(t *testing.T) {
	local := fakeLocal{}
	var indexedOn NodeID = ""
	peers := map[NodeID]peerSearcher{
		"node-a": recordingPeer{id: "node-a", record: &indexedOn},
		"node-b": recordingPeer{id: "node-b", record: &indexedOn},
	}
	r := newTestRouter(t, local, peers, DefaultRouterConfig())

	assignment := AssignTextShards([]NodeID{"node-a", "node-b"})
	docID := "some-document"
	shard := HomeShard(docID, 2)
	owner, _ := assignment.NodeForShard(shard)

	_, err := r.FederatedIndex(context.Background(), assignment, 2, IndexRequest{DocID: docID})
	if err != nil {
		t.Fatalf("FederatedIndex: %v", err)
	}
	if indexedOn != owner {
		t.Fatalf("expected the document to be indexed on its home shard owner %q, got %q", owner, indexedOn)
	}
}

type recordingPeer struct {
	id     NodeID
	record *NodeID
}

func (p recordingPeer) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	return SearchResponse{}, nil
}

func (p recordingPeer) Index(ctx context.Context, req IndexRequest) (IndexResponse, error) {
	*p.record = p.id
	return IndexResponse{Indexed: true}, nil
}
