package main

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/prism-search/prism/internal/collection"
	"github.com/prism-search/prism/internal/document"
	"github.com/prism-search/prism/internal/federation"
	"github.com/prism-search/prism/internal/hybrid"
)

// localPeer adapts collection.Manager to federation.PeerService — the
// narrow surface a federation.Server dispatches incoming peer RPCs into
// and a federation.Router calls directly for this node's own shard of a
// fan-out (spec.md §4.10's "Federated search"/"Federated index").
type localPeer struct {
	mgr   *collection.Manager
	table *federation.Table
	local federation.ProtocolInfo
}

func newLocalPeer(mgr *collection.Manager, table *federation.Table, local federation.ProtocolInfo) *localPeer {
	return &localPeer{mgr: mgr, table: table, local: local}
}

func (p *localPeer) Heartbeat(req federation.HeartbeatRequest) federation.HeartbeatResponse {
	return federation.HeartbeatResponse{
		From:     p.table.Self(),
		Protocol: p.local,
		Drain:    federation.DrainNormal,
	}
}

func (p *localPeer) Search(req federation.SearchRequest) (federation.SearchResponse, error) {
	resp, err := p.mgr.Search(context.Background(), req.Collection, collection.SearchRequest{
		Query:        req.Query,
		Vector:       req.Vector,
		Strategy:     hybrid.Strategy(req.Strategy),
		RRFK:         req.RRFK,
		TextWeight:   req.TextWeight,
		VectorWeight: req.VectorWeight,
		Limit:        req.Limit,
	})
	if err != nil {
		return federation.SearchResponse{}, err
	}

	hits := make([]federation.SearchHit, len(resp.Hits))
	for i, c := range resp.Hits {
		hits[i] = federation.SearchHit{
			DocID:  c.DocID,
			Score:  c.Score,
			Fields: stringifyFields(c.Fields),
		}
	}
	return federation.SearchResponse{Hits: hits}, nil
}

func (p *localPeer) Index(req federation.IndexRequest) (federation.IndexResponse, error) {
	doc := document.Document{ID: req.DocID, Fields: fieldsFromStrings(req.Fields)}
	if len(req.Vector) > 0 {
		doc.Fields["vector"] = document.Bytes(vectorBytes(req.Vector))
	}
	failed, err := p.mgr.Index(context.Background(), req.Collection, []document.Document{doc})
	if err != nil {
		return federation.IndexResponse{}, err
	}
	return federation.IndexResponse{Indexed: len(failed) == 0}, nil
}

// stringifyFields renders a document's tagged values down to the plain
// string map federation's wire shape carries between peers — the field
// types a receiving node needs (text search terms, facet keys) survive
// as strings; binary/vector fields are carried out of band.
func stringifyFields(fields map[string]document.Value) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if s, ok := v.AsString(); ok {
			out[k] = s
		}
	}
	return out
}

func fieldsFromStrings(fields map[string]string) map[string]document.Value {
	out := make(map[string]document.Value, len(fields))
	for k, v := range fields {
		out[k] = document.String(v)
	}
	return out
}

func vectorBytes(vec []float32) []byte {
	out := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
