package federation

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

type echoPeerService struct{}

func (echoPeerService) Heartbeat(req HeartbeatRequest) HeartbeatResponse {
	return HeartbeatResponse{From: "server", Protocol: req.Protocol, Drain: DrainNormal, SentAt: timestamppb.Now()}
}

func (echoPeerService) Search(req SearchRequest) (SearchResponse, error) {
	return SearchResponse{Hits: []SearchHit{{DocID: "echo:" + req.Collection, Score: 1}}}, nil
}

func (echoPeerService) Index(req IndexRequest) (IndexResponse, error) {
	return IndexResponse{Indexed: req.DocID != ""}, nil
}

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	srv, err := NewServer(echoPeerService{}, TLSConfig{AllowInsecure: true})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve(lis)
	return lis.Addr().String(), srv.Stop
}

func TestServerAndClientRoundTripOverJSONCodec(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialPeer(ctx, "server", addr, TLSConfig{AllowInsecure: true})
	if err != nil {
		t.Fatalf("DialPeer: %v", err)
	}
	defer client.Close()

	hbResp, err := client.Heartbeat(ctx, HeartbeatRequest{From: "client", Protocol: LocalProtocolInfo([]Capability{CapText})})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if hbResp.From != "server" {
		t.Fatalf("unexpected heartbeat response: %+v", hbResp)
	}

	searchResp, err := client.Search(ctx, SearchRequest{Collection: "articles"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(searchResp.Hits) != 1 || searchResp.Hits[0].DocID != "echo:articles" {
		t.Fatalf("unexpected search response: %+v", searchResp)
	}

	indexResp, err := client.Index(ctx, IndexRequest{DocID: "doc-1"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if !indexResp.Indexed {
		t.Fatalf("expected Indexed=true, got %+v", indexResp)
	}
}
