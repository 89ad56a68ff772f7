package federation

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// The cluster's peer-to-peer RPC surface runs on google.golang.org/grpc
// (spec.md §4.10's transport requirement: "an RPC framework over a
// secure, connection-migration-capable, stream-multiplexed
// transport"). A normal grpc service is generated by protoc from a
// .proto file into a pair of Marshal/Unmarshal-capable message types
// and a ServiceDesc; no .proto file or generated package exists for
// this cluster protocol, and the generator can't be invoked to make
// one. What follows is the same shape protoc-gen-go-grpc would emit —
// a ServiceDesc naming each method, message types carrying the
// payload, wired through a grpc.Codec — authored directly instead of
// generated. It exercises the real grpc.Server/grpc.ClientConn/Invoke
// path exactly as a generated client would; it differs from one only
// in using JSON instead of protobuf wire encoding for the message
// bodies, via jsonCodec below.

// jsonCodec implements encoding.Codec, swapping grpc's default
// protobuf wire format for plain JSON. Installed on both ends with
// grpc.ForceServerCodec / grpc.ForceCodec so the rest of the grpc
// machinery (stream multiplexing, flow control, TLS) is unchanged.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return "json" }

const serviceName = "prism.federation.Peer"

// HeartbeatRequest/HeartbeatResponse implement spec.md §4.10's
// "Protocol negotiation" handshake: each side states its own
// ProtocolInfo and the id it believes it's talking to. SentAt uses
// protobuf's well-known Timestamp message (google.golang.org/protobuf's
// timestamppb) rather than time.Time directly: it's the wire-portable
// {seconds, nanos} representation grpc's own ecosystem standardizes on,
// and its generated struct already carries the right JSON tags for
// jsonCodec to round-trip it with no custom (un)marshaling.
type HeartbeatRequest struct {
	From     NodeID                 `json:"from"`
	Protocol ProtocolInfo           `json:"protocol"`
	SentAt   *timestamppb.Timestamp `json:"sent_at,omitempty"`
}

type HeartbeatResponse struct {
	From     NodeID                 `json:"from"`
	Protocol ProtocolInfo           `json:"protocol"`
	Drain    DrainState             `json:"drain"`
	SentAt   *timestamppb.Timestamp `json:"sent_at,omitempty"`
}

// SearchRequest/SearchResponse carry one federated-search fan-out leg
// (spec.md §4.10's "Federated search").
type SearchRequest struct {
	Collection   string    `json:"collection"`
	Query        string    `json:"query,omitempty"`
	Vector       []float32 `json:"vector,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	RRFK         int       `json:"rrf_k,omitempty"`
	TextWeight   float64   `json:"text_weight,omitempty"`
	VectorWeight float64   `json:"vector_weight,omitempty"`
	Limit        int       `json:"limit,omitempty"`
}

// SearchHit is one document's federated-search result, with stored
// fields JSON-flattened to strings since document.Value's internal
// Kind discriminator isn't itself JSON-serializable.
type SearchHit struct {
	DocID  string            `json:"doc_id"`
	Score  float64           `json:"score"`
	Fields map[string]string `json:"fields,omitempty"`
}

type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}

// IndexRequest/IndexResponse carry one federated-index write
// forwarded to a document's home shard (spec.md §4.10's "Federated
// index").
type IndexRequest struct {
	Collection string            `json:"collection"`
	DocID      string            `json:"doc_id"`
	Fields     map[string]string `json:"fields"`
	Vector     []float32         `json:"vector,omitempty"`
}

type IndexResponse struct {
	Indexed bool `json:"indexed"`
}

// PeerService is the local implementation a Server dispatches RPCs
// into: the node's own collection manager, reached through this
// narrow interface so internal/federation doesn't import
// internal/collection directly and stays testable against a fake.
type PeerService interface {
	Heartbeat(req HeartbeatRequest) HeartbeatResponse
	Search(req SearchRequest) (SearchResponse, error)
	Index(req IndexRequest) (IndexResponse, error)
}

func peerServiceDesc(svc PeerService) grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*PeerService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Heartbeat", Handler: unaryHandler(svc, "Heartbeat")},
			{MethodName: "Search", Handler: unaryHandler(svc, "Search")},
			{MethodName: "Index", Handler: unaryHandler(svc, "Index")},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "federation.proto",
	}
}

// unaryHandler builds a grpc.MethodHandler for one PeerService method
// by name, decoding the request with the installed codec and
// dispatching to the matching Go method — the hand-authored
// equivalent of what protoc-gen-go-grpc emits per rpc declaration.
func unaryHandler(svc PeerService, method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		switch method {
		case "Heartbeat":
			req := new(HeartbeatRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			resp := svc.Heartbeat(*req)
			return &resp, nil
		case "Search":
			req := new(SearchRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			resp, err := svc.Search(*req)
			if err != nil {
				return nil, err
			}
			return &resp, nil
		case "Index":
			req := new(IndexRequest)
			if err := dec(req); err != nil {
				return nil, err
			}
			resp, err := svc.Index(*req)
			if err != nil {
				return nil, err
			}
			return &resp, nil
		default:
			return nil, fmt.Errorf("federation: unknown method %q", method)
		}
	}
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}
