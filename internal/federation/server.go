package federation

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// TLSConfig carries the mutual-TLS material spec.md §4.10's transport
// requirement names: "mutual-TLS certificates with SAN verification;
// self-signed allowed only in dev". AllowInsecure exists only so a
// local dev cluster can run without a CA; the zero value requires TLS.
type TLSConfig struct {
	Cert          tls.Certificate
	ClientCAs     *x509.CertPool
	AllowInsecure bool
}

func (c TLSConfig) serverCredentials() (credentials.TransportCredentials, error) {
	if c.AllowInsecure {
		return nil, nil
	}
	if c.ClientCAs == nil {
		return nil, fmt.Errorf("federation: TLS requires ClientCAs for peer SAN verification (set AllowInsecure for dev only)")
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{c.Cert},
		ClientCAs:    c.ClientCAs,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

func (c TLSConfig) clientCredentials(serverName string) (credentials.TransportCredentials, error) {
	if c.AllowInsecure {
		return nil, nil
	}
	if c.ClientCAs == nil {
		return nil, fmt.Errorf("federation: TLS requires a root CA pool to verify the peer's SAN")
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{c.Cert},
		RootCAs:      c.ClientCAs,
		ServerName:   serverName,
		MinVersion:   tls.VersionTLS13,
	}), nil
}

// Server exposes a node's PeerService over grpc to the rest of the
// cluster. One Server per node process; every peer's Router dials in
// as a client against it.
type Server struct {
	grpc *grpc.Server
}

// NewServer builds a Server wired to svc, forcing the JSON codec
// (rpc.go) in place of grpc's default protobuf wire format. extra, if
// given, is appended after the codec/credentials options — the hook a
// node process uses to install its security interceptors (spec.md
// §4.11) around the peer surface.
func NewServer(svc PeerService, tlsCfg TLSConfig, extra ...grpc.ServerOption) (*Server, error) {
	opts := []grpc.ServerOption{grpc.ForceServerCodec(jsonCodec{})}
	creds, err := tlsCfg.serverCredentials()
	if err != nil {
		return nil, err
	}
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}
	opts = append(opts, extra...)
	s := grpc.NewServer(opts...)
	desc := peerServiceDesc(svc)
	s.RegisterService(&desc, svc)
	return &Server{grpc: s}, nil
}

// Serve blocks accepting connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Stop gracefully shuts the server down, letting in-flight RPCs
// finish — the same semantics a draining node relies on (spec.md
// §4.10's Drain: "it continues to serve in-flight requests").
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}
