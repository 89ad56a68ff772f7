package security

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// HealthCheckMethod is exempt from authentication, authorization, and
// audit — spec.md §4.11 scopes the gate to "every non-whitelisted
// request" / "every request (except health checks)".
const HealthCheckMethod = "/grpc.health.v1.Health/Check"

// CollectionScoped is implemented by request messages that name the
// collection an action applies to, so the gate can authorize against it.
// A request type that doesn't implement it is treated as cluster-scoped
// (collection "").
type CollectionScoped interface {
	GateCollection() string
}

// UnaryInterceptor enforces authentication, glob-pattern authorization,
// and per-request audit emission for unary RPCs (spec.md §4.11). auditor
// may be nil, in which case no audit event is emitted (but auth/authz
// still run).
func UnaryInterceptor(gate *Gate, auditor *RequestAuditor, log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod == HealthCheckMethod {
			return handler(ctx, req)
		}
		start := time.Now()
		action := actionForMethod(info.FullMethod)
		collection := collectionOf(req)

		principal, err := gate.Authenticate(bearerHeader(ctx))
		if err != nil {
			auditor.Record(ctx, principal, collection, action, false, "auth.failed", time.Since(start))
			return nil, status.Error(codes.Unauthenticated, "missing or invalid credentials")
		}
		if !Allows(principal, collection, action) {
			auditor.Record(ctx, principal, collection, action, false, "authz.denied", time.Since(start))
			return nil, status.Error(codes.PermissionDenied, "not authorized")
		}
		if !gate.AllowRequest(principal.ID) {
			auditor.Record(ctx, principal, collection, action, false, "ratelimit.exceeded", time.Since(start))
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		resp, err := handler(WithPrincipal(ctx, principal), req)
		if err != nil {
			sanitized := Sanitize(log, err)
			auditor.Record(ctx, principal, collection, action, true, sanitized.Code, time.Since(start))
			return nil, status.Error(grpcCode(sanitized), sanitized.Category)
		}
		auditor.Record(ctx, principal, collection, action, true, "ok", time.Since(start))
		return resp, nil
	}
}

// StreamInterceptor is UnaryInterceptor's streaming-RPC counterpart; it
// gates the call at stream open and attaches the principal to the
// stream's context for the handler's lifetime.
func StreamInterceptor(gate *Gate, auditor *RequestAuditor, log *slog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if info.FullMethod == HealthCheckMethod {
			return handler(srv, stream)
		}
		start := time.Now()
		action := actionForMethod(info.FullMethod)

		principal, err := gate.Authenticate(bearerHeader(stream.Context()))
		if err != nil {
			auditor.Record(stream.Context(), principal, "", action, false, "auth.failed", time.Since(start))
			return status.Error(codes.Unauthenticated, "missing or invalid credentials")
		}
		if !Allows(principal, "", action) {
			auditor.Record(stream.Context(), principal, "", action, false, "authz.denied", time.Since(start))
			return status.Error(codes.PermissionDenied, "not authorized")
		}
		if !gate.AllowRequest(principal.ID) {
			auditor.Record(stream.Context(), principal, "", action, false, "ratelimit.exceeded", time.Since(start))
			return status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}

		err = handler(srv, &principalStream{ServerStream: stream, ctx: WithPrincipal(stream.Context(), principal)})
		if err != nil {
			sanitized := Sanitize(log, err)
			auditor.Record(stream.Context(), principal, "", action, true, sanitized.Code, time.Since(start))
			return status.Error(grpcCode(sanitized), sanitized.Category)
		}
		auditor.Record(stream.Context(), principal, "", action, true, "ok", time.Since(start))
		return nil
	}
}

type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *principalStream) Context() context.Context { return s.ctx }

func bearerHeader(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get("authorization") {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func collectionOf(req any) string {
	if cs, ok := req.(CollectionScoped); ok {
		return cs.GateCollection()
	}
	return ""
}

// actionForMethod derives the authorization action from a gRPC full
// method name ("/package.Service/Method" -> "method").
func actionForMethod(fullMethod string) string {
	i := strings.LastIndex(fullMethod, "/")
	if i < 0 || i == len(fullMethod)-1 {
		return strings.ToLower(fullMethod)
	}
	return strings.ToLower(fullMethod[i+1:])
}

// grpcCode maps a sanitized error's category back to a status code
// coarse enough not to leak which perr.Kind produced it beyond what the
// category string already reveals.
func grpcCode(s SanitizedError) codes.Code {
	switch s.Category {
	case "not found":
		return codes.NotFound
	case "not authorized":
		return codes.PermissionDenied
	case "invalid request":
		return codes.InvalidArgument
	case "conflict":
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}
