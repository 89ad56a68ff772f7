package federation

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// PeerClient is a pooled connection to one peer node, dialed once and
// reused for every RPC (spec.md §4.10's transport requirement:
// "connections are pooled per peer; an idle timeout prunes them" —
// pruning is Pool's responsibility, below).
type PeerClient struct {
	id   NodeID
	conn *grpc.ClientConn
}

// DialPeer opens a connection to a peer at addr, forcing the JSON
// codec so calls match what Server (server.go) expects to decode.
func DialPeer(ctx context.Context, id NodeID, addr string, tlsCfg TLSConfig) (*PeerClient, error) {
	creds, err := tlsCfg.clientCredentials(string(id))
	if err != nil {
		return nil, err
	}
	opts := []grpc.DialOption{grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}))}
	if creds != nil {
		opts = append(opts, grpc.WithTransportCredentials(creds))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &PeerClient{id: id, conn: conn}, nil
}

func (c *PeerClient) Close() error { return c.conn.Close() }

func (c *PeerClient) invoke(ctx context.Context, method string, req, resp any) error {
	return c.conn.Invoke(ctx, fullMethod(method), req, resp)
}

func (c *PeerClient) Heartbeat(ctx context.Context, req HeartbeatRequest) (HeartbeatResponse, error) {
	var resp HeartbeatResponse
	err := c.invoke(ctx, "Heartbeat", &req, &resp)
	return resp, err
}

func (c *PeerClient) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	err := c.invoke(ctx, "Search", &req, &resp)
	return resp, err
}

func (c *PeerClient) Index(ctx context.Context, req IndexRequest) (IndexResponse, error) {
	var resp IndexResponse
	err := c.invoke(ctx, "Index", &req, &resp)
	return resp, err
}

// RetryPolicy builds an exponential backoff for callWithRetry, bounded by
// maxElapsed. Neither Router's federated search/index fan-out nor the
// liveness sweep retries through it: Router makes one call per peer and
// counts a failure as a failed shard, and Heartbeat treats every miss as
// a single data point.
func RetryPolicy(maxElapsed time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = maxElapsed
	return b
}

// callWithRetry runs fn, retrying per policy until it succeeds, policy
// gives up, or ctx is done.
func callWithRetry(ctx context.Context, policy backoff.BackOff, fn func() error) error {
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return fn()
	}, backoff.WithContext(policy, ctx))
}
