package federation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// RunnerConfig configures the liveness sweep's cadence and thresholds,
// matching internal/config.ClusterConfig's field names so a Runner can
// be built directly from the loaded cluster configuration.
type RunnerConfig struct {
	HeartbeatInterval time.Duration
	SuspectAfter      time.Duration
	DeadAfter         time.Duration
	MaxConcurrentRPCs int
}

// DefaultRunnerConfig mirrors internal/config.ClusterConfig's applied
// defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		HeartbeatInterval: 2 * time.Second,
		SuspectAfter:      6 * time.Second,
		DeadAfter:         30 * time.Second,
		MaxConcurrentRPCs: 8,
	}
}

// Runner drives the periodic discovery-reconcile + heartbeat +
// liveness-sweep loop (spec.md §4.10's "Liveness": "periodic
// heartbeats; three missed heartbeats mark a node suspect; after a
// timeout without recovery, dead"). Its Start/Stop/ticker/WaitGroup
// shape follows internal/heartbeat.Runner and the task scheduler's
// poll loop: a ticker drives ticks on a background goroutine, bounded
// by a semaphore so a slow/unreachable peer can't stall the whole
// sweep, and Stop cancels the loop's context and waits for the
// in-flight tick to finish.
type Runner struct {
	table      *Table
	pool       *Pool
	discoverer Discoverer
	local      ProtocolInfo
	cfg        RunnerConfig
	log        *slog.Logger
	onChange   func(Node)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner builds a Runner. onChange, if non-nil, is invoked for
// every node whose liveness state changes on a sweep (suitable for
// audit logging or metrics); it may be called concurrently with itself
// across ticks only if a previous tick is still finishing as the next
// begins, which Stop's wait on wg prevents at shutdown.
func NewRunner(table *Table, pool *Pool, discoverer Discoverer, local ProtocolInfo, cfg RunnerConfig, log *slog.Logger, onChange func(Node)) *Runner {
	if cfg.HeartbeatInterval <= 0 {
		cfg = DefaultRunnerConfig()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{table: table, pool: pool, discoverer: discoverer, local: local, cfg: cfg, log: log, onChange: onChange}
}

// Start begins the background sweep loop. It is a no-op if already
// running.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(loopCtx)
}

// Stop cancels the sweep loop and waits for its current tick to
// finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick runs one discovery-reconcile + heartbeat-fanout + liveness-sweep
// pass. Peer RPCs run with bounded concurrency so one unreachable peer
// doesn't delay heartbeats to the rest of the cluster past the tick
// interval.
func (r *Runner) tick(ctx context.Context) {
	if r.discoverer != nil {
		peers, err := contextDiscover(ctx, r.discoverer, r.cfg.HeartbeatInterval)
		if err != nil {
			r.log.Warn("federation discovery failed", "error", err)
		} else {
			r.table.Reconcile(peers)
		}
	}

	peers := r.table.Peers()
	sem := make(chan struct{}, max(1, r.cfg.MaxConcurrentRPCs))
	var wg sync.WaitGroup
	for _, n := range peers {
		n := n
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.heartbeatOne(ctx, n)
		}()
	}
	wg.Wait()

	changed := r.table.sweepLiveness(time.Now(), r.cfg.SuspectAfter, r.cfg.DeadAfter)
	for _, n := range changed {
		r.log.Info("federation peer liveness changed", "node", n.ID, "liveness", n.Liveness)
		if r.onChange != nil {
			r.onChange(n)
		}
	}
}

func (r *Runner) heartbeatOne(ctx context.Context, n Node) {
	hbCtx, cancel := context.WithTimeout(ctx, r.cfg.HeartbeatInterval)
	defer cancel()

	client, err := r.pool.Get(hbCtx, n.ID, n.AdvertiseAddr)
	if err != nil {
		r.log.Debug("federation heartbeat dial failed", "node", n.ID, "error", err)
		return
	}
	resp, err := client.Heartbeat(hbCtx, HeartbeatRequest{From: r.table.Self(), Protocol: r.local, SentAt: timestamppb.Now()})
	if err != nil {
		r.log.Debug("federation heartbeat failed", "node", n.ID, "error", err)
		return
	}
	r.table.RecordHeartbeat(n.ID, resp.Protocol, time.Now())
	r.table.SetDrain(n.ID, resp.Drain)
}
