// Command prismnode is a single cluster node's process entrypoint: it
// loads configuration, brings up storage, the schema registry, the
// embedding layer, and the collection manager, then exposes the node to
// the rest of the cluster over federation's peer gRPC surface (spec.md
// §4.9, §4.10). It is not a CLI or HTTP surface — prismctl and any REST
// gateway are separate, out of this distillation's scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prism-search/prism/internal/aggregate"
	"github.com/prism-search/prism/internal/audit"
	"github.com/prism-search/prism/internal/collection"
	"github.com/prism-search/prism/internal/config"
	"github.com/prism-search/prism/internal/federation"
	"github.com/prism-search/prism/internal/ingest"
	"github.com/prism-search/prism/internal/security"
	"google.golang.org/grpc"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	configPath := flag.String("config", envOr("PRISM_CONFIG", "prism.yaml"), "path to the node's configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("prismnode exited with error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func run(configPath string, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Logging.Level == "debug" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
		log = slog.Default()
	}
	log.Info("starting prismnode", "version", version, "commit", commit, "node_id", cfg.Cluster.NodeID, "config", configPath)

	store, err := buildStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage backend: %w", err)
	}

	registry, err := collection.NewSchemaRegistry(cfg.Schema.Dir, log)
	if err != nil {
		return fmt.Errorf("loading schema registry: %w", err)
	}
	if cfg.Schema.HotReload {
		stop, err := registry.Watch(ctx)
		if err != nil {
			log.Warn("schema hot-reload disabled", "error", err)
		} else {
			defer stop()
		}
	}

	embedder, err := buildEmbedder(ctx, cfg.Embedding, log)
	if err != nil {
		return fmt.Errorf("building embedding layer: %w", err)
	}

	ingestRegistry, err := ingest.NewRegistry(nil)
	if err != nil {
		return fmt.Errorf("building ingest registry: %w", err)
	}

	mgr := collection.NewManager(collection.ManagerDeps{
		Store:      store,
		Registry:   registry,
		Ingest:     ingestRegistry,
		Embedder:   embedder,
		Aggregator: aggregate.NewEngine(0),
		Log:        log,
	})

	for _, name := range registry.List() {
		if _, err := mgr.LoadCollection(ctx, name); err != nil {
			return fmt.Errorf("loading collection %q: %w", name, err)
		}
		log.Info("collection loaded", "collection", name)
	}

	auditCfg := audit.DefaultConfig()
	auditCfg.Enabled = true
	auditLogger, err := audit.NewLogger(auditCfg)
	if err != nil {
		return fmt.Errorf("starting audit logger: %w", err)
	}
	defer auditLogger.Close()

	gate := security.NewGate(cfg.Auth)
	auditor := security.NewRequestAuditor(auditLogger, mgr, true)

	local := federation.ProtocolInfo{
		Version:             federation.CurrentProtocolVersion,
		MinSupportedVersion: federation.CurrentProtocolVersion,
	}
	table := federation.NewTable(federation.NodeID(cfg.Cluster.NodeID))
	peer := newLocalPeer(mgr, table, local)

	tlsCfg := federation.TLSConfig{AllowInsecure: true}
	srv, err := federation.NewServer(peer, tlsCfg,
		grpc.UnaryInterceptor(security.UnaryInterceptor(gate, auditor, log)),
		grpc.StreamInterceptor(security.StreamInterceptor(gate, auditor, log)),
	)
	if err != nil {
		return fmt.Errorf("building federation server: %w", err)
	}

	if len(cfg.Cluster.Peers) > 0 {
		pool := federation.NewPool(tlsCfg, 5*time.Minute)
		discoverer := federation.NewStaticDiscoverer(staticPeerMap(cfg.Cluster.Peers))
		runner := federation.NewRunner(table, pool, discoverer, local, federation.RunnerConfig{
			HeartbeatInterval: cfg.Cluster.HeartbeatInterval,
			SuspectAfter:      cfg.Cluster.SuspectAfter,
			DeadAfter:         cfg.Cluster.DeadAfter,
		}, log, func(n federation.Node) {
			log.Info("peer liveness changed", "peer", n.ID, "state", n.Liveness)
		})
		runner.Start(ctx)
		defer runner.Stop()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("prismnode serving", "addr", addr)
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("federation server: %w", err)
		}
	}

	log.Info("shutdown signal received, stopping")
	srv.Stop()

	log.Info("prismnode stopped")
	return nil
}

func staticPeerMap(peers []string) map[federation.NodeID]string {
	out := make(map[federation.NodeID]string, len(peers))
	for _, addr := range peers {
		out[federation.NodeID(addr)] = addr
	}
	return out
}
