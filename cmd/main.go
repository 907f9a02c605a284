package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/lineagesync/internal/data/graph"
	"github.com/yungbote/lineagesync/internal/lineage"
	"github.com/yungbote/lineagesync/internal/manifest"
	"github.com/yungbote/lineagesync/internal/platform/envutil"
	"github.com/yungbote/lineagesync/internal/platform/logger"
	"github.com/yungbote/lineagesync/internal/platform/neo4jdb"
	"github.com/yungbote/lineagesync/internal/platform/neptune"
	"github.com/yungbote/lineagesync/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Env
	log.Info("Loading environment variables from main...")
	dataDir := envutil.Str("LINEAGE_DATA_PATH", "data")
	reportDir := envutil.Str("LINEAGE_REPORT_PATH", dataDir)
	backend := envutil.Str("GRAPH_BACKEND", "neptune")
	syncCfg := services.SyncConfig{
		BatchSize:   envutil.Int("LINEAGE_BATCH_SIZE", 0),
		Concurrency: envutil.Int("LINEAGE_CONCURRENCY", 0),
		BatchPause:  envutil.Duration("LINEAGE_BATCH_PAUSE", 0),
	}

	// Manifests
	log.Info("Loading source manifests from main...", "dir", dataDir)
	reader := manifest.NewReader(log)
	sources, err := reader.LoadDir(dataDir)
	if err != nil {
		log.Fatal("Manifest load failed", "error", err)
	}

	// Merge
	merger := lineage.NewMerger(log)
	merged, flows, err := merger.Merge(sources)
	if err != nil {
		log.Fatal("Lineage merge failed", "error", err)
	}

	// Reports land before the write phase so the analysis survives a failed run.
	log.Info("Writing analysis reports from main...")
	reportSvc, err := services.NewReportService(reportDir, log)
	if err != nil {
		log.Fatal("Report service init failed", "error", err)
	}
	if _, _, err := reportSvc.Write(merged, flows); err != nil {
		log.Fatal("Report write failed", "error", err)
	}

	// Graph store
	log.Info("Setting up graph store from main...", "backend", backend)
	var store graph.Store
	var closeStore func()
	switch backend {
	case "neptune":
		client, err := neptune.New(ctx, log, neptune.ConfigFromEnv())
		if err != nil {
			log.Fatal("Neptune client init failed", "error", err)
		}
		store, err = graph.NewNeptuneStore(client, log)
		if err != nil {
			log.Fatal("Neptune store init failed", "error", err)
		}
	case "neo4j":
		client, err := neo4jdb.New(ctx, log, neo4jdb.ConfigFromEnv())
		if err != nil {
			log.Fatal("Neo4j client init failed", "error", err)
		}
		closeStore = func() { client.Close(context.Background()) }
		store, err = graph.NewNeo4jStore(client, log)
		if err != nil {
			log.Fatal("Neo4j store init failed", "error", err)
		}
	default:
		log.Fatal("Unknown GRAPH_BACKEND", "backend", backend)
	}
	if closeStore != nil {
		defer closeStore()
	}

	// Sync
	log.Info("Setting up sync service from main...")
	syncSvc, err := services.NewSyncService(store, log, syncCfg)
	if err != nil {
		log.Fatal("Sync service init failed", "error", err)
	}
	stats, unresolved, err := syncSvc.Run(ctx, merged)
	if err != nil {
		log.Fatal("Graph sync failed", "error", err)
	}
	if len(unresolved) > 0 {
		log.Warn("Run finished with unresolved operations", "count", len(unresolved))
	}

	// Verify
	verifySvc, err := services.NewVerifyService(store, log)
	if err != nil {
		log.Fatal("Verify service init failed", "error", err)
	}
	result, err := verifySvc.Verify(ctx, merged)
	if err != nil {
		log.Warn("Verification failed", "error", err)
	} else {
		log.Info("Verification complete",
			"vertices", result.Vertices,
			"edges", result.Edges,
			"cross_system_edges", result.CrossSystemEdges,
		)
	}

	log.Info("Done", "elapsed", stats.Elapsed().Round(time.Millisecond))
}
