package main

import (
	"log"
	"os"

	"github.com/sctg/renderpool/internal/api"
	"github.com/sctg/renderpool/internal/capability"
	"github.com/sctg/renderpool/internal/capability/cmdrender"
	"github.com/sctg/renderpool/internal/config"
	"github.com/sctg/renderpool/internal/model"
	"github.com/sctg/renderpool/internal/pool"
	"github.com/sctg/renderpool/internal/store"
)

// svgMarker is the structural marker every rendered diagram must contain.
const svgMarker = "<svg"

func main() {
	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("renderpool: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"pool_size", cfg.PoolSize,
	)

	registry, err := store.NewSQLiteRegistry(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer registry.Close()

	caps := capability.NewRegistry()

	mermaid, err := cmdrender.New("mermaid-cli", svgMarker, config.SplitCommand(cfg.MermaidCmd), logger)
	if err != nil {
		log.Fatalf("failed to configure mermaid capability: %v", err)
	}
	caps.Register(model.FormatMermaid, mermaid)

	if cfg.LatexCmd != "" {
		latex, err := cmdrender.New("latex-cli", svgMarker, config.SplitCommand(cfg.LatexCmd), logger)
		if err != nil {
			log.Fatalf("failed to configure latex capability: %v", err)
		}
		caps.Register(model.FormatLatex, latex)
	}

	p := pool.New(pool.Config{
		Size:          cfg.PoolSize,
		RenderTimeout: cfg.RenderTimeout,
		SettleWindow:  cfg.SettleWindow,
	}, registry, caps, logger)
	defer p.Close()

	srv := api.NewServer(cfg.ListenAddr, registry, caps, p, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
