package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sctg/renderpool/internal/pool"
	"github.com/sctg/renderpool/internal/renderer"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "renderpool.db"
	defaultMermaidCmd = "mmdc -i /dev/stdin -o /dev/stdout -e svg"

	envListenAddr      = "RENDERPOOL_LISTEN_ADDR"
	envDBPath          = "RENDERPOOL_DB_PATH"
	envLogLevel        = "RENDERPOOL_LOG_LEVEL"
	envPoolSize        = "RENDERPOOL_POOL_SIZE"
	envRenderTimeoutMS = "RENDERPOOL_RENDER_TIMEOUT_MS"
	envSettleMS        = "RENDERPOOL_SETTLE_MS"
	envMermaidCmd      = "RENDERPOOL_MERMAID_CMD"
	envLatexCmd        = "RENDERPOOL_LATEX_CMD"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	DBPath        string
	LogLevel      slog.Level
	PoolSize      int
	RenderTimeout time.Duration
	SettleWindow  time.Duration

	// MermaidCmd and LatexCmd are the argv strings for the exec-backed
	// capabilities. An empty LatexCmd leaves the latex format unregistered.
	MermaidCmd string
	LatexCmd   string
}

// Load reads configuration from environment variables with sensible defaults.
// The pool size is resolved once here and clamped to the safe range.
func Load() Config {
	cfg := Config{
		ListenAddr:    defaultListenAddr,
		DBPath:        defaultDBPath,
		LogLevel:      slog.LevelInfo,
		PoolSize:      pool.DefaultSize,
		RenderTimeout: renderer.DefaultTimeout,
		SettleWindow:  renderer.DefaultSettle,
		MermaidCmd:    defaultMermaidCmd,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envPoolSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PoolSize = clampPoolSize(n)
		}
	}
	if v := os.Getenv(envRenderTimeoutMS); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RenderTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv(envSettleMS); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SettleWindow = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv(envMermaidCmd); v != "" {
		cfg.MermaidCmd = v
	}
	if v := os.Getenv(envLatexCmd); v != "" {
		cfg.LatexCmd = v
	}

	return cfg
}

func clampPoolSize(n int) int {
	if n < pool.MinSize {
		return pool.MinSize
	}
	if n > pool.MaxSize {
		return pool.MaxSize
	}
	return n
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SplitCommand splits a command string into argv on whitespace. Renderer
// commands are operator-supplied, so shell quoting is deliberately not
// supported.
func SplitCommand(s string) []string {
	return strings.Fields(s)
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
