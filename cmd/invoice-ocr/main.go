package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/invoice-ocr/internal/extraction"
	"github.com/zombor/invoice-ocr/internal/invoice"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine
	_ = godotenv.Load()

	fs := ff.NewFlagSet("invoice-ocr")
	var (
		port           = fs.IntLong("port", 8000, "HTTP server port")
		store          = fs.StringLong("store", "postgres", "Invoice store: 'postgres' or 'bolt'")
		databaseURL    = fs.StringLong("database-url", "", "Postgres connection string (or set DATABASE_URL env var)")
		boltPath       = fs.StringLong("bolt-path", "invoices.db", "BoltDB file path when --store=bolt")
		uploadDir      = fs.StringLong("upload-dir", "uploaded_invoices", "Directory uploaded files are written to")
		storageKeys    = fs.StringLong("storage-keys", string(invoice.KeyUnique), "Stored file names: 'unique' (default, uploads never overwrite) or 'original' (keep the uploaded name; a repeated name overwrites the earlier file)")
		cleanupOrphans = fs.BoolLong("cleanup-orphans", "Delete the uploaded file when its row cannot be stored")
		providerName   = fs.StringLong("provider", "gemini", "Model provider: 'gemini', 'ollama' or 'openai'")
		apiKey         = fs.StringLong("api-key", "", "Provider API key (or set API_KEY, GEMINI_API_KEY or OPENAI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl, llama3.2-vision)")
		openaiModel    = fs.StringLong("openai-model", "gpt-4o-mini", "OpenAI-compatible model name")
		openaiBaseURL  = fs.StringLong("openai-base-url", "", "OpenAI-compatible API base URL (optional)")
		timeout        = fs.DurationLong("provider-timeout", 0, "Timeout for one model call (0 = none)")
		rateLimit      = fs.Float64Long("provider-rate", 0, "Maximum model calls per second (0 = unlimited)")
		maxImageEdge   = fs.IntLong("max-image-edge", 0, "Downscale images whose longest edge exceeds this many pixels (0 = never)")
		corsOrigin     = fs.StringLong("cors-origin", "http://localhost:3000", "Allowed CORS origin ('*' for any)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat      = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		_              = fs.StringLong("config", "", "Config file (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("INVOICE_OCR"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Initialize database
	slog.Info("Initializing database...", "store", *store)
	var db invoice.DB
	switch *store {
	case "postgres":
		dsn := firstNonEmpty(*databaseURL, os.Getenv("DATABASE_URL"))
		if dsn == "" {
			slog.Error("Database URL is required. Set --database-url flag or DATABASE_URL environment variable")
			os.Exit(1)
		}
		db, err = invoice.NewPostgresDB(dsn)
	case "bolt":
		db, err = invoice.NewBoltDB(*boltPath)
	default:
		slog.Error("Invalid store type", "type", *store, "valid", "postgres or bolt")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize provider based on type. A missing API key is not fatal; it
	// shows up as a provider failure on the first extraction.
	key := firstNonEmpty(*apiKey, os.Getenv("API_KEY"))
	var provider extraction.Provider
	switch *providerName {
	case "gemini":
		slog.Info("Initializing Gemini provider...", "model", *geminiModel)
		provider, err = extraction.NewGemini(firstNonEmpty(key, os.Getenv("GEMINI_API_KEY")), *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama provider...", "url", *ollamaURL, "model", *ollamaModel)
		provider, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
	case "openai":
		slog.Info("Initializing OpenAI provider...", "model", *openaiModel, "base_url", *openaiBaseURL)
		provider, err = extraction.NewOpenAI(firstNonEmpty(key, os.Getenv("OPENAI_API_KEY")), *openaiModel, *openaiBaseURL)
	default:
		slog.Error("Invalid provider type", "type", *providerName, "valid", "gemini, ollama or openai")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize provider", "provider", *providerName, "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	module, err := extraction.NewModule(provider,
		extraction.WithImageLoader(extraction.ImageLoader{MaxEdge: *maxImageEdge}),
		extraction.WithRateLimit(*rateLimit),
		extraction.WithTimeout(*timeout),
	)
	if err != nil {
		slog.Error("Failed to initialize extraction module", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	keys, err := invoice.ParseKeyStrategy(*storageKeys)
	if err != nil {
		slog.Error("Invalid storage key strategy", "error", err)
		os.Exit(1)
	}
	slog.Info("Initializing storage...", "dir", *uploadDir, "keys", keys)
	storage, err := invoice.NewLocalStorage(*uploadDir, keys)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	invoiceService := invoice.NewService(db, module, storage,
		invoice.WithOrphanCleanup(*cleanupOrphans),
	)

	// Initialize server
	server := invoice.NewServer(invoiceService, invoice.ServerConfig{
		BasicAuth: invoice.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		},
		CORSOrigin: *corsOrigin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

// newLogger builds the process logger from the --log-level and --log-format flags
func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
