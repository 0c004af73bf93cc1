// Package main is the Tadoru CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/tadoru/tadoru/internal/cli"
	"github.com/tadoru/tadoru/internal/config"
	"github.com/tadoru/tadoru/internal/embedding"
	"github.com/tadoru/tadoru/internal/indexer"
	"github.com/tadoru/tadoru/internal/models"
	"github.com/tadoru/tadoru/internal/persist"
	"github.com/tadoru/tadoru/internal/search"
	"github.com/tadoru/tadoru/internal/server"
	"github.com/tadoru/tadoru/internal/storage"
	"github.com/tadoru/tadoru/internal/tui"
	"github.com/tadoru/tadoru/internal/vector"
	"github.com/tadoru/tadoru/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tadoru/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists it
// is used. When neither exists, built-in defaults apply.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg, defErr := config.Default()
			if defErr != nil {
				return nil, "", defErr
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "stats":
		runStats()
	case "tui":
		runTUI()
	case "version", "--version", "-v":
		fmt.Printf("tadoru version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (chunking, replacements, saves)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if err := components.Persist.Load(context.Background()); err != nil {
		if errors.Is(err, persist.ErrCorruptState) {
			logger.Fatal("Refusing to start with corrupt state; remove the state directory to rebuild",
				zap.String("state_dir", cfg.Storage.StateDir),
				zap.Error(err))
		}
		logger.Fatal("Failed to load persisted state", zap.Error(err))
	}

	persistCtx, persistCancel := context.WithCancel(context.Background())
	defer persistCancel()
	components.Persist.Start(persistCtx)

	srv := server.NewServer(
		components.Service,
		components.Indexer,
		components.Index,
		components.Storage,
		components.Persist,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if err := components.Persist.Stop(); err != nil {
		logger.Warn("final state save failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tadoru search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  tadoru search rust borrow checker
  tadoru search "rust borrow checker"          # same as above
  tadoru search --top-k 20 sourdough starter
  tadoru search --output json your query       # structured JSON for other apps
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so "tadoru search query
// -top-k 20" would otherwise leave -top-k unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the state directly when the server is not running)")
	topK := fs.Int("top-k", 0, "number of results (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	interactive := fs.Bool("interactive", false, "open the interactive TUI instead of printing once")
	fs.BoolVar(interactive, "i", false, "shorthand for --interactive")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if *interactive {
		launchTUI(*serverURL)
		return
	}

	if fs.NArg() < 1 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	case "compact":
		format = cli.OutputCompact
	default:
		fmt.Printf("Unknown output format %q; use text, compact, or json\n", *outputFormat)
		os.Exit(1)
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids a SQLite lock conflict).
		response, err := searchViaHTTP(*serverURL, queryStr, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Direct state access (when the server is not running).
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()
	if err := components.Persist.Load(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		os.Exit(1)
	}

	response, err := components.Service.Search(context.Background(), queryStr, *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, query string, topK int) (*models.SearchResponse, error) {
	body, err := json.Marshal(&models.SearchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	pageURL := fs.String("url", "", "page URL for the capture (required)")
	title := fs.String("title", "", "page title")
	description := fs.String("description", "", "page description")
	_ = fs.Parse(os.Args[2:])

	if *pageURL == "" {
		fmt.Println("Usage: tadoru index --url <page-url> [flags] [file]")
		fmt.Println("Reads the page text from the file argument, or from stdin when omitted.")
		os.Exit(1)
	}

	var text []byte
	var err error
	if fs.NArg() > 0 {
		text, err = os.ReadFile(fs.Arg(0))
	} else {
		text, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read page text: %v\n", err)
		os.Exit(1)
	}

	req := &models.IndexRequest{
		URL:         *pageURL,
		Title:       *title,
		Description: *description,
		Text:        string(text),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	body, _ := json.Marshal(req)
	resp, err := http.Post(*serverURL+"/index", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Index failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var result models.IndexResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexed %d chunk(s) for %s\n", result.ChunksIndexed, *pageURL)
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Stats failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var stats models.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(&stats); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		cli.WriteStats(os.Stdout, &stats)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runTUI() {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])
	launchTUI(*serverURL)
}

func launchTUI(serverURL string) {
	status := fmt.Sprintf("Connected to %s. Type to search.", serverURL)
	if _, err := http.Get(serverURL + "/health"); err != nil {
		status = fmt.Sprintf("Server at %s not reachable; start it with `tadoru server`.", serverURL)
	}
	searchFn := func(query string, topK int) (*models.SearchResponse, error) {
		return searchViaHTTP(serverURL, query, topK)
	}
	p := tea.NewProgram(tui.New(searchFn, status), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI failed: %v\n", err)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage  storage.Storage
	Embedder embedding.Embedder
	Index    vector.Index
	Indexer  *indexer.Indexer
	Service  *search.Service
	Persist  *persist.Manager
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func newChunker(cfg *config.Config) (indexer.Chunker, error) {
	if cfg.Indexing.Strategy == "sentence" {
		return indexer.NewSentenceChunker(cfg.Indexing.SentencesPerChunk, cfg.Indexing.OverlapSentences)
	}
	return indexer.NewWindowChunker(cfg.Indexing.ChunkSize, cfg.Indexing.ChunkOverlap)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	if err := os.MkdirAll(cfg.Storage.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ollama := embedding.NewOllamaEmbedder(
		cfg.Embedding.BaseURL,
		cfg.Embedding.Model,
		cfg.Embedding.Dimensions,
		time.Duration(cfg.Embedding.TimeoutSecs)*time.Second,
	)
	var embedder embedding.Embedder = ollama
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}
	if cfg.Embedding.MaxConcurrent > 0 {
		embedder = embedding.NewLimitedEmbedder(embedder, cfg.Embedding.MaxConcurrent)
	}

	index, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	chunker, err := newChunker(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	idxOpts := []indexer.Option{}
	if debug && logger != nil {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	if !cfg.Indexing.ReplaceRevisitsOrDefault() {
		idxOpts = append(idxOpts, indexer.WithoutRevisitReplacement())
	}
	idx := indexer.NewIndexer(store, embedder, index, chunker, idxOpts...)

	service := search.NewService(embedder, index, store,
		cfg.Search.DefaultTopK, cfg.Search.MaxTopK, logger)

	pm := persist.NewManager(index, store,
		cfg.Storage.VectorIndexPath(),
		cfg.Indexing.SaveOnIndexOrDefault(),
		time.Duration(cfg.Indexing.SaveIntervalSecs)*time.Second,
		logger,
	)

	return &Components{
		Storage:  store,
		Embedder: embedder,
		Index:    index,
		Indexer:  idx,
		Service:  service,
		Persist:  pm,
	}, nil
}

func printUsage() {
	fmt.Println(`tadoru - Semantic search over your browsing history

Usage:
  tadoru server [flags]           Start the HTTP server
  tadoru search [flags] <query>   Search indexed pages
  tadoru index [flags] [file]     Submit a page capture (text from file or stdin)
  tadoru stats [flags]            Show index statistics
  tadoru tui [flags]              Interactive search against a running server
  tadoru version                  Show version
  tadoru help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/tadoru/config.yaml)
  --debug            Enable debug logging (chunking, replacements, saves)

Search Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to open the state directly.
  --config string    Config file path (for direct mode)
  --top-k int        Number of results (default: server's configured default)
  --output string    Output format: text, compact, or json (default: text)
  -i, --interactive  Open the interactive TUI instead of printing once

Index Flags:
  --server string       Server URL (default: http://localhost:8080)
  --url string          Page URL for the capture (required)
  --title string        Page title
  --description string  Page description

Stats Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  tadoru server
  tadoru search rust borrow checker
  tadoru search --top-k 20 --output json "sourdough starter"
  tadoru index --url https://example.com/post --title "A Post" page.txt
  tadoru stats --output json
  tadoru tui`)
}
