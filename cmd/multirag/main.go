// Package main is the multirag CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
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

	"github.com/rblake2320/multi-agent-rag/internal/assembler"
	"github.com/rblake2320/multi-agent-rag/internal/cli"
	"github.com/rblake2320/multi-agent-rag/internal/config"
	"github.com/rblake2320/multi-agent-rag/internal/embedding"
	"github.com/rblake2320/multi-agent-rag/internal/generation"
	"github.com/rblake2320/multi-agent-rag/internal/ingest"
	"github.com/rblake2320/multi-agent-rag/internal/keyword"
	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/internal/orchestrator"
	"github.com/rblake2320/multi-agent-rag/internal/registry"
	"github.com/rblake2320/multi-agent-rag/internal/retriever"
	"github.com/rblake2320/multi-agent-rag/internal/router"
	"github.com/rblake2320/multi-agent-rag/internal/server"
	"github.com/rblake2320/multi-agent-rag/internal/storage"
	"github.com/rblake2320/multi-agent-rag/internal/vector"
	"github.com/rblake2320/multi-agent-rag/internal/watcher"
	"github.com/rblake2320/multi-agent-rag/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/multirag/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. Returns the config and the path actually loaded.
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "domains":
		runDomains()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("multirag version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging (routing decisions, ingestion, file events)")
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
		zap.Int("domains", len(cfg.Domains)),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close(logger)

	var watchCancel context.CancelFunc
	if cfg.Watch.Enabled {
		watchSvc := newDomainWatcher(cfg, components, logger, debugMode)
		if watchSvc != nil {
			var watchCtx context.Context
			watchCtx, watchCancel = context.WithCancel(context.Background())
			defer watchCancel()
			if err := watchSvc.Start(watchCtx); err != nil {
				logger.Fatal("Failed to start watcher", zap.Error(err))
			}
			watchSvc.SyncExistingFiles()
		}
	}

	srv := server.NewServer(
		components.Orchestrator,
		components.Pipeline,
		components.Registry,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchCancel != nil {
		watchCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newDomainWatcher builds a watcher over every domain with a data_path.
// Returns nil when no domain declares one.
func newDomainWatcher(cfg *config.Config, components *Components, logger *zap.Logger, debug bool) *watcher.Watcher {
	var roots []watcher.Root
	for _, dc := range cfg.Domains {
		if dc.DataPath != "" {
			roots = append(roots, watcher.Root{Domain: dc.Name, Path: dc.DataPath})
		}
	}
	if len(roots) == 0 {
		return nil
	}
	pipe := components.Pipeline
	opts := []watcher.Option{}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	return watcher.New(
		roots,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(domain, path string) {
			if _, err := pipe.IngestPath(context.Background(), domain, path); err != nil {
				logger.Warn("watch ingest failed",
					zap.String("domain", domain), zap.String("path", path), zap.Error(err))
			}
		},
		func(domain, path string) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return
			}
			if err := pipe.RemoveSource(context.Background(), domain, ingest.PathSourceID(abs)); err != nil {
				logger.Warn("watch remove failed",
					zap.String("domain", domain), zap.String("path", path), zap.Error(err))
			}
		},
		opts...,
	)
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves flags appearing after the question to the front so
// flag.Parse sees them; the flag package stops at the first non-flag arg.
func askArgsReorder(args []string) []string {
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

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer locally without a running server)")
	domainHint := fs.String("domain", "", "route to this domain instead of scoring")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(askArgs)

	if fs.NArg() < 1 {
		fmt.Println("Usage: multirag ask [flags] <question>")
		os.Exit(1)
	}
	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Println("Usage: multirag ask [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	if *serverURL != "" {
		answer, err := askViaHTTP(*serverURL, question, *domainHint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Local mode: build the pipeline in-process (avoids the server's
	// SQLite/Bleve locks only when the server is not running).
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
	defer components.Close(logger)

	answer, _, err := components.Orchestrator.Answer(context.Background(), question, *domainHint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL, question, domainHint string) (*models.Answer, error) {
	body, err := json.Marshal(map[string]string{"query": question, "domain": domainHint})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/ask", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Answer *models.Answer `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Answer, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	domain := fs.String("domain", "", "target domain (required)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *domain == "" || fs.NArg() < 1 {
		fmt.Println("Usage: multirag ingest --domain <name> [flags] <file-or-directory>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close(logger)

	report, err := components.Pipeline.IngestPath(context.Background(), *domain, path)
	if err != nil {
		if report != nil {
			_ = cli.WriteReport(os.Stdout, report, format)
		}
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDomains() {
	fs := flag.NewFlagSet("domains", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/domains")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Domains []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Documents   int64  `json:"documents"`
			Chunks      int64  `json:"chunks"`
			Vectors     int    `json:"vectors"`
		} `json:"domains"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	for _, d := range out.Domains {
		fmt.Printf("%-16s %6d docs %8d chunks %8d vectors", d.Name, d.Documents, d.Chunks, d.Vectors)
		if d.Description != "" {
			fmt.Printf("  # %s", d.Description)
		}
		fmt.Println()
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status struct {
		Domains   int   `json:"domains"`
		Documents int64 `json:"documents"`
		Chunks    int64 `json:"chunks"`
		Vectors   int   `json:"vectors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
	case "text":
		fmt.Printf("domains:    %d\n", status.Domains)
		fmt.Printf("documents:  %d\n", status.Documents)
		fmt.Printf("chunks:     %d\n", status.Chunks)
		fmt.Printf("vectors:    %d\n", status.Vectors)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Registry     *registry.Registry
	Embedder     embedding.Embedder
	Generator    generation.Generator
	Pipeline     *ingest.Pipeline
	Orchestrator *orchestrator.Orchestrator

	vectorPaths map[string]string // domain -> vectors.idx path, for save on close
}

// Close persists each domain's vector index and releases all resources.
func (c *Components) Close(logger *zap.Logger) {
	for _, name := range c.Registry.Names() {
		d, err := c.Registry.Get(name)
		if err != nil {
			continue
		}
		if path, ok := c.vectorPaths[name]; ok {
			if err := d.Index.Save(path); err != nil && logger != nil {
				logger.Warn("vector index save failed",
					zap.String("domain", name), zap.String("path", path), zap.Error(err))
			}
		}
	}
	_ = c.Registry.Close()
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	generator, err := generation.New(&cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	reg := registry.New()
	vectorPaths := make(map[string]string, len(cfg.Domains))
	for _, dc := range cfg.Domains {
		dir := filepath.Join(cfg.Storage.BasePath, dc.Name)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create domain directory %s: %w", dir, err)
		}
		store, err := storage.NewSQLiteStorage(dc.Name, filepath.Join(dir, "chunks.db"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage for %q: %w", dc.Name, err)
		}
		idx, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector index for %q: %w", dc.Name, err)
		}
		vectorPath := filepath.Join(dir, "vectors.idx")
		if _, statErr := os.Stat(vectorPath); statErr == nil {
			if loadErr := idx.Load(vectorPath); loadErr != nil && logger != nil {
				logger.Warn("vector index load skipped (re-ingest to rebuild)",
					zap.String("domain", dc.Name), zap.String("path", vectorPath), zap.Error(loadErr))
			}
		}
		keywords, err := keyword.NewBleveIndex(filepath.Join(dir, "keywords.bleve"))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize keyword index for %q: %w", dc.Name, err)
		}
		if err := reg.Register(&registry.Domain{
			Name:        dc.Name,
			Description: dc.Description,
			Index:       idx,
			Store:       store,
			Keywords:    keywords,
		}); err != nil {
			return nil, err
		}
		vectorPaths[dc.Name] = vectorPath
	}
	if logger != nil {
		logger.Info("domains initialized",
			zap.Strings("names", reg.Names()),
			zap.String("embedding_provider", cfg.Embedding.Provider),
			zap.String("generation_provider", cfg.Generation.Provider))
	}

	routingSignal, err := router.NewSignal(cfg.Routing.Signal, embedder)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize routing signal: %w", err)
	}

	var rtOpts []router.Option
	var rvOpts []retriever.Option
	var asOpts []assembler.Option
	var orOpts []orchestrator.Option
	var inOpts []ingest.Option
	if debug && logger != nil {
		rtOpts = append(rtOpts, router.WithLogger(logger))
		rvOpts = append(rvOpts, retriever.WithLogger(logger))
		asOpts = append(asOpts, assembler.WithLogger(logger))
		orOpts = append(orOpts, orchestrator.WithLogger(logger))
		inOpts = append(inOpts, ingest.WithLogger(logger))
	}
	rt := router.New(reg, routingSignal, rtOpts...)
	rv := retriever.New(reg, embedder, rvOpts...)
	as := assembler.New(generator, cfg.Retrieval.ContextBudget, asOpts...)
	orch := orchestrator.New(rt, rv, as,
		cfg.Retrieval.TopK, cfg.Routing.ConfidenceThreshold, cfg.Routing.HedgeCandidates, orOpts...)
	pipe := ingest.New(reg, embedder, &cfg.Ingest, inOpts...)

	return &Components{
		Registry:     reg,
		Embedder:     embedder,
		Generator:    generator,
		Pipeline:     pipe,
		Orchestrator: orch,
		vectorPaths:  vectorPaths,
	}, nil
}

func printUsage() {
	fmt.Println(`multirag - Multi-domain retrieval-augmented answering service

Usage:
  multirag server [flags]                     Start the HTTP server
  multirag ask [flags] <question>             Route a question and answer it
  multirag ingest --domain <name> <path>      Ingest a file or directory
  multirag domains [flags]                    List domains and their sizes
  multirag status [flags]                     Show aggregate index status
  multirag version                            Show version
  multirag help                               Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/multirag/config.yaml)
  --debug            Enable debug logging (routing decisions, ingestion, file events)

Ask Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer locally when the server is not running.
  --domain string    Route to this domain instead of scoring
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --config string    Config file path
  --domain string    Target domain (required)
  --output string    Output format: text or json (default: text)

Examples:
  multirag server
  multirag ask "what is the statute of limitations for fraud?"
  multirag ask --domain code "how do goroutines leak?"
  multirag ask --output json "quarterly revenue drivers"
  multirag ingest --domain legal ./contracts
  multirag domains
  multirag status`)
}
