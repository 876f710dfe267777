// Package main is the reportqa CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/reportqa/internal/chart"
	"github.com/hyperjump/reportqa/internal/cli"
	"github.com/hyperjump/reportqa/internal/config"
	"github.com/hyperjump/reportqa/internal/embedding"
	"github.com/hyperjump/reportqa/internal/extract"
	"github.com/hyperjump/reportqa/internal/figure"
	"github.com/hyperjump/reportqa/internal/indexer"
	"github.com/hyperjump/reportqa/internal/keyword"
	"github.com/hyperjump/reportqa/internal/models"
	"github.com/hyperjump/reportqa/internal/objectstore"
	"github.com/hyperjump/reportqa/internal/provider"
	"github.com/hyperjump/reportqa/internal/search"
	"github.com/hyperjump/reportqa/internal/server"
	"github.com/hyperjump/reportqa/internal/storage"
	"github.com/hyperjump/reportqa/internal/synth"
	"github.com/hyperjump/reportqa/internal/watcher"
	"github.com/hyperjump/reportqa/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/reportqa/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory takes precedence if it exists.
// Returns the config and the path that was actually loaded.
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
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "figures":
		runReportView("figures")
	case "data":
		runReportView("data")
	case "search":
		runSearch()
	case "delete":
		runDelete()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("reportqa version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (ingestion, inbox changes, provider calls)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	exts := cfg.Watch.Extensions
	inbox := watcher.New(
		cfg.Watch.Directories,
		exts,
		cfg.Watch.RecursiveOrDefault(),
		watcher.NewIngestSink(components.Indexer, exts, logger),
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := inbox.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start inbox watcher", zap.Error(err))
	}
	go inbox.SyncExisting()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		cfg,
		logger,
		server.WithFiles(components.Objects.Handler()),
		server.WithKeywordIndex(components.KeywordIndex),
		server.WithWatch(inbox, resolvedConfigPath),
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
	watchCancel()
	inbox.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	reportID := fs.String("report-id", "", "report id for a single file (default: derived from the file path)")
	force := fs.Bool("force", false, "re-ingest files that have not changed")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: reportqa ingest [flags] <file-or-directory>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	path := fs.Arg(0)

	cfg, components, cleanup := openComponents(*configPath, true)
	defer cleanup()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fatalf("Failed to stat path: %v", err)
	}
	if info.IsDir() {
		n, err := components.Indexer.IngestDirectory(ctx, path, cfg.Watch.Extensions, *force)
		if err != nil {
			fatalf("Ingesting directory failed: %v", err)
		}
		fmt.Printf("Ingested %d file(s) from %s\n", n, path)
		return
	}

	var res *models.IngestResult
	if *reportID != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			fatalf("Failed to read file: %v", err)
		}
		res, err = components.Indexer.Ingest(ctx, *reportID, models.Document{
			Name:        filepath.Base(path),
			ContentType: extract.ContentTypeForPath(path),
			Content:     content,
		})
		if err != nil {
			fatalf("Ingestion failed: %v", err)
		}
	} else {
		// Single file: no extension filter
		res, err = components.Indexer.IngestFile(ctx, path, nil, *force)
		if err != nil {
			fatalf("Ingestion failed: %v", err)
		}
	}
	if err := cli.WriteIngestResult(os.Stdout, res, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// buildQuery joins positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// serverURLFromConfig returns the public base URL of the configured server,
// or the local default when the config cannot be loaded.
func serverURLFromConfig(path string) string {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Server.PublicBaseURL == "" {
		return defaultServerURL
	}
	return cfg.Server.PublicBaseURL
}

// argsReorder moves flags that appear after positional arguments to the front
// so that flag.Parse sees them. The flag package stops at the first non-flag.
func argsReorder(args []string) []string {
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
	args := argsReorder(os.Args[2:])
	defaultServer := serverURLFromConfig(configPathFromArgs(args, defaultConfigPath))

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServer, "server URL (empty = answer directly from local storage)")
	reportID := fs.String("report-id", "", "report to ask about")
	fileURL := fs.String("url", "", "URL of the original file when the report has no stored chunks")
	name := fs.String("name", "", "report name used in prompts and chart titles")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Println("Usage: reportqa ask [flags] --report-id <id> <question>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	req := &models.AnswerRequest{ReportID: *reportID, Question: question, Name: *name, URL: *fileURL}

	var resp *models.AnswerResponse
	if *serverURL != "" {
		resp = &models.AnswerResponse{}
		err = apiCall(http.MethodPost, *serverURL+"/api/v1/answer", req, resp)
	} else {
		_, components, cleanup := openComponents(*configPath, true)
		defer cleanup()
		resp, err = components.Engine.Answer(context.Background(), req)
	}
	if err != nil {
		fatalf("Ask failed: %v", err)
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// runReportView prints the figures or data view of one report.
func runReportView(view string) {
	args := argsReorder(os.Args[2:])
	defaultServer := serverURLFromConfig(configPathFromArgs(args, defaultConfigPath))

	fs := flag.NewFlagSet(view, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServer, "server URL (empty = read local storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Printf("Usage: reportqa %s [flags] <report-id>\n", view)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}
	reportID := fs.Arg(0)

	var engine *search.Engine
	if *serverURL == "" {
		_, components, cleanup := openComponents(*configPath, false)
		defer cleanup()
		engine = components.Engine
	}
	ctx := context.Background()

	switch view {
	case "figures":
		var res *search.FiguresResult
		if engine != nil {
			res, err = engine.Figures(ctx, reportID)
		} else {
			res = &search.FiguresResult{}
			err = apiCall(http.MethodGet, *serverURL+"/api/v1/reports/"+url.PathEscape(reportID)+"/figures", nil, res)
		}
		if err != nil {
			fatalf("Figures failed: %v", err)
		}
		err = cli.WriteFigures(os.Stdout, res, format)
	default:
		var metrics models.ReportMetrics
		if engine != nil {
			metrics, err = engine.Metrics(ctx, reportID)
		} else {
			var out struct {
				Metrics models.ReportMetrics `json:"metrics"`
			}
			err = apiCall(http.MethodGet, *serverURL+"/api/v1/reports/"+url.PathEscape(reportID)+"/data", nil, &out)
			metrics = out.Metrics
		}
		if err != nil {
			fatalf("Data failed: %v", err)
		}
		err = cli.WriteMetrics(os.Stdout, metrics, format)
	}
	if err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSearch() {
	args := argsReorder(os.Args[2:])
	defaultServer := serverURLFromConfig(configPathFromArgs(args, defaultConfigPath))

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServer, "server URL (empty = use the local catalog)")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Int("fuzzy", 0, "edit distance for typo tolerance (0 disables)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Println("Usage: reportqa search [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var hits []search.ReportHit
	if *serverURL != "" {
		v := url.Values{}
		v.Set("q", query)
		v.Set("limit", strconv.Itoa(*limit))
		if *fuzzy > 0 {
			v.Set("fuzzy", strconv.Itoa(*fuzzy))
		}
		var out struct {
			Results []search.ReportHit `json:"results"`
		}
		err = apiCall(http.MethodGet, *serverURL+"/api/v1/reports/search?"+v.Encode(), nil, &out)
		hits = out.Results
	} else {
		_, components, cleanup := openComponents(*configPath, false)
		defer cleanup()
		hits, err = components.Engine.SearchReports(context.Background(), query, *limit,
			&keyword.SearchOptions{NameBoost: 2, Fuzziness: *fuzzy})
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteReportHits(os.Stdout, hits, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Reports        int64                  `json:"reports"`
	Chunks         int64                  `json:"chunks"`
	CatalogSize    *uint64                `json:"catalog_size,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fatalf("%v", err)
	}

	var status statusResponse
	if *serverURL != "" {
		if err := apiCall(http.MethodGet, *serverURL+"/api/v1/status", nil, &status); err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, components, cleanup := openComponents(*configPath, false)
		defer cleanup()
		ctx := context.Background()
		if status.Reports, err = components.Storage.CountReports(ctx); err != nil {
			fatalf("Count reports failed: %v", err)
		}
		if status.Chunks, err = components.Storage.CountChunks(ctx); err != nil {
			fatalf("Count chunks failed: %v", err)
		}
		if n, err := components.KeywordIndex.DocCount(); err == nil {
			status.CatalogSize = &n
		}
		status.Config = map[string]interface{}{
			"embedding_model":   cfg.OpenAI.EmbeddingModel,
			"chat_model":        cfg.OpenAI.ChatModel,
			"chunk_size":        cfg.Chunking.Size,
			"chunk_overlap":     cfg.Chunking.Overlap,
			"top_n":             cfg.Retrieval.TopN,
			"database_path":     cfg.Storage.DatabasePath,
			"bleve_index_path":  cfg.Storage.BleveIndexPath,
			"object_store_path": cfg.Storage.ObjectStorePath,
		}
		diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath, cfg.Storage.ObjectStorePath)
		if err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}
	fmt.Printf("reports:            %d   # count of ingested reports\n", status.Reports)
	fmt.Printf("chunks:             %d   # count of stored chunks\n", status.Chunks)
	if status.CatalogSize != nil {
		fmt.Printf("catalog_size:       %d   # reports in the keyword catalog\n", *status.CatalogSize)
	}
	if status.DiskUsageBytes != nil {
		fmt.Printf("disk_usage_bytes:   %d   # database + catalog + originals on disk\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Println()
		fmt.Println("# configuration")
		for _, k := range []string{"embedding_model", "chat_model", "chunk_size", "chunk_overlap", "top_n",
			"database_path", "bleve_index_path", "object_store_path"} {
			if v, ok := status.Config[k]; ok {
				fmt.Printf("%-19s %v\n", k+":", v)
			}
		}
	}
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: reportqa watch <add|remove|list> [path]")
		fmt.Println("  reportqa watch add <path>     Add an inbox directory")
		fmt.Println("  reportqa watch remove <path>  Remove an inbox directory")
		fmt.Println("  reportqa watch list           List inbox directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noSync := fs.Bool("no-sync", false, "do not ingest files already in the directory")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	endpoint := *serverURL + "/api/v1/watch/directories"

	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fatalf("Usage: reportqa watch add <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body := map[string]interface{}{"path": path, "sync": !*noSync}
		if err := apiCall(http.MethodPost, endpoint, body, nil); err != nil {
			fatalf("Add failed: %v", err)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fatalf("Usage: reportqa watch remove <path>")
		}
		path, _ := filepath.Abs(fs.Arg(0))
		if err := apiCall(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil, nil); err != nil {
			fatalf("Remove failed: %v", err)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := apiCall(http.MethodGet, endpoint, nil, &out); err != nil {
			fatalf("List failed: %v", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fatalf("Unknown watch subcommand: %s", sub)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: reportqa delete [flags] <report-id>")
		os.Exit(1)
	}
	reportID := fs.Arg(0)

	_, components, cleanup := openComponents(*configPath, false)
	defer cleanup()

	if err := components.Indexer.DeleteReport(context.Background(), reportID); err != nil {
		fatalf("Deletion failed: %v", err)
	}
	fmt.Printf("Report deleted: %s\n", reportID)
}

// apiCall sends body as JSON and decodes a 2xx response into out.
// Error responses surface the server's error message.
func apiCall(method, endpoint string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, endpoint, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// openComponents loads config and initializes components for a one-shot command.
// It exits the process on failure.
func openComponents(configPath string, needProvider bool) (*config.Config, *Components, func()) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(cfg, logger, needProvider)
	if err != nil {
		_ = logger.Sync()
		fatalf("Failed to initialize: %v", err)
	}
	return cfg, components, func() {
		components.Close()
		_ = logger.Sync()
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	KeywordIndex keyword.ReportIndex
	Objects      *objectstore.DiskStore
	Engine       *search.Engine
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

// initializeComponents wires storage, catalog, object store, provider clients, and
// pipelines from cfg. Commands that never call the provider pass needProvider=false
// and run without an API key.
func initializeComponents(cfg *config.Config, logger *zap.Logger, needProvider bool) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chunker, err := indexer.NewChunker(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}

	var embedder embedding.Embedder
	var completer synth.Completer
	client, err := provider.NewClient(provider.Config{
		APIKey:  cfg.OpenAI.APIKey(),
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: cfg.OpenAI.Timeout(),
	})
	switch {
	case err == nil:
		embedder = embedding.NewCachedEmbedder(embedding.NewOpenAIEmbedder(client,
			embedding.WithModel(cfg.OpenAI.EmbeddingModel, cfg.OpenAI.Dimensions),
			embedding.WithBatchSize(cfg.OpenAI.BatchSize),
			embedding.WithTimeout(cfg.OpenAI.Timeout()),
			embedding.WithLogger(logger),
		), cfg.Embedding.CacheSize)
		completer = synth.NewOpenAICompleter(client,
			synth.WithModel(cfg.OpenAI.ChatModel, cfg.OpenAI.TemperatureOrDefault()),
			synth.WithTimeout(cfg.OpenAI.Timeout()),
		)
	case needProvider:
		return nil, fmt.Errorf("%w (set %s)", err, cfg.OpenAI.APIKeyEnv)
	default:
		logger.Debug("provider not configured; running offline", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.OpenAI.Dimensions)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath,
		storage.WithLogger(logger),
		storage.WithBatchSizes(cfg.Persist.ChunkBatchSize, cfg.Persist.FigureBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	objects, err := objectstore.NewDiskStore(cfg.Storage.ObjectStorePath, cfg.Server.PublicBaseURL,
		objectstore.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		_ = keywordIndex.Close()
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}

	extractor := extract.NewExtractor(extract.WithLogger(logger))
	engine := search.NewEngine(store, embedder, chunker, extractor,
		synth.NewSynthesizer(completer, synth.WithLogger(logger)),
		search.WithLogger(logger),
		search.WithTopN(cfg.Retrieval.TopN),
		search.WithChartBuilder(chart.NewBuilder()),
		search.WithKeywordIndex(keywordIndex),
		search.WithObjectStore(objects),
	)
	idx := indexer.NewIndexer(store, embedder, chunker, extractor,
		indexer.WithLogger(logger),
		indexer.WithKeywordIndex(keywordIndex),
		indexer.WithObjectStore(objects),
		indexer.WithDetector(figure.NewDetector(figure.WithLogger(logger))),
	)

	return &Components{
		Storage:      store,
		Embedder:     embedder,
		KeywordIndex: keywordIndex,
		Objects:      objects,
		Engine:       engine,
		Indexer:      idx,
	}, nil
}

func printUsage() {
	fmt.Println(`reportqa - Ask questions about business reports

Usage:
  reportqa server [flags]                 Start the HTTP server and inbox watcher
  reportqa ingest [flags] <path>          Ingest a report file or directory
  reportqa ask [flags] <question>         Ask a question about a report
  reportqa figures [flags] <report-id>    Show the key figures of a report
  reportqa data [flags] <report-id>       Show top terms and chunk lengths
  reportqa search [flags] <query>         Find reports by name or content
  reportqa delete [flags] <report-id>     Delete a report
  reportqa status [flags]                 Show storage and catalog status
  reportqa watch <add|remove|list>        Manage inbox directories
  reportqa version                        Show version
  reportqa help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/reportqa/config.yaml,
                     or ./config.yaml when present)
  --server string    Server URL for ask, figures, data, search, status, and watch.
                     Use --server "" to work on local storage when the server is not running.
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Ingest Flags:
  --report-id string Report id for a single file (default: derived from the path)
  --force            Re-ingest files that have not changed

Ask Flags:
  --report-id string Report to ask about
  --url string       URL of the original file when the report has no stored chunks
  --name string      Report name used in prompts and chart titles

Search Flags:
  --limit int        Number of results (default: 10)
  --fuzzy int        Edit distance for typo tolerance (default: 0)

The OpenAI API key is read from the variable named by openai.api_key_env
(default OPENAI_API_KEY); a .env file in the working directory is loaded first.

Examples:
  reportqa server
  reportqa ingest ./reports
  reportqa ingest --report-id q3 Q3-2024.pdf
  reportqa ask --report-id q3 "How did revenue change year over year?"
  reportqa ask --report-id q3 "show a pie chart of the top terms"
  reportqa figures q3
  reportqa search --fuzzy 1 "anual revenue"
  reportqa watch add ~/inbox`)
}
