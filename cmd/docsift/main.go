// Binary docsift ingests documents into a local retrieval index and queries
// them from the command line.
//
// Usage:
//
//	docsift [-config docsift.toml] ingest <file>...
//	docsift [-config docsift.toml] arxiv <query>
//	docsift [-config docsift.toml] arxiv-ingest <paper-id>
//	docsift [-config docsift.toml] query [-k N] [-scope id,id] <text>
//	docsift [-config docsift.toml] remove <document-id>
//
// The index backend, embedding provider, and chunker parameters come from
// the TOML config (see internal/config). With the memory backend the index
// is snapshotted to disk between runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docsift/docsift"
	"github.com/docsift/docsift/extract"
	"github.com/docsift/docsift/fetch"
	"github.com/docsift/docsift/index/memory"
	"github.com/docsift/docsift/index/postgres"
	"github.com/docsift/docsift/index/sqlite"
	"github.com/docsift/docsift/ingest"
	"github.com/docsift/docsift/internal/config"
	"github.com/docsift/docsift/observer"
	"github.com/docsift/docsift/provider/gemini"
	"github.com/docsift/docsift/provider/openaicompat"
)

func main() {
	log.SetFlags(0)

	configPath := flag.String("config", os.Getenv("DOCSIFT_CONFIG"), "path to TOML config")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := config.Load(*configPath)

	app, cleanup, err := buildApp(ctx, cfg)
	if err != nil {
		log.Fatalf("docsift: %v", err)
	}
	defer cleanup()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if err := app.run(ctx, cmd, args); err != nil {
		log.Fatalf("docsift: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: docsift [-config path] <command> [args]

commands:
  ingest <file>...           extract text from files and index them
  arxiv <query>              search Arxiv and list matching papers
  arxiv-ingest <paper-id>    download an Arxiv paper and index it
  query [-k N] [-scope ids] <text>
                             retrieve the most relevant chunks
  remove <document-id>       drop a document from the index`)
}

// app bundles the wired pipeline for the subcommands. The ingestor and
// retriever are held through the observer interfaces so the instrumented
// wrappers slot in when the observer is enabled.
type app struct {
	cfg       config.Config
	ingestor  observer.Ingestor
	retriever observer.Retriever
	arxiv     *fetch.Client
	snapshot  string // empty = backend is durable, no snapshot handling
}

func buildApp(ctx context.Context, cfg config.Config) (*app, func(), error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cleanup := func() {}

	embedding, err := buildEmbedding(cfg)
	if err != nil {
		return nil, nil, err
	}

	var tracer docsift.Tracer
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		inst, shutdown, err = observer.Init(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("init observer: %w", err)
		}
		embedding = observer.WrapEmbedding(embedding, cfg.Embedding.Model, inst)
		tracer = observer.NewTracer()
		cleanup = func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("observer shutdown failed", "error", err)
			}
		}
	}

	index, snapshot, idxCleanup, err := buildIndex(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	prev := cleanup
	cleanup = func() { idxCleanup(); prev() }

	chunker, err := ingest.NewTokenChunker(
		ingest.WithWindowTokens(cfg.Chunker.WindowTokens),
		ingest.WithOverlapTokens(cfg.Chunker.OverlapTokens),
	)
	if err != nil {
		return nil, nil, err
	}

	ingOpts := []ingest.Option{ingest.WithChunker(chunker), ingest.WithLogger(logger)}
	retOpts := []docsift.RetrieverOption{docsift.WithLogger(logger)}
	if tracer != nil {
		ingOpts = append(ingOpts, ingest.WithTracer(tracer))
		retOpts = append(retOpts, docsift.WithTracer(tracer))
	}

	var ingestor observer.Ingestor = ingest.New(index, embedding, ingOpts...)
	var retriever observer.Retriever = docsift.NewRetriever(index, embedding, retOpts...)
	if inst != nil {
		ingestor = observer.WrapIngestor(ingestor, inst)
		retriever = observer.WrapRetriever(retriever, inst)
	}

	a := &app{
		cfg:       cfg,
		ingestor:  ingestor,
		retriever: retriever,
		arxiv:     fetch.New(),
		snapshot:  snapshot,
	}
	return a, cleanup, nil
}

func buildEmbedding(cfg config.Config) (docsift.EmbeddingProvider, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "gemini":
		var opts []gemini.Option
		if e.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(e.BaseURL))
		}
		return gemini.NewEmbedding(e.APIKey, e.Model, e.Dimensions, opts...), nil
	case "openaicompat":
		var opts []openaicompat.Option
		if e.BaseURL != "" {
			opts = append(opts, openaicompat.WithBaseURL(e.BaseURL))
		}
		return openaicompat.NewEmbedding(e.APIKey, e.Model, e.Dimensions, opts...), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", e.Provider)
	}
}

func buildIndex(ctx context.Context, cfg config.Config, logger *slog.Logger) (docsift.Index, string, func(), error) {
	switch cfg.Index.Backend {
	case "memory":
		return memory.New(cfg.Embedding.Dimensions), cfg.Index.SnapshotPath, func() {}, nil
	case "sqlite":
		ix := sqlite.New(cfg.Index.SQLitePath, sqlite.WithLogger(logger))
		if err := ix.Init(ctx); err != nil {
			return nil, "", nil, fmt.Errorf("init sqlite index: %w", err)
		}
		return ix, "", func() { ix.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Index.PostgresURL)
		if err != nil {
			return nil, "", nil, fmt.Errorf("connect postgres: %w", err)
		}
		ix := postgres.New(pool, postgres.WithDimension(cfg.Embedding.Dimensions))
		if err := ix.Init(ctx); err != nil {
			pool.Close()
			return nil, "", nil, fmt.Errorf("init postgres index: %w", err)
		}
		return ix, "", pool.Close, nil
	default:
		return nil, "", nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	if a.snapshot != "" {
		if err := a.retriever.LoadSnapshot(ctx, a.snapshot); err != nil {
			return err
		}
	}

	switch cmd {
	case "ingest":
		return a.cmdIngest(ctx, args)
	case "arxiv":
		return a.cmdArxiv(ctx, args)
	case "arxiv-ingest":
		return a.cmdArxivIngest(ctx, args)
	case "query":
		return a.cmdQuery(ctx, args)
	case "remove":
		return a.cmdRemove(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// saveSnapshot persists the memory index after a mutating command.
func (a *app) saveSnapshot(ctx context.Context) error {
	if a.snapshot == "" {
		return nil
	}
	return a.retriever.SaveSnapshot(ctx, a.snapshot)
}

func (a *app) cmdIngest(ctx context.Context, files []string) error {
	if len(files) == 0 {
		return fmt.Errorf("ingest: no files given")
	}
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		ct := extract.ContentTypeFromExtension(filepath.Ext(file))
		text, err := extract.ForType(ct).Extract(content)
		if err != nil {
			return fmt.Errorf("extract %s: %w", file, err)
		}

		// The cleaned path is the document id: re-ingesting a file replaces
		// its chunks instead of accumulating a new copy.
		res, err := a.ingestor.Ingest(ctx, docsift.Document{
			ID:      filepath.Clean(file),
			Title:   filepath.Base(file),
			Source:  file,
			Content: text,
		})
		if err != nil {
			return fmt.Errorf("ingest %s: %w", file, err)
		}
		fmt.Printf("%s  %s  chunks=%d embedded=%t\n", res.DocumentID, file, res.ChunkCount, res.Embedded)
	}
	return a.saveSnapshot(ctx)
}

func (a *app) cmdArxiv(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("arxiv: no query given")
	}
	papers, err := a.arxiv.Search(ctx, strings.Join(args, " "), 10)
	if err != nil {
		return err
	}
	for _, p := range papers {
		fmt.Printf("%s  %s  (%s)\n", p.ID, p.Title, p.Published.Format("2006-01-02"))
	}
	return nil
}

func (a *app) cmdArxivIngest(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("arxiv-ingest: exactly one paper id expected")
	}
	paper, err := a.arxiv.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	pdf, err := a.arxiv.DownloadPDF(ctx, paper)
	if err != nil {
		return err
	}
	text, err := extract.PDFExtractor{}.Extract(pdf)
	if err != nil {
		return fmt.Errorf("extract %s: %w", paper.ID, err)
	}

	// The Arxiv id is the document id, so re-ingesting a paper replaces it.
	res, err := a.ingestor.Ingest(ctx, docsift.Document{
		ID:      paper.ID,
		Title:   paper.Title,
		Source:  paper.URL,
		Content: text,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  chunks=%d embedded=%t\n", res.DocumentID, paper.Title, res.ChunkCount, res.Embedded)
	return a.saveSnapshot(ctx)
}

func (a *app) cmdQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	k := fs.Int("k", a.cfg.Retrieval.TopK, "number of results")
	scope := fs.String("scope", "", "comma-separated document ids to search within")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("query: no text given")
	}

	opts := []docsift.QueryOption{docsift.WithTopK(*k)}
	if *scope != "" {
		opts = append(opts, docsift.WithScope(strings.Split(*scope, ",")...))
	}

	results, err := a.retriever.Query(ctx, strings.Join(fs.Args(), " "), opts...)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] %s#%d score=%.4f\n   %s\n",
			i+1, r.Mode, r.Chunk.DocumentID, r.Chunk.Seq, r.Score, preview(r.Chunk.Text, 160))
	}
	return nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("remove: exactly one document id expected")
	}
	if err := a.retriever.RemoveDocument(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return a.saveSnapshot(ctx)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
