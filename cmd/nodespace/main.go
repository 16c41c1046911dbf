// Command nodespace wires up the store, the service layer, the embedding
// processor, and the title index into one process and exposes the handler
// surface as a line-delimited JSON RPC loop over stdin/stdout — the thinnest
// possible transport for a local-first client to drive.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/behavior"
	"github.com/nodespace/core/pkg/collection"
	"github.com/nodespace/core/pkg/embedding"
	"github.com/nodespace/core/pkg/eventbus"
	"github.com/nodespace/core/pkg/handlers"
	"github.com/nodespace/core/pkg/migration"
	"github.com/nodespace/core/pkg/nodeservice"
	"github.com/nodespace/core/pkg/schemaservice"
	"github.com/nodespace/core/pkg/titleindex"
)

func main() {
	dbPath := flag.String("db", "nodespace.db", "path to the SQLite database file")
	embedProvider := flag.String("embed-provider", "", "embedding provider: google, openrouter, or empty to disable")
	embedModel := flag.String("embed-model", "", "embedding model name for the selected provider")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(*dbPath, *embedProvider, *embedModel, log); err != nil {
		log.Error("nodespace: fatal error", "error", err)
		os.Exit(1)
	}
}

func run(dbPath, embedProvider, embedModel string, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStoreWithDSN(dbPath)
	if err != nil {
		return fmt.Errorf("nodespace: open store: %w", err)
	}
	defer st.Close()

	nodes := nodeservice.New(st, behavior.NewRegistry(), migration.NewRegistry(), eventbus.New(), log)
	schemas := schemaservice.New(nodes)
	nodes.SetSchemaLookup(schemas)
	coll := collection.New(nodes)

	titles := titleindex.New()
	if err := titles.LoadFromStore(ctx, st); err != nil {
		return fmt.Errorf("nodespace: load title index: %w", err)
	}

	if embedProvider != "" {
		provider, err := embedding.NewProvider(embeddingConfig(embedProvider, embedModel))
		if err != nil {
			return fmt.Errorf("nodespace: configure embedding provider: %w", err)
		}
		processor := embedding.NewProcessor(st, provider, log)
		nodes.SetEmbeddingWaker(processor)
		go func() {
			if err := processor.Run(ctx); err != nil {
				log.Error("nodespace: embedding processor stopped", "error", err)
			}
		}()
	}

	d := handlers.New(nodes, schemas, coll, titles)
	return serveStdio(ctx, d, log)
}

func embeddingConfig(provider, model string) embedding.Config {
	switch embedding.ProviderKind(provider) {
	case embedding.ProviderGoogle:
		return embedding.Config{Provider: embedding.ProviderGoogle, GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"), GoogleModel: model}
	case embedding.ProviderOpenRouter:
		return embedding.Config{Provider: embedding.ProviderOpenRouter, OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"), OpenRouterModel: model}
	default:
		return embedding.Config{Provider: embedding.ProviderKind(provider)}
	}
}

// request is one line of the stdio protocol: {"op": "...", "params": {...}}.
type request struct {
	ID     int             `json:"id"`
	Op     string          `json:"op"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	ID     int            `json:"id"`
	Result map[string]any `json:"result,omitempty"`
	Error  *handlers.Error `json:"error,omitempty"`
}

// serveStdio reads one JSON request per line from stdin and writes one JSON
// response per line to stdout, until ctx is canceled or stdin closes. This
// is the local-first equivalent of a request/response transport: no
// framing beyond newlines, since both ends run on the same machine.
func serveStdio(ctx context.Context, d *handlers.Dispatcher, log *slog.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	enc := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn("nodespace: malformed request", "error", err)
			continue
		}

		var params handlers.Params
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				_ = enc.Encode(response{ID: req.ID, Error: &handlers.Error{Code: "invalid_properties", Message: "params must be a JSON object"}})
				continue
			}
		}

		result, herr := d.Dispatch(ctx, req.Op, params)
		if err := enc.Encode(response{ID: req.ID, Result: result, Error: herr}); err != nil {
			return fmt.Errorf("nodespace: write response: %w", err)
		}
	}
	return scanner.Err()
}
