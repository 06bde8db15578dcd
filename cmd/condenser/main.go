package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jimmc414/thread-condenser/internal/condense"
	"github.com/jimmc414/thread-condenser/internal/config"
	"github.com/jimmc414/thread-condenser/internal/fetch"
	"github.com/jimmc414/thread-condenser/internal/ingest"
	"github.com/jimmc414/thread-condenser/internal/llm"
	"github.com/jimmc414/thread-condenser/internal/mcp"
	"github.com/jimmc414/thread-condenser/internal/platform"
	"github.com/jimmc414/thread-condenser/internal/server"
	"github.com/jimmc414/thread-condenser/internal/store"
	"github.com/jimmc414/thread-condenser/internal/tokenize"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "condense":
		if err := runCondense(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "summarize":
		if err := runSummarize(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "brief":
		if err := runBrief(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("condenser %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

type app struct {
	cfg    *config.Config
	store  *store.SQLiteStore
	runner *condense.Runner
	log    *zap.Logger
}

// buildApp wires the pipeline from resolved configuration. Platform
// clients missing their credentials are left nil; runs against those
// platforms fail at ingest.
func buildApp(configPath string, log *zap.Logger) (*app, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var slack fetch.SlackFetcher
	if cfg.SlackBotToken != "" {
		if slack, err = fetch.NewSlackClient(cfg.SlackBotToken); err != nil {
			st.Close()
			return nil, err
		}
	}

	var graph fetch.GraphFetcher
	if cfg.M365TenantID != "" || cfg.M365ClientID != "" || cfg.M365ClientSecret != "" {
		creds, err := fetch.NewClientCredentials(cfg.M365TenantID, cfg.M365ClientID, cfg.M365ClientSecret)
		if err != nil {
			st.Close()
			return nil, err
		}
		graph = fetch.NewGraphClient(creds)
	}

	counter, err := tokenize.ForModel(cfg.TokenizerVocab)
	if err != nil {
		st.Close()
		return nil, err
	}

	client := llm.NewHTTPClient(llm.Config{
		Endpoint: cfg.OpenAIBaseURL,
		APIKey:   cfg.OpenAIAPIKey,
		Model:    cfg.Model,
	})
	extractor := condense.NewExtractor(client, cfg.Model)
	ingestor := ingest.New(st, slack, graph, log)
	runner := condense.NewRunner(st, ingestor, extractor, counter, cfg.PromotionThreshold, log)

	return &app{cfg: cfg, store: st, runner: runner, log: log}, nil
}

// asyncDispatcher starts each accepted run in its own goroutine, the
// run id is returned to the caller immediately.
type asyncDispatcher struct {
	runner *condense.Runner
	log    *zap.Logger
}

func (d *asyncDispatcher) Dispatch(_ context.Context, ref *platform.ThreadRef, opts condense.Options) string {
	runID := condense.NewRunID()
	opts.RunID = runID
	go func() {
		if _, _, err := d.runner.Run(context.Background(), ref, opts); err != nil {
			d.log.Error("dispatched run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}()
	return runID
}

func runServe(args []string) error {
	configPath := flagValue(args, "--config")
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := buildApp(configPath, log)
	if err != nil {
		return err
	}
	defer a.store.Close()

	srv := server.New(a.store, &asyncDispatcher{runner: a.runner, log: log}, log)
	log.Info("listening", zap.String("addr", a.cfg.ListenAddr))
	return http.ListenAndServe(a.cfg.ListenAddr, srv.Router())
}

func runCondense(args []string) error {
	plat := flagValue(args, "--platform")
	refJSON := flagValue(args, "--ref")
	if plat == "" || refJSON == "" {
		return fmt.Errorf("usage: condenser condense --platform slack|msteams|outlook --ref '<json>' [--config <path>]")
	}

	var refMap map[string]any
	if err := json.Unmarshal([]byte(refJSON), &refMap); err != nil {
		return fmt.Errorf("parsing --ref: %w", err)
	}
	ref := platform.RefFromMap(plat, refMap)
	if ref == nil {
		return fmt.Errorf("--ref does not identify a fetchable %s thread", plat)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := buildApp(flagValue(args, "--config"), log)
	if err != nil {
		return err
	}
	defer a.store.Close()

	runID, result, err := a.runner.Run(context.Background(), ref, condense.Options{})
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(map[string]any{"run_id": runID, "brief": result}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runSummarize(args []string) error {
	plat := flagValue(args, "--platform")
	refJSON := flagValue(args, "--ref")
	if plat == "" || refJSON == "" {
		return fmt.Errorf("usage: condenser summarize --platform slack|msteams|outlook --ref '<json>' [--config <path>]")
	}

	var refMap map[string]any
	if err := json.Unmarshal([]byte(refJSON), &refMap); err != nil {
		return fmt.Errorf("parsing --ref: %w", err)
	}
	ref := platform.RefFromMap(plat, refMap)
	if ref == nil {
		return fmt.Errorf("--ref does not identify a fetchable %s thread", plat)
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := buildApp(flagValue(args, "--config"), log)
	if err != nil {
		return err
	}
	defer a.store.Close()

	summaries, err := a.runner.Summarize(context.Background(), ref, condense.Options{})
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(map[string]any{"summaries": summaries}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runBrief(args []string) error {
	var runID string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			runID = arg
			break
		}
	}
	if runID == "" {
		return fmt.Errorf("usage: condenser brief <run-id> [--config <path>]")
	}

	a, err := buildApp(flagValue(args, "--config"), zap.NewNop())
	if err != nil {
		return err
	}
	defer a.store.Close()

	brief, err := a.store.GetBrief(context.Background(), runID)
	if err != nil {
		return err
	}
	if brief == nil {
		return fmt.Errorf("no brief for run %s", runID)
	}
	fmt.Println(string(brief.JSON))
	return nil
}

func runMCP(args []string) error {
	// MCP uses stdout for the protocol; logs must not pollute it.
	log := zap.NewNop()
	a, err := buildApp(flagValue(args, "--config"), log)
	if err != nil {
		return err
	}
	defer a.store.Close()

	s := mcp.NewServer(mcp.ServerConfig{
		Store:   a.store,
		Runner:  a.runner,
		Version: version,
	})
	return mcp.ServeStdio(s)
}

func flagValue(args []string, name string) string {
	for i, arg := range args {
		if arg == name && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, name+"=") {
			return arg[len(name)+1:]
		}
	}
	return ""
}

func printUsage() {
	fmt.Println(`condenser - condense conversation threads into decision briefs

Usage:
  condenser serve [--config <path>]             Run the HTTP API
  condenser condense --platform <p> --ref '<json>' [--config <path>]
                                                Condense one thread and print the brief
  condenser summarize --platform <p> --ref '<json>' [--config <path>]
                                                Print per-segment summaries of a thread
  condenser brief <run-id> [--config <path>]    Print a persisted brief
  condenser mcp [--config <path>]               Run the MCP server over stdio
  condenser version                             Print version

Configuration is read from ~/.condenser/config.yaml and the environment
(SLACK_BOT_TOKEN, M365_TENANT_ID, M365_CLIENT_ID, M365_CLIENT_SECRET,
OPENAI_API_KEY, OPENAI_MODEL, CONDENSER_DB, PROMOTION_THRESHOLD).`)
}
