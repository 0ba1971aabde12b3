// Command queryresolve-demo is a thin example driver over the
// orchestrator package: it wires one concrete LLM / embedder / vector
// store / executor combination from a JSON config file (generalizing
// the teacher's llm_config.json loader in internal/llm/config.go to
// also configure the vector store and the database registry) and runs
// orchestrator.ProcessQuery once per line of stdin, printing one JSON
// result object per line. It demonstrates the public API; it carries no
// part of the core's own size budget.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/tmc/langchaingo/llms/openai"

	"queryresolve/internal/decomposer"
	"queryresolve/internal/embedding"
	"queryresolve/internal/executor"
	"queryresolve/internal/llmprovider"
	"queryresolve/internal/orchestrator"
	"queryresolve/internal/progress"
	"queryresolve/internal/prompt"
	"queryresolve/internal/refiner"
	"queryresolve/internal/retrieval"
	"queryresolve/internal/selector"
	"queryresolve/internal/vectorstore"
	"queryresolve/internal/vectorstore/qdrantstore"
)

// modelConfig is one named LLM backend entry, matching the teacher's
// llm.ModelConfig shape (model_name/token/base_url).
type modelConfig struct {
	ModelName string `json:"model_name"`
	Token     string `json:"token"`
	BaseURL   string `json:"base_url"`
}

// embeddingConfig configures the embedding backend.
type embeddingConfig struct {
	ModelName string `json:"model_name"`
	Token     string `json:"token"`
	BaseURL   string `json:"base_url"`
	Dimension int    `json:"dimension"`
}

// qdrantConfig configures an optional Qdrant-backed vector store; when
// omitted, the in-process memstore.Store is used instead.
type qdrantConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	APIKey         string `json:"api_key,omitempty"`
	CollectionName string `json:"collection_name"`
}

// databaseConfig is one registered database_id's connection info,
// matching executor.Config.
type databaseConfig struct {
	Type     string `json:"type"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// configFile is the demo's top-level JSON config, generalizing the
// teacher's llm_config.json (a flat map of named ModelConfigs) with
// sections for embedding, vector store, and the database registry.
type configFile struct {
	LLM                      modelConfig               `json:"llm"`
	Embedding                embeddingConfig           `json:"embedding"`
	Qdrant                   *qdrantConfig             `json:"qdrant,omitempty"`
	Databases                map[string]databaseConfig `json:"databases"`
	Profile                  string                    `json:"profile,omitempty"`
	SchemaFallbackDir        string                    `json:"schema_fallback_dir,omitempty"`
	EnableAdvisoryValidation bool                      `json:"enable_advisory_validation,omitempty"`
}

func loadConfig(path string) (*configFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("queryresolve-demo: reading config %q: %w", path, err)
	}
	var cfg configFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("queryresolve-demo: parsing config %q: %w", path, err)
	}
	return &cfg, nil
}

func buildExecutor(cfg *configFile) (*executor.Registry, error) {
	configs := make(map[string]executor.Config, len(cfg.Databases))
	for id, db := range cfg.Databases {
		configs[id] = executor.Config{
			Type:     executor.DatabaseType(db.Type),
			Host:     db.Host,
			Port:     db.Port,
			Database: db.Database,
			User:     db.User,
			Password: db.Password,
			FilePath: db.FilePath,
		}
	}
	return executor.NewRegistry(configs), nil
}

func buildVectorStore(ctx context.Context, cfg *configFile) (vectorstore.Store, error) {
	if cfg.Qdrant == nil {
		return vectorstore.NewMemStore(), nil
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("queryresolve-demo: connecting to qdrant: %w", err)
	}
	return qdrantstore.New(ctx, qdrantstore.Config{
		Client:           client,
		CollectionName:   cfg.Qdrant.CollectionName,
		Dimension:        uint64(cfg.Embedding.Dimension),
		InitializeSchema: true,
	})
}

func buildEmbedder(cfg *configFile) (embedding.Embedder, error) {
	client, err := openai.New(
		openai.WithModel(cfg.Embedding.ModelName),
		openai.WithToken(cfg.Embedding.Token),
		openai.WithBaseURL(cfg.Embedding.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("queryresolve-demo: constructing embedding client: %w", err)
	}
	return embedding.New(client, cfg.Embedding.Dimension)
}

func buildOrchestrator(ctx context.Context, cfg *configFile) (*orchestrator.Orchestrator, error) {
	llmClient, err := openai.New(
		openai.WithModel(cfg.LLM.ModelName),
		openai.WithToken(cfg.LLM.Token),
		openai.WithBaseURL(cfg.LLM.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("queryresolve-demo: constructing llm client: %w", err)
	}
	provider := llmprovider.New(llmClient)
	prompts := prompt.NewRegistry()

	exec, err := buildExecutor(cfg)
	if err != nil {
		return nil, err
	}

	var retrievalStore *retrieval.Store
	if cfg.Embedding.ModelName != "" {
		embedder, err := buildEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		vectors, err := buildVectorStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		retrievalStore = retrieval.New(vectors, embedder)
	}

	profile := decomposer.DatasetProfile(cfg.Profile)
	if profile == "" {
		profile = decomposer.ProfileGeneric
	}

	sel := selector.New(exec, provider, prompts)
	if cfg.SchemaFallbackDir != "" {
		sel = sel.WithSchemaFallback(selector.NewJSONFileFallback(cfg.SchemaFallbackDir))
	}
	dec := decomposer.New(provider, prompts, retrievalStore)
	ref := refiner.New(exec, provider, prompts)

	return orchestrator.New(orchestrator.Dependencies{
		Selector:                 sel,
		Decomposer:               dec,
		Refiner:                  ref,
		Executor:                 exec,
		Retrieval:                retrievalStore,
		Profile:                  profile,
		EnableAdvisoryValidation: cfg.EnableAdvisoryValidation,
	}), nil
}

// lineResult is the per-line JSON shape this driver prints (spec §6's
// process_query outcome, flattened for stdout consumption).
type lineResult struct {
	Success        bool              `json:"success"`
	SQL            string            `json:"sql,omitempty"`
	Rows           []map[string]any  `json:"rows,omitempty"`
	ProcessingTime string            `json:"processing_time"`
	RetryCount     int               `json:"retry_count"`
	Error          string            `json:"error,omitempty"`
	LastSQL        string            `json:"last_sql,omitempty"`
}

func main() {
	configPath := flag.String("config", "queryresolve_config.json", "path to the JSON config file")
	databaseID := flag.String("database", "", "database_id to route every question to")
	threadID := flag.String("thread", "", "thread_id for conversation-history continuity across lines")
	quiet := flag.Bool("quiet", false, "suppress the live progress display")
	flag.Parse()

	if *databaseID == "" {
		log.Fatal("queryresolve-demo: -database is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	orch, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	var tracker *progress.Tracker
	if !*quiet {
		tracker = progress.New("queryresolve-demo")
		tracker.Start()
		defer tracker.Stop()
	}

	scanner := bufio.NewScanner(os.Stdin)
	encoder := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}

		label := question
		if len(label) > 40 {
			label = label[:37] + "..."
		}
		if tracker != nil {
			tracker.AddRow(label)
		}

		result, err := orch.ProcessQuery(ctx, orchestrator.Input{
			DatabaseID: *databaseID,
			Question:   question,
			ThreadID:   *threadID,
		})
		if err != nil {
			if tracker != nil {
				tracker.Fail(label, err)
			}
			continue
		}

		if tracker != nil {
			if result.Success {
				tracker.Complete(label)
			} else {
				tracker.Fail(label, fmt.Errorf("%s", result.Error))
			}
		}

		out := lineResult{
			Success:        result.Success,
			SQL:            result.SQL,
			Rows:           result.Rows,
			ProcessingTime: result.ProcessingTime.Round(time.Millisecond).String(),
			RetryCount:     result.RetryCount,
			Error:          result.Error,
			LastSQL:        result.LastSQL,
		}
		_ = encoder.Encode(out)
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}

	if tracker != nil {
		fmt.Fprint(os.Stderr, tracker.Summary())
	}
}
