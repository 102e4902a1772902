package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/voxflow/voxflow/internal/actions"
	"github.com/voxflow/voxflow/internal/autorun"
	"github.com/voxflow/voxflow/internal/engine"
	"github.com/voxflow/voxflow/internal/intent"
	"github.com/voxflow/voxflow/internal/library"
	"github.com/voxflow/voxflow/internal/llm"
	"github.com/voxflow/voxflow/internal/logging"
	"github.com/voxflow/voxflow/internal/sandbox"
	"github.com/voxflow/voxflow/internal/scheduler"
	"github.com/voxflow/voxflow/internal/secrets"
	"github.com/voxflow/voxflow/internal/validation"
	"github.com/voxflow/voxflow/internal/world"
	"github.com/voxflow/voxflow/pkg/mcp"
)

// app wires the full dependency graph: store, library, engine,
// recorder, auto-run processor, scheduler and MCP server.
type app struct {
	cfg       Config
	logger    *slog.Logger
	store     *world.LibSQLStore
	vault     secrets.Vault
	library   *library.Library
	extractor *intent.Extractor
	recorder  *world.Recorder
	processor *autorun.Processor
	sched     *scheduler.Scheduler
	server    *mcp.VoxflowServer
}

func buildApp(cfg Config) (*app, error) {
	logger := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)

	if err := os.MkdirAll(voxflowDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	store, err := world.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	validator, err := validation.NewValidator()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("compile definition schema: %w", err)
	}
	lib := library.New(store, validator, logger)

	vault, err := openVault(store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open vault: %w", err)
	}

	apiKey := cfg.AnthropicAPIKey
	if apiKey == "" {
		if v, vaultErr := vault.Resolve(context.Background(), anthropicKeySecret); vaultErr == nil {
			apiKey = string(v)
		}
	}

	var llmOpts []llm.Option
	if cfg.AnthropicModel != "" {
		llmOpts = append(llmOpts, llm.WithModel(cfg.AnthropicModel))
	}
	generator := llm.NewClient(apiKey, cfg.AnthropicBaseURL, logger, llmOpts...)
	extractor := intent.NewExtractor(generator.GenerateText, logger)

	registry := actions.NewRegistry()
	for _, act := range []actions.Action{
		actions.NewGenerateText(generator),
		actions.NewCallWebhook(nil),
		actions.NewSendEmail(nil),
		actions.NewNotify(nil),
		actions.NewPushNotify(nil),
		actions.NewAppleNotes(nil),
		actions.NewAppleReminders(nil),
		actions.NewAppleCalendar(nil),
		actions.NewClipboard(nil),
		actions.NewSaveFile(nil),
		actions.NewTranscribe(nil),
		actions.NewSpeak(nil),
	} {
		if regErr := registry.Register(act); regErr != nil {
			store.Close()
			return nil, fmt.Errorf("register action: %w", regErr)
		}
	}

	dispatcher := engine.NewDispatcher(engine.Config{
		Registry:  registry,
		Shell:     sandbox.NewExecutor(sandbox.DefaultPolicy(), logger),
		Extractor: extractor,
		Defs:      lib,
		Observer:  engine.NewLogObserver(logger),
		Logger:    logger,
	})
	recorder := world.NewRecorder(store, dispatcher, logger)

	processor := autorun.NewProcessor(store, recorder, autorun.Config{
		Enabled:           cfg.AutoRun,
		DefaultWorkflowID: cfg.DefaultWorkflowID,
		Concurrency:       cfg.AutoRunConcurrency,
	}, logger)

	sched := scheduler.NewScheduler(store, recorder, logger)

	server := mcp.NewVoxflowServer(mcp.VoxflowServerDeps{
		Library:    lib,
		Dispatcher: recorder,
		Store:      store,
		Extractor:  extractor,
		Logger:     logger,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		vault:     vault,
		library:   lib,
		extractor: extractor,
		recorder:  recorder,
		processor: processor,
		sched:     sched,
		server:    server,
	}, nil
}

// anthropicKeySecret is the vault key consulted when no API key is
// configured via env or settings.
const anthropicKeySecret = "anthropic_api_key"

// openVault derives the vault cipher from VOXFLOW_VAULT_PASSPHRASE,
// with the machine salt persisted alongside the database. An unset
// passphrase falls back to a fixed one; secrecy then rests on file
// permissions alone.
func openVault(store *world.LibSQLStore) (secrets.Vault, error) {
	passphrase := os.Getenv("VOXFLOW_VAULT_PASSPHRASE")
	if passphrase == "" {
		passphrase = "voxflow-local"
	}
	salt, err := secrets.LoadOrCreateSalt(filepath.Join(voxflowDir(), "vault.salt"))
	if err != nil {
		return nil, err
	}
	return secrets.NewAESVault(store, secrets.Config{Passphrase: passphrase, Salt: salt})
}

// importDefinitions loads any definition files from the configured
// directory at startup.
func (a *app) importDefinitions(ctx context.Context) {
	if a.cfg.DefinitionsDir == "" {
		return
	}
	imported, err := a.library.ImportDir(ctx, a.cfg.DefinitionsDir)
	if err != nil {
		a.logger.Warn("definition import failed", "dir", a.cfg.DefinitionsDir, "error", err.Error())
		return
	}
	a.logger.Info("definitions imported", "dir", a.cfg.DefinitionsDir, "count", len(imported))
}

func (a *app) Close() error {
	return a.store.Close()
}
