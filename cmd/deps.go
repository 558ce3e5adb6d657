package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"estate-assistant/internal/config"
	"estate-assistant/internal/flow"
	"estate-assistant/internal/integrations/anthropic"
	"estate-assistant/internal/integrations/openai"
	"estate-assistant/internal/integrations/paramstore"
	"estate-assistant/internal/leadscore"
	"estate-assistant/internal/memory"
	"estate-assistant/internal/nlu"
	"estate-assistant/internal/repository"
	"estate-assistant/internal/retrieval"
	"estate-assistant/internal/usecase"
)

// app holds the wired chat service and whatever must be closed on exit.
type app struct {
	chat    *usecase.ChatService
	closers []io.Closer
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func buildApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	a := &app{}

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg != nil {
			return *awsCfg, nil
		}
		c, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
		}
		awsCfg = &c
		return c, nil
	}

	var params *paramstore.Client
	if cfg.AWS.ParamPrefix != "" {
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		params, err = paramstore.New(awsssm.NewFromConfig(c), paramstore.WithTTL(cfg.AWS.ParamTTL))
		if err != nil {
			return nil, fmt.Errorf("creating parameter store client: %w", err)
		}
	}

	store, err := newStore(ctx, logger, loadAWS)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := store.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	memOpts := []memory.Option{memory.WithLogger(logger)}
	if store != nil {
		memOpts = append(memOpts, memory.WithPersistence(store))
	}
	mem := memory.New(memOpts...)

	engine, err := flow.NewEngine(mem, flow.DefaultRegistry(), flow.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating flow engine: %w", err)
	}

	catalog, err := newCatalog()
	if err != nil {
		a.Close()
		return nil, err
	}

	chatOpts := []usecase.Option{
		usecase.WithLogger(logger),
		usecase.WithRetriever(catalog),
		usecase.WithMaxMessageLen(cfg.Chat.MaxMessageLength),
		usecase.WithGenerationTimeout(cfg.Chat.GenerationTimeout),
	}
	if store != nil {
		chatOpts = append(chatOpts, usecase.WithLeadStore(store))
	}
	if params != nil {
		chatOpts = append(chatOpts, usecase.WithPersona(params, cfg.AWS.ParamPrefix))
	}

	var gen usecase.Generator
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		g, err := anthropic.NewGenerator(cfg.LLM.AnthropicAPIKey, cfg.LLM.AnthropicModel, cfg.LLM.MaxTokens, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("creating anthropic generator: %w", err)
		}
		gen = g
	default:
		oc, err := newOpenAI(params)
		if err != nil {
			a.Close()
			return nil, err
		}
		gen = oc
		if cfg.Chat.Moderation {
			chatOpts = append(chatOpts, usecase.WithModerator(oc))
		}
	}

	svc, err := usecase.NewChatService(mem, engine, nlu.New(), gen, leadscore.New(), chatOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating chat service: %w", err)
	}
	a.chat = svc

	logger.Info("estate-assistant wired",
		"store", cfg.Store.Backend,
		"llm", cfg.LLM.String(),
		"catalog_docs", catalog.Len(),
	)
	return a, nil
}

// newStore returns nil for the memory backend.
func newStore(ctx context.Context, logger *slog.Logger, loadAWS func() (aws.Config, error)) (repository.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return nil, nil
	case config.StoreDynamoDB:
		c, err := loadAWS()
		if err != nil {
			return nil, err
		}
		st, err := repository.New(awsdynamodb.NewFromConfig(c), cfg.Store.StateTable)
		if err != nil {
			return nil, fmt.Errorf("creating dynamodb store: %w", err)
		}
		return st, nil
	case config.StorePostgres:
		st, err := repository.NewPostgresStore(ctx,
			repository.WithDSN(cfg.Store.DatabaseURL),
			repository.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return st, nil
	case config.StoreSQLite:
		st, err := repository.NewSQLiteStore(ctx,
			repository.WithDSN(filepath.Clean(cfg.Store.SQLitePath)),
			repository.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func newCatalog() (*retrieval.Catalog, error) {
	opts := []retrieval.Option{retrieval.WithLimit(cfg.Catalog.Limit)}
	if cfg.Catalog.Path == "" {
		c, err := retrieval.Default(opts...)
		if err != nil {
			return nil, fmt.Errorf("loading built-in catalog: %w", err)
		}
		return c, nil
	}
	c, err := retrieval.Load(cfg.Catalog.Path, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", cfg.Catalog.Path, err)
	}
	return c, nil
}

func newOpenAI(params *paramstore.Client) (*openai.Client, error) {
	opts := []openai.Option{
		openai.WithTemperature(cfg.LLM.Temperature),
		openai.WithMaxTokens(cfg.LLM.MaxTokens),
	}
	switch {
	case cfg.LLM.OpenAIAPIKey != "":
		opts = append(opts, openai.WithAPIKey(cfg.LLM.OpenAIAPIKey))
	case params != nil:
		opts = append(opts, openai.WithParamStore(params, cfg.AWS.ParamPrefix))
	default:
		return nil, errors.New("openai: no API key and no parameter store configured")
	}
	if cfg.LLM.OpenAIBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.LLM.OpenAIBaseURL))
	}
	c, err := openai.NewClient(cfg.LLM.OpenAIModel, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return c, nil
}
