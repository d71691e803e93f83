package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"dinebot/app/internal/chat"
	"dinebot/app/internal/config"
	appdb "dinebot/app/internal/db"
	apphttp "dinebot/app/internal/http"
	"dinebot/app/internal/keywords"
	"dinebot/app/internal/llm"
	"dinebot/app/internal/memory"
)

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

type Result struct {
	ChatService chat.Service
	Extractor   *keywords.Extractor
	HTTPServer  *apphttp.Server
	Cleanup     func() error
}

// Build composes the DineBot application layers and returns the constructed components.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	repo, closeStore, err := openMemory(ctx, deps.Config.Memory, deps.Logger)
	if err != nil {
		return Result{}, err
	}

	closeOnError := func(wrapper error) (Result, error) {
		if closeErr := closeStore(); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing memory store after bootstrap failure")
		}
		return Result{}, wrapper
	}

	if len(deps.Config.LLMModels) == 0 {
		return closeOnError(eris.New("LLM_MODELS must include at least one model name"))
	}

	client, err := llm.NewClient(llm.ClientOptions{
		APIKey:  deps.Config.LLMAPIKey,
		BaseURL: deps.Config.LLMEndpoint,
		Logger:  deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating llm client"))
	}

	responderModel := deps.Config.LLMModels[0]
	summarizerModel := responderModel
	if len(deps.Config.LLMModels) > 1 {
		summarizerModel = deps.Config.LLMModels[1]
	}

	responder, err := llm.NewResponder(llm.ResponderOptions{
		Client: client,
		Model:  responderModel,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising llm responder"))
	}

	summarizer, err := llm.NewSummarizer(llm.SummarizerOptions{
		Client: client,
		Model:  summarizerModel,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising llm summarizer"))
	}

	chatService, err := chat.NewService(repo, responder, summarizer, deps.Logger, deps.SentryHub)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating chat service"))
	}

	extractor, err := keywords.NewExtractor(keywords.Options{
		Workers: deps.Config.KeywordWorkers,
		Logger:  deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating keyword extractor"))
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		ChatService:        chatService,
		Extractor:          extractor,
		Logger:             deps.Logger,
		SentryHub:          deps.SentryHub,
		CORSAllowedOrigins: deps.Config.CORSAllowedOrigins,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "initialising http server"))
	}

	return Result{
		ChatService: chatService,
		Extractor:   extractor,
		HTTPServer:  httpServer,
		Cleanup:     closeStore,
	}, nil
}

// openMemory opens the configured memory backend and returns its close func.
func openMemory(ctx context.Context, settings config.MemorySettings, logger *logrus.Logger) (memory.Repository, func() error, error) {
	switch settings.Backend {
	case config.MemoryBackendRedis:
		client, err := memory.NewRedisClient(ctx, memory.RedisOptions{
			Addr:     settings.RedisAddr,
			Password: settings.RedisPassword,
			DB:       settings.RedisDB,
		})
		if err != nil {
			return nil, nil, eris.Wrap(err, "opening redis memory store")
		}

		repo, err := memory.NewRedisRepository(client, logger)
		if err != nil {
			_ = client.Close()
			return nil, nil, eris.Wrap(err, "creating redis memory repository")
		}

		return repo, client.Close, nil

	case config.MemoryBackendSQLite, config.MemoryBackendPostgres:
		var (
			opts = appdb.Options{Path: settings.DBPath, DSN: settings.DatabaseURL}
			open = appdb.Open
		)
		if settings.Backend == config.MemoryBackendPostgres {
			open = appdb.OpenPostgres
		}

		gormDB, err := open(opts)
		if err != nil {
			return nil, nil, eris.Wrapf(err, "opening %s memory store", settings.Backend)
		}

		closeDB := func() error {
			return appdb.Close(gormDB)
		}

		if err := memory.Migrate(ctx, gormDB, logger); err != nil {
			_ = closeDB()
			return nil, nil, eris.Wrap(err, "running memory migrations")
		}

		repo, err := memory.NewRepository(gormDB, logger)
		if err != nil {
			_ = closeDB()
			return nil, nil, eris.Wrap(err, "creating memory repository")
		}

		return repo, closeDB, nil

	default:
		return nil, nil, eris.Errorf("unsupported memory backend: %s", settings.Backend)
	}
}
