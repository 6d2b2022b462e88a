package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/botdesk/botdesk/internal/agents"
	"github.com/botdesk/botdesk/internal/channels"
	"github.com/botdesk/botdesk/internal/config"
	"github.com/botdesk/botdesk/internal/conversation"
	"github.com/botdesk/botdesk/internal/db"
	"github.com/botdesk/botdesk/internal/events"
	"github.com/botdesk/botdesk/internal/handlers"
	"github.com/botdesk/botdesk/internal/knowledge"
	"github.com/botdesk/botdesk/internal/llm"
	"github.com/botdesk/botdesk/internal/logger"
	"github.com/botdesk/botdesk/internal/memory"
	"github.com/botdesk/botdesk/internal/message"
	"github.com/botdesk/botdesk/internal/pipeline"
	"github.com/botdesk/botdesk/internal/platform"
	"github.com/botdesk/botdesk/internal/platform/adapters/instagram"
	"github.com/botdesk/botdesk/internal/platform/adapters/messenger"
	"github.com/botdesk/botdesk/internal/platform/adapters/telegram"
	"github.com/botdesk/botdesk/internal/platform/adapters/whatsapp"
	"github.com/botdesk/botdesk/internal/server"
	"github.com/botdesk/botdesk/internal/tenants"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			events.NewHub,
			tenants.NewService,
			channels.NewService,
			agents.NewService,
			conversation.NewService,
			provideMessageService,
			provideResolver,
			provideCache,
			provideEmbedder,
			provideSearcher,
			provideRetriever,
			provideSelector,
			provideGenerator,
			provideRegistry,
			providePipeline,
			handlers.NewPingHandler,
			provideAuthHandler,
			provideWebhookHandler,
			provideConversationsHandler,
			handlers.NewChannelsHandler,
			handlers.NewAgentsHandler,
			handlers.NewWSHandler,
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			seedAdmin,
			startWindowSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideMessageService(log *slog.Logger, pool *pgxpool.Pool, hub *events.Hub, conversations *conversation.Service) *message.DBService {
	tenantOf := func(ctx context.Context, conversationID string) (string, error) {
		conv, err := conversations.GetByID(ctx, conversationID)
		if err != nil {
			return "", err
		}
		return conv.TenantID, nil
	}
	return message.NewService(log, pool, hub, tenantOf)
}

func provideResolver(log *slog.Logger, conversations *conversation.Service) *conversation.Resolver {
	return conversation.NewResolver(log, conversations)
}

func provideCache(log *slog.Logger, cfg config.Config) *memory.InProcessCache {
	return memory.NewInProcessCache(log, cfg.Pipeline.HistoryWindow, cfg.Pipeline.HistoryBudget)
}

func provideEmbedder(cfg config.Config) *knowledge.HTTPEmbedder {
	return knowledge.NewHTTPEmbedder(cfg.LLM.Embedding)
}

// provideSearcher connects Qdrant. A missing knowledge base is not fatal:
// retrieval degrades to zero passages and the pipeline keeps serving.
func provideSearcher(log *slog.Logger, cfg config.Config, embedder *knowledge.HTTPEmbedder) knowledge.Searcher {
	store, err := knowledge.NewQdrantStore(context.Background(), log, cfg.Qdrant, embedder, cfg.LLM.Embedding.Dimensions)
	if err != nil {
		log.Warn("knowledge base unavailable, retrieval disabled", slog.Any("error", err))
		return nil
	}
	return store
}

func provideRetriever(log *slog.Logger, cfg config.Config, searcher knowledge.Searcher) *knowledge.Retriever {
	return knowledge.NewRetriever(log, searcher, cfg.Pipeline.RetrievalTopK)
}

func provideSelector(cfg config.Config) *llm.Selector {
	return llm.NewSelector(cfg.LLM)
}

func provideGenerator(selector *llm.Selector) pipeline.Generator {
	return &pipeline.SelectorGenerator{Selector: selector}
}

func provideRegistry(log *slog.Logger) *platform.Registry {
	registry := platform.NewRegistry()
	registry.MustRegister(whatsapp.New(log))
	registry.MustRegister(messenger.New(log))
	registry.MustRegister(instagram.New(log))
	registry.MustRegister(telegram.New(log))
	return registry
}

func providePipeline(
	log *slog.Logger,
	cfg config.Config,
	registry *platform.Registry,
	channelService *channels.Service,
	agentService *agents.Service,
	resolver *conversation.Resolver,
	messageService *message.DBService,
	conversations *conversation.Service,
	hub *events.Hub,
	cache *memory.InProcessCache,
	retriever *knowledge.Retriever,
	generator pipeline.Generator,
) *pipeline.Pipeline {
	return pipeline.New(log, registry, channelService, agentService, resolver,
		messageService, conversations, hub, cache, retriever, generator, cfg.Pipeline)
}

func provideAuthHandler(log *slog.Logger, service *tenants.Service, cfg config.Config) *handlers.AuthHandler {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		expiresIn = 24 * time.Hour
	}
	return handlers.NewAuthHandler(log, service, cfg.Auth.JWTSecret, expiresIn)
}

func provideWebhookHandler(log *slog.Logger, p *pipeline.Pipeline, channelService *channels.Service) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, p, channelService)
}

func provideConversationsHandler(log *slog.Logger, conversations *conversation.Service, messageService *message.DBService) *handlers.ConversationsHandler {
	return handlers.NewConversationsHandler(log, conversations, messageService)
}

func provideServer(
	log *slog.Logger,
	cfg config.Config,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	webhookHandler *handlers.WebhookHandler,
	conversationsHandler *handlers.ConversationsHandler,
	channelsHandler *handlers.ChannelsHandler,
	agentsHandler *handlers.AgentsHandler,
	wsHandler *handlers.WSHandler,
) *server.Server {
	return server.New(log, cfg.Server.Addr, cfg.Auth.JWTSecret,
		pingHandler, authHandler, webhookHandler, conversationsHandler,
		channelsHandler, agentsHandler, wsHandler)
}

func runMigrations(log *slog.Logger, cfg config.Config) error {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations applied")
	return nil
}

func seedAdmin(log *slog.Logger, cfg config.Config, service *tenants.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := service.EnsureAdmin(ctx, "default", cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

// startWindowSweeper evicts idle dialogue windows on a schedule so resolved
// conversations do not pin memory.
func startWindowSweeper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, cache *memory.InProcessCache) {
	ttl := time.Duration(cfg.Pipeline.WindowTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = time.Duration(config.DefaultWindowTTLMinutes) * time.Minute
	}
	scheduler := cron.New()
	_, err := scheduler.AddFunc("@every 10m", func() {
		cache.SweepIdle(ttl)
	})
	if err != nil {
		log.Error("schedule window sweeper failed", slog.Any("error", err))
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx := scheduler.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
