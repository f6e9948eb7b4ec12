// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"journal-ai-coach/internal/config"
	"journal-ai-coach/internal/domain/ports/adapter"
	aiAdapters "journal-ai-coach/internal/infra/adapters/ai"
	"journal-ai-coach/internal/infra/adapters/push"
	"journal-ai-coach/internal/infra/api"
	pg "journal-ai-coach/internal/infra/db/postgres"
	"journal-ai-coach/internal/infra/logging"
	"journal-ai-coach/internal/infra/metrics"
	"journal-ai-coach/internal/infra/queue"
	red "journal-ai-coach/internal/infra/redis"
	"journal-ai-coach/internal/infra/sched"
	"journal-ai-coach/internal/infra/security"
	"journal-ai-coach/internal/infra/worker"
	"journal-ai-coach/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, canned AI replies without keys)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	rateLimiter := red.NewRateLimiter(redisClient)
	streamBuffer := red.NewStreamBuffer(redisClient, cfg.Redis.TTL)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	convRepo := pg.NewConversationRepo(pool)
	msgRepo := pg.NewMessageRepo(pool)
	jobRepo := pg.NewJobRepo(pool)
	subRepo := pg.NewPushSubscriptionRepo(pool)
	sentRepo := pg.NewSentNotificationRepo(pool)
	eventRepo := pg.NewAgendaEventRepo(pool)
	entryRepo := pg.NewEntryRepo(pool)

	// ---- AI adapter ----
	ai := buildAI(ctx, cfg, logger)
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	gen := usecase.NewResponseGenerator(convRepo, entryRepo, ai, usecase.GeneratorConfig{
		Model:             cfg.AI.DefaultModel,
		HistoryMessages:   cfg.AI.HistoryMessages,
		TokenBudget:       cfg.AI.HistoryTokenBudget,
		EntryContextLimit: cfg.AI.EntryContextLimit,
		RequestTimeout:    cfg.AI.RequestTimeout,
	}, logger)

	pendingUC := usecase.NewPendingUseCase(msgRepo, gen, locker, usecase.PendingConfig{
		ProcessingTimeout: cfg.Pipeline.ProcessingTimeout,
		MaxAttempts:       cfg.Pipeline.MaxAttempts,
	}, logger)

	chatUC := usecase.NewChatUseCase(convRepo, msgRepo, tm, rateLimiter, usecase.ChatConfig{
		SubmitRateLimit:  cfg.Pipeline.SubmitRateLimit,
		SubmitRateWindow: cfg.Pipeline.SubmitRateWindow,
	}, logger)

	queueClient, err := queue.NewHTTPClient(cfg.Queue.URL, cfg.Queue.Token, cfg.Queue.CallbackURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue client")
	}
	jobUC := usecase.NewJobUseCase(jobRepo, pendingUC, gen, queueClient, streamBuffer, usecase.JobConfig{
		BufferFlushInterval: cfg.Pipeline.BufferFlushInterval,
	}, logger)

	sender := push.NewWebPushSender(cfg.Push)
	notifUC := usecase.NewNotificationUseCase(subRepo, sentRepo, msgRepo, convRepo, eventRepo, sender,
		usecase.NotificationConfig{
			ReplyDelay:  cfg.Pipeline.NotifyDelay,
			EventWindow: cfg.Pipeline.EventWindow,
		}, logger)

	// ---- Workers ----
	pool2 := worker.NewPool(cfg.Pipeline.Workers, logger)
	pool2.Start(ctx)
	defer pool2.Stop()

	pipelineWorker := sched.NewPipelineWorker(cfg.Pipeline.ClaimInterval, pendingUC, notifUC, logger)
	go func() { _ = pipelineWorker.Run(ctx) }()
	eventWorker := sched.NewEventWorker(cfg.Pipeline.EventInterval, notifUC, logger)
	go func() { _ = eventWorker.Run(ctx) }()

	// ---- HTTP ----
	mode, err := queue.ParseVerificationMode(cfg.Queue.Verification)
	if err != nil {
		logger.Fatal().Err(err).Msg("queue verification mode")
	}
	callbackVerifier, err := queue.NewCallbackVerifier(mode, cfg.Queue.SigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("callback verifier")
	}
	verifier := security.NewJWTVerifier(cfg.Auth.JWTSecret)

	srv := api.NewServer(chatUC, pendingUC, jobUC, notifUC, verifier, callbackVerifier, pool2, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

// buildAI picks providers from configured keys. With both keys present the
// multi adapter routes by model prefix; with none, dev mode gets canned
// replies and prod refuses to start.
func buildAI(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.AIServiceAdapter {
	byProvider := map[string]adapter.AIServiceAdapter{}

	if cfg.AI.OpenAIKey != "" {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		byProvider["openai"] = a
	}
	if cfg.AI.GeminiKey != "" {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		byProvider["gemini"] = a
	}

	switch len(byProvider) {
	case 0:
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no AI provider configured: set ai.openai_key or ai.gemini_key")
		}
		logger.Warn().Msg("no AI provider configured, using canned replies")
		return aiAdapters.NewNoopAIAdapter()
	case 1:
		for _, a := range byProvider {
			return a
		}
	}

	def := "openai"
	if _, ok := byProvider[def]; !ok {
		def = "gemini"
	}
	return aiAdapters.NewMultiAIAdapter(def, byProvider)
}
