package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"voicedesk/internal/analyzer"
	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/calls"
	"voicedesk/internal/config"
	"voicedesk/internal/httpapi"
	"voicedesk/internal/ledger"
	"voicedesk/internal/pricing"
	"voicedesk/internal/stats"
	"voicedesk/internal/telephony"
	"voicedesk/pkg/logger"
	"voicedesk/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Services.
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	callSvc := calls.NewService(calls.NewPostgresRepo(db), audit.NewCallAuditor(auditSvc, log))
	statsSvc := stats.NewService(stats.NewPostgresRepo(db))
	ledgerSvc := ledger.NewService(ledger.NewPostgresRepo(db))
	priceCalc := pricing.NewCalculator(cfg.Pricing)

	// The analyzer client is built once at boot; calls without a configured
	// analyzer fall back to placeholder results instead of failing.
	var transcriptAnalyzer *analyzer.Analyzer
	if cfg.Analyzer.Enabled() {
		client, err := analyzer.NewClient(analyzer.ClientConfig{
			BaseURL:         cfg.Analyzer.BaseURL,
			APIKey:          cfg.Analyzer.APIKey,
			Model:           cfg.Analyzer.Model,
			RequestTimeout:  cfg.Analyzer.RequestTimeout,
			MaxRetryElapsed: cfg.Analyzer.MaxRetryElapsed,
		})
		if err != nil {
			log.Error("analyzer init failed", "err", err)
			os.Exit(1)
		}
		transcriptAnalyzer = analyzer.New(client, log)
		log.Info("transcript analyzer enabled", "model", cfg.Analyzer.Model)
	} else {
		transcriptAnalyzer = analyzer.New(nil, log)
		log.Info("transcript analyzer not configured, using placeholder results")
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	webhook := telephony.StatusWebhookHandler{
		Calls:         callSvc,
		Analyzer:      transcriptAnalyzer,
		Pricing:       priceCalc,
		Ledger:        ledgerSvc,
		Audit:         auditSvc,
		Gate:          telephony.NewRedisDeliveryGate(rdb, cfg.Webhook.DedupeTTL),
		AgentResolver: agentResolver(cfg.Webhook),
	}
	api := httpapi.Handlers{
		Auth:  authManager,
		Calls: callSvc,
		Stats: statsSvc,
	}
	registerRoutes(r, auth.RequireAccessToken(authManager), api, webhook)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}

// agentResolver maps a dialed number to the agent that owns it. Deployments
// configure a single default agent for now; a number-to-agent lookup table is
// the natural next step once multi-number routing is needed.
func agentResolver(cfg config.WebhookConfig) func(c *gin.Context, toNumber string) (telephony.ResolvedAgent, error) {
	return func(c *gin.Context, toNumber string) (telephony.ResolvedAgent, error) {
		if cfg.DefaultAgentID == "" {
			return telephony.ResolvedAgent{}, errors.New("no agent configured for dialed numbers")
		}
		return telephony.ResolvedAgent{
			ID:          cfg.DefaultAgentID,
			DisplayName: cfg.DefaultAgentName,
			Scope:       calls.Scope{UserID: cfg.DefaultUserID, OrgID: cfg.DefaultOrgID},
		}, nil
	}
}
