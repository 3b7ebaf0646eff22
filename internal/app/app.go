// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/promptchat/internal/account"
	"github.com/hitoshi/promptchat/internal/auth"
	"github.com/hitoshi/promptchat/internal/chat"
	"github.com/hitoshi/promptchat/internal/config"
	"github.com/hitoshi/promptchat/internal/database"
	"github.com/hitoshi/promptchat/internal/handler"
	"github.com/hitoshi/promptchat/internal/ledger"
	"github.com/hitoshi/promptchat/internal/logger"
	"github.com/hitoshi/promptchat/internal/metrics"
	"github.com/hitoshi/promptchat/internal/middleware"
	"github.com/hitoshi/promptchat/internal/pinned"
	"github.com/hitoshi/promptchat/internal/prompt"
	"github.com/hitoshi/promptchat/internal/repository"
	"github.com/hitoshi/promptchat/internal/security"
	"github.com/hitoshi/promptchat/internal/tokenizer"
	"github.com/hitoshi/promptchat/internal/worker/iconcache"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// アイコンキャッシュワーカーは別コンテナのworkerモードで動作する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	chatRepo := repository.NewPostgresChatRepo(db)
	promptRepo := repository.NewPostgresPromptRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	iconGuard := security.NewIconGuard()
	sanitizer := security.NewTextSanitizer()

	// 5. トークン検証の初期化
	// AUTH_JWT_SECRETが設定されている場合はローカル検証を優先する
	var verifier auth.TokenVerifier
	if cfg.AuthJWTSecret != "" {
		verifier = auth.NewLocalJWTVerifier(cfg.AuthJWTSecret)
	} else {
		verifier = auth.NewRemoteVerifier(cfg.AuthVerifierURL, cfg.AuthTimeout)
	}

	// 6. ドメインサービスの初期化
	ledgerService := ledger.NewService(userRepo, tokenizer.NewEstimator())
	pinnedManager := pinned.NewManager(userRepo)
	chatService := chat.NewService(chatRepo, ledgerService, collector, slog.Default())
	promptService := prompt.NewService(
		promptRepo, userRepo, pinnedManager, sanitizer, iconGuard,
		collector, slog.Default(),
	)
	accountService := account.NewService(
		userRepo, cfg.StartingTokenBalance, cfg.StarterPinnedPrompts,
		cfg.OpenAIAPIKey, slog.Default(),
	)

	// 7. ルーターの構築
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.ChatUpdateRate = rate.Limit(float64(cfg.RateLimitChatUpdate) / 60.0)
	rateLimiterCfg.ChatUpdateBurst = cfg.RateLimitChatUpdate

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		TokenVerifier:     verifier,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		RequestRecorder:   collector,

		AccountService: accountService,
		ChatService:    chatService,
		PromptService:  promptService,
		PinnedManager:  pinnedManager,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// メトリクスは運用系ポートで別サーバーとして公開する
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はアイコンキャッシュワーカーモードで起動する。
// APIサーバーとは別コンテナで動作し、外部ネットワークへのegressは
// このモードのコンテナだけに許可する構成を想定している。
// SIGINTまたはSIGTERMシグナルを受信すると停止する。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	promptRepo := repository.NewPostgresPromptRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	iconGuard := security.NewIconGuard()
	iconWorker := iconcache.NewWorker(
		promptRepo,
		iconGuard.NewSafeClient(cfg.IconFetchTimeout, cfg.IconMaxSize),
		collector, slog.Default(), cfg.IconMaxSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// メトリクスは運用系ポートで公開する
	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down icon cache worker...")
		cancel()
	}()

	iconWorker.Start(ctx, cfg.IconCacheInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	slog.Info("icon cache worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
