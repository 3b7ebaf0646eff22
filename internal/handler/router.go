package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/promptchat/internal/auth"
	"github.com/hitoshi/promptchat/internal/middleware"
)

// HealthChecker はヘルスチェックで使用するDB疎通確認のインターフェース。
// *sql.DB を受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	TokenVerifier     auth.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	RequestRecorder   middleware.RequestRecorder

	// サービス
	AccountService AccountServiceInterface
	ChatService    ChatServiceInterface
	PromptService  PromptServiceInterface
	PinnedManager  PinnedManagerInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → RecoveryMiddleware → LoggingMiddleware → AuthMiddleware → RateLimitMiddleware(General)
//
// 全APIルートがベアラートークン認証を要求する。
// チャット更新のみ、トークン消費操作として追加のレート制限を受ける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.RequestRecorder))

	accountHandler := NewAccountHandler(deps.AccountService)
	chatHandler := NewChatHandler(deps.ChatService)
	promptHandler := NewPromptHandler(deps.PromptService)
	pinnedHandler := NewPinnedHandler(deps.PinnedManager)

	// --- 認証不要のルート ---

	// ヘルスチェック（コンテナオーケストレーション用）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				http.Error(w, "database unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api", func(r chi.Router) {
			// アカウント管理
			r.Post("/registerUser", accountHandler.RegisterUser)
			r.Get("/getOpenAIKey", accountHandler.GetOpenAIKey)
			r.Delete("/account", accountHandler.DeleteAccount)

			// チャット（更新はトークン消費操作のため専用レート制限を追加）
			r.With(deps.RateLimiter.ChatUpdateMiddleware()).Post("/updateChat", chatHandler.UpdateChat)
			r.Get("/getChat", chatHandler.GetChat)

			// プロンプトマーケットプレイス
			r.Post("/setPrompt", promptHandler.SetPrompt)
			r.Post("/deletePrompt", promptHandler.DeletePrompt)
			r.Get("/getPrompt", promptHandler.GetPrompt)
			r.Post("/getPrompts", promptHandler.GetPrompts)
			r.Post("/upvotePrompt", promptHandler.UpvotePrompt)
			r.Post("/unUpvotePrompt", promptHandler.UnUpvotePrompt)

			// ピン留めリスト
			r.Post("/updatePinnedPrompts", pinnedHandler.UpdatePinnedPrompts)
		})
	})

	return r
}
