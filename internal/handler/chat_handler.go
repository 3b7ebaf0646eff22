package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/promptchat/internal/middleware"
	"github.com/hitoshi/promptchat/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	// PutChat はチャット文書全体を上書き保存する。
	PutChat(ctx context.Context, userID string, chat *model.Chat) error
	// GetChat は所有チャットを取得する。
	GetChat(ctx context.Context, userID, chatID string) (*model.Chat, error)
}

// ChatHandler はチャットのHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

// UpdateChat はチャット文書の上書き保存を処理する。
// リクエストボディはチャット文書そのもの。成功時はボディ "OK" を返す。
// POST /api/updateChat
func (h *ChatHandler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var chat model.Chat
	if err := json.NewDecoder(r.Body).Decode(&chat); err != nil {
		writeBadRequestBody(w)
		return
	}

	if err := h.service.PutChat(r.Context(), userID, &chat); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

// GetChat はチャット文書の取得を処理する。
// GET /api/getChat?chatID=...
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	chatID := r.URL.Query().Get("chatID")

	chat, err := h.service.GetChat(r.Context(), userID, chatID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chat)
}
