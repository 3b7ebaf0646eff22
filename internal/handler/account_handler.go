// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/promptchat/internal/middleware"
	"github.com/hitoshi/promptchat/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// RegisterUser はユーザーレコードを冪等に初期化する。
	RegisterUser(ctx context.Context, userID string) (*model.User, error)
	// GetOpenAIKey はモデル呼び出し用のAPIキーを返す。
	GetOpenAIKey(ctx context.Context, userID string) (string, error)
	// DeleteAccount はユーザーレコードと関連データを削除する。
	DeleteAccount(ctx context.Context, userID string) error
}

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// openAIKeyResponse はAPIキー取得のレスポンス。
type openAIKeyResponse struct {
	Key string `json:"key"`
}

// RegisterUser はユーザー登録を処理する。冪等であり、既存ユーザーには
// 現在のレコードをそのまま返す。
// POST /api/registerUser
func (h *AccountHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	user, err := h.service.RegisterUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// GetOpenAIKey はモデル呼び出し用APIキーの取得を処理する。
// トークン残高が0以下の場合は402を返す。
// GET /api/getOpenAIKey
func (h *AccountHandler) GetOpenAIKey(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	key, err := h.service.GetOpenAIKey(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAIKeyResponse{Key: key})
}

// DeleteAccount はアカウント削除を処理する。
// DELETE /api/account
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
