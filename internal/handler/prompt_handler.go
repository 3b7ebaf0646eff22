package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/promptchat/internal/middleware"
	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/prompt"
)

// PromptServiceInterface はプロンプトハンドラーが必要とするサービスインターフェース。
type PromptServiceInterface interface {
	// Create はプロンプトを新規作成する。
	Create(ctx context.Context, userID string, input prompt.CreateInput) (*model.Prompt, error)
	// Update はプロンプトを部分更新する。
	Update(ctx context.Context, userID, promptID string, input prompt.UpdateInput) (*model.Prompt, error)
	// Delete はプロンプトを削除する。
	Delete(ctx context.Context, userID, promptID string) error
	// Get はプロンプトを取得する。
	Get(ctx context.Context, promptID string) (*model.Prompt, error)
	// GetBatch はIDリストに一致するプロンプトをまとめて取得する。
	GetBatch(ctx context.Context, userID string, ids []string) ([]*model.Prompt, error)
	// Upvote はプロンプトに投票する。
	Upvote(ctx context.Context, userID, promptID string) error
	// Unvote は投票を取り消す。
	Unvote(ctx context.Context, userID, promptID string) error
}

// PromptHandler はプロンプトマーケットプレイスのHTTPハンドラー。
type PromptHandler struct {
	service PromptServiceInterface
}

// NewPromptHandler はPromptHandlerを生成する。
func NewPromptHandler(service PromptServiceInterface) *PromptHandler {
	return &PromptHandler{service: service}
}

// setPromptRequest はプロンプト作成・更新リクエストのボディ。
// IDが空の場合は新規作成、指定された場合は部分更新として扱う。
type setPromptRequest struct {
	ID          string    `json:"id"`
	Prompts     *[]string `json:"prompts"`
	Title       *string   `json:"title"`
	Icon        *string   `json:"icon"`
	Description *string   `json:"description"`
	Public      *bool     `json:"public"`
}

// promptIDRequest はプロンプトIDのみを持つリクエストのボディ。
type promptIDRequest struct {
	PromptID string `json:"promptID"`
}

// getPromptsRequest はプロンプト一括取得リクエストのボディ。
type getPromptsRequest struct {
	PromptIDs []string `json:"promptIDs"`
}

// getPromptsResponse はプロンプト一括取得のレスポンス。
type getPromptsResponse struct {
	Prompts []*model.Prompt `json:"prompts"`
}

// SetPrompt はプロンプトの作成または更新を処理する。
// POST /api/setPrompt
func (h *PromptHandler) SetPrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req setPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	var result *model.Prompt
	if req.ID == "" {
		result, err = h.service.Create(r.Context(), userID, createInputFromRequest(req))
	} else {
		result, err = h.service.Update(r.Context(), userID, req.ID, prompt.UpdateInput{
			Prompts:     req.Prompts,
			Title:       req.Title,
			Icon:        req.Icon,
			Description: req.Description,
			Public:      req.Public,
		})
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// DeletePrompt はプロンプト削除を処理する。
// 成功時はボディ "OK" を返す。
// POST /api/deletePrompt
func (h *PromptHandler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req promptIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	if err := h.service.Delete(r.Context(), userID, req.PromptID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("OK"))
}

// GetPrompt はプロンプト1件の取得を処理する。
// GET /api/getPrompt?promptID=...
func (h *PromptHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeUnauthenticated(w)
		return
	}

	promptID := r.URL.Query().Get("promptID")

	p, err := h.service.Get(r.Context(), promptID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// GetPrompts はプロンプトの一括取得を処理する。
// POST /api/getPrompts
func (h *PromptHandler) GetPrompts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req getPromptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	prompts, err := h.service.GetBatch(r.Context(), userID, req.PromptIDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(getPromptsResponse{Prompts: prompts})
}

// UpvotePrompt は投票を処理する。
// POST /api/upvotePrompt
func (h *PromptHandler) UpvotePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req promptIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	if err := h.service.Upvote(r.Context(), userID, req.PromptID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnUpvotePrompt は投票の取り消しを処理する。
// POST /api/unUpvotePrompt
func (h *PromptHandler) UnUpvotePrompt(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req promptIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	if err := h.service.Unvote(r.Context(), userID, req.PromptID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// createInputFromRequest は新規作成入力に変換する。
// ポインタがnilのフィールドはゼロ値となり、検証はサービス層で行われる。
func createInputFromRequest(req setPromptRequest) prompt.CreateInput {
	input := prompt.CreateInput{}
	if req.Prompts != nil {
		input.Prompts = *req.Prompts
	}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Icon != nil {
		input.Icon = *req.Icon
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Public != nil {
		input.Public = *req.Public
	}
	return input
}
