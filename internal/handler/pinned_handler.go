package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/promptchat/internal/middleware"
)

// PinnedManagerInterface はピン留めハンドラーが必要とするサービスインターフェース。
type PinnedManagerInterface interface {
	// SetPinned はピン留めリストを全置換する。
	SetPinned(ctx context.Context, userID string, pinned []string, now time.Time) error
}

// PinnedHandler はピン留めプロンプトリストのHTTPハンドラー。
type PinnedHandler struct {
	manager PinnedManagerInterface
}

// NewPinnedHandler はPinnedHandlerを生成する。
func NewPinnedHandler(manager PinnedManagerInterface) *PinnedHandler {
	return &PinnedHandler{manager: manager}
}

// updatePinnedPromptsRequest はピン留めリスト更新リクエストのボディ。
type updatePinnedPromptsRequest struct {
	PinnedPrompts []string `json:"pinnedPrompts"`
}

// UpdatePinnedPrompts はピン留めリストの全置換を処理する。
// POST /api/updatePinnedPrompts
func (h *PinnedHandler) UpdatePinnedPrompts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	var req updatePinnedPromptsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestBody(w)
		return
	}

	if err := h.manager.SetPinned(r.Context(), userID, req.PinnedPrompts, time.Now()); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
