package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/promptchat/internal/model"
)

// --- モック定義 ---

// mockPinnedManager はPinnedManagerInterfaceのモック実装。
type mockPinnedManager struct {
	setPinnedFn func(ctx context.Context, userID string, pinned []string, now time.Time) error
}

func (m *mockPinnedManager) SetPinned(ctx context.Context, userID string, pinned []string, now time.Time) error {
	if m.setPinnedFn != nil {
		return m.setPinnedFn(ctx, userID, pinned, now)
	}
	return nil
}

// --- POST /api/updatePinnedPrompts テスト ---

// TestPinnedHandler_UpdatePinnedPrompts_Success は全置換成功時に
// 204が返されることを検証する。
func TestPinnedHandler_UpdatePinnedPrompts_Success(t *testing.T) {
	var replaced []string
	mgr := &mockPinnedManager{
		setPinnedFn: func(ctx context.Context, userID string, pinned []string, now time.Time) error {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			replaced = pinned
			return nil
		},
	}
	h := NewPinnedHandler(mgr)

	long := strings.Repeat("x", 30)
	body := `{"pinnedPrompts":["` + long + `a","` + long + `b"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/updatePinnedPrompts", strings.NewReader(body))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdatePinnedPrompts(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if len(replaced) != 2 {
		t.Errorf("replaced length = %d, want 2", len(replaced))
	}
}

// TestPinnedHandler_UpdatePinnedPrompts_ValidationError は検証失敗が
// 400にマッピングされることを検証する。
func TestPinnedHandler_UpdatePinnedPrompts_ValidationError(t *testing.T) {
	mgr := &mockPinnedManager{
		setPinnedFn: func(ctx context.Context, userID string, pinned []string, now time.Time) error {
			return model.NewValidationError("pinnedPrompts[0] の長さが範囲外です")
		},
	}
	h := NewPinnedHandler(mgr)

	req := httptest.NewRequest(http.MethodPost, "/api/updatePinnedPrompts", strings.NewReader(`{"pinnedPrompts":["short"]}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdatePinnedPrompts(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestPinnedHandler_UpdatePinnedPrompts_InvalidBody は不正JSONが
// 400になることを検証する。
func TestPinnedHandler_UpdatePinnedPrompts_InvalidBody(t *testing.T) {
	h := NewPinnedHandler(&mockPinnedManager{})

	req := httptest.NewRequest(http.MethodPost, "/api/updatePinnedPrompts", strings.NewReader("{broken"))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpdatePinnedPrompts(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
