package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/promptchat/internal/middleware"
	"github.com/hitoshi/promptchat/internal/model"
)

// mockTokenVerifier はauth.TokenVerifierのモック実装。
type mockTokenVerifier struct {
	verifyFn func(ctx context.Context, token string) (string, error)
}

func (m *mockTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return "", fmt.Errorf("verify not configured")
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rateLimiter.Stop)

	verifier := &mockTokenVerifier{
		verifyFn: func(ctx context.Context, token string) (string, error) {
			if token == "valid-token" {
				return "user-1", nil
			}
			return "", fmt.Errorf("invalid token")
		},
	}

	deps := &RouterDeps{
		TokenVerifier:     verifier,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rateLimiter,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),

		AccountService: &mockAccountService{},
		ChatService:    &mockChatService{},
		PromptService:  &mockPromptService{},
		PinnedManager:  &mockPinnedManager{},
	}

	return NewRouter(deps)
}

// TestRouter_Health はヘルスチェックが認証なしで到達できることを検証する。
func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_APIRequiresAuth は全APIルートがbearerトークンを要求することを検証する。
func TestRouter_APIRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/registerUser"},
		{http.MethodGet, "/api/getOpenAIKey"},
		{http.MethodPost, "/api/updateChat"},
		{http.MethodGet, "/api/getChat"},
		{http.MethodPost, "/api/setPrompt"},
		{http.MethodPost, "/api/deletePrompt"},
		{http.MethodGet, "/api/getPrompt"},
		{http.MethodPost, "/api/getPrompts"},
		{http.MethodPost, "/api/upvotePrompt"},
		{http.MethodPost, "/api/unUpvotePrompt"},
		{http.MethodPost, "/api/updatePinnedPrompts"},
		{http.MethodDelete, "/api/account"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
			}
			if body := strings.TrimSpace(w.Body.String()); body != "Unauthorized. Malformed header." {
				t.Errorf("body = %q, want %q", body, "Unauthorized. Malformed header.")
			}
		})
	}
}

// TestRouter_BadTokenRejected は検証器が拒否したトークンで403が返されることを検証する。
func TestRouter_BadTokenRejected(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/registerUser", nil)
	req.Header.Set("Authorization", "Bearer forged-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "Unauthorized. Bad token." {
		t.Errorf("body = %q, want %q", body, "Unauthorized. Bad token.")
	}
}

// TestRouter_AuthorizedFlow は有効なトークンでハンドラーまで到達することを検証する。
func TestRouter_AuthorizedFlow(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/registerUser", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "user-1") {
		t.Errorf("body = %q, want to contain user-1", w.Body.String())
	}
}

// TestRouter_UpdateChatFlow は/api/updateChatがチャット更新専用の
// レート制限を通過してハンドラーに到達することを検証する。
func TestRouter_UpdateChatFlow(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/updateChat", strings.NewReader(`{"id":"chat-1"}`))
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want %q", w.Body.String(), "OK")
	}
}

// TestRouter_CORSHeaders はCORSヘッダーが付与されることを検証する。
func TestRouter_CORSHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/registerUser", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

// TestMapAPIErrorToHTTPStatus はエラーコードとHTTPステータスの対応を検証する。
func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{code: model.ErrCodeValidation, want: http.StatusBadRequest},
		{code: model.ErrCodeUnauthenticated, want: http.StatusForbidden},
		{code: model.ErrCodeForbidden, want: http.StatusForbidden},
		{code: model.ErrCodeInsufficientBalance, want: http.StatusPaymentRequired},
		{code: model.ErrCodeUserNotFound, want: http.StatusNotFound},
		{code: model.ErrCodeChatNotFound, want: http.StatusNotFound},
		{code: model.ErrCodePromptNotFound, want: http.StatusNotFound},
		{code: model.ErrCodeAlreadyVoted, want: http.StatusConflict},
		{code: model.ErrCodeNotVoted, want: http.StatusConflict},
		{code: model.ErrCodeDuplicatePin, want: http.StatusConflict},
		{code: "UNKNOWN", want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code})
			if got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
