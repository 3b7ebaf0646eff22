package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/prompt"
)

// --- モック定義 ---

// mockPromptService はPromptServiceInterfaceのモック実装。
type mockPromptService struct {
	createFn   func(ctx context.Context, userID string, input prompt.CreateInput) (*model.Prompt, error)
	updateFn   func(ctx context.Context, userID, promptID string, input prompt.UpdateInput) (*model.Prompt, error)
	deleteFn   func(ctx context.Context, userID, promptID string) error
	getFn      func(ctx context.Context, promptID string) (*model.Prompt, error)
	getBatchFn func(ctx context.Context, userID string, ids []string) ([]*model.Prompt, error)
	upvoteFn   func(ctx context.Context, userID, promptID string) error
	unvoteFn   func(ctx context.Context, userID, promptID string) error
}

func (m *mockPromptService) Create(ctx context.Context, userID string, input prompt.CreateInput) (*model.Prompt, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, input)
	}
	return &model.Prompt{ID: "new-id", UserID: userID}, nil
}

func (m *mockPromptService) Update(ctx context.Context, userID, promptID string, input prompt.UpdateInput) (*model.Prompt, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, promptID, input)
	}
	return &model.Prompt{ID: promptID, UserID: userID}, nil
}

func (m *mockPromptService) Delete(ctx context.Context, userID, promptID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, promptID)
	}
	return nil
}

func (m *mockPromptService) Get(ctx context.Context, promptID string) (*model.Prompt, error) {
	if m.getFn != nil {
		return m.getFn(ctx, promptID)
	}
	return nil, model.NewPromptNotFoundError(promptID)
}

func (m *mockPromptService) GetBatch(ctx context.Context, userID string, ids []string) ([]*model.Prompt, error) {
	if m.getBatchFn != nil {
		return m.getBatchFn(ctx, userID, ids)
	}
	return nil, nil
}

func (m *mockPromptService) Upvote(ctx context.Context, userID, promptID string) error {
	if m.upvoteFn != nil {
		return m.upvoteFn(ctx, userID, promptID)
	}
	return nil
}

func (m *mockPromptService) Unvote(ctx context.Context, userID, promptID string) error {
	if m.unvoteFn != nil {
		return m.unvoteFn(ctx, userID, promptID)
	}
	return nil
}

// --- POST /api/setPrompt テスト ---

// TestPromptHandler_SetPrompt_Create はIDなしのリクエストが
// 新規作成にディスパッチされることを検証する。
func TestPromptHandler_SetPrompt_Create(t *testing.T) {
	createCalled := false
	svc := &mockPromptService{
		createFn: func(ctx context.Context, userID string, input prompt.CreateInput) (*model.Prompt, error) {
			createCalled = true
			if input.Title != "Email Assistant" {
				t.Errorf("title = %q, want %q", input.Title, "Email Assistant")
			}
			if !input.Public {
				t.Error("public = false, want true")
			}
			return &model.Prompt{ID: "new-id", UserID: userID, Title: input.Title}, nil
		},
	}
	h := NewPromptHandler(svc)

	body := `{
		"prompts": ["Draft a professional email about {topic}."],
		"title": "Email Assistant",
		"icon": "https://example.com/icon.png",
		"description": "Writes professional emails.",
		"public": true
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/setPrompt", strings.NewReader(body))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.SetPrompt(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !createCalled {
		t.Error("Create was not called")
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["id"] != "new-id" {
		t.Errorf("id = %v, want %q", result["id"], "new-id")
	}
}

// TestPromptHandler_SetPrompt_Update はID付きのリクエストが
// 部分更新にディスパッチされることを検証する。
func TestPromptHandler_SetPrompt_Update(t *testing.T) {
	svc := &mockPromptService{
		updateFn: func(ctx context.Context, userID, promptID string, input prompt.UpdateInput) (*model.Prompt, error) {
			if promptID != "prompt-1" {
				t.Errorf("promptID = %q, want %q", promptID, "prompt-1")
			}
			if input.Title == nil || *input.Title != "New Title" {
				t.Errorf("title = %v, want New Title", input.Title)
			}
			// 提供されていないフィールドはnilのまま渡される
			if input.Prompts != nil {
				t.Errorf("prompts = %v, want nil", input.Prompts)
			}
			if input.Public != nil {
				t.Errorf("public = %v, want nil", input.Public)
			}
			return &model.Prompt{ID: promptID, UserID: userID, Title: *input.Title}, nil
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/setPrompt", strings.NewReader(`{"id":"prompt-1","title":"New Title"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.SetPrompt(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestPromptHandler_SetPrompt_ValidationError は検証失敗が
// 400にマッピングされることを検証する。
func TestPromptHandler_SetPrompt_ValidationError(t *testing.T) {
	svc := &mockPromptService{
		createFn: func(ctx context.Context, userID string, input prompt.CreateInput) (*model.Prompt, error) {
			return nil, model.NewValidationError("titleの長さが範囲外です")
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/setPrompt", strings.NewReader(`{"title":"Hi"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.SetPrompt(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	var result apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", result.Code, model.ErrCodeValidation)
	}
}

// --- POST /api/deletePrompt テスト ---

// TestPromptHandler_DeletePrompt_Success は削除成功時にボディ"OK"が
// 返されることを検証する。
func TestPromptHandler_DeletePrompt_Success(t *testing.T) {
	var deletedID string
	svc := &mockPromptService{
		deleteFn: func(ctx context.Context, userID, promptID string) error {
			deletedID = promptID
			return nil
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/deletePrompt", strings.NewReader(`{"promptID":"prompt-1"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.DeletePrompt(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "OK" {
		t.Errorf("body = %q, want %q", got, "OK")
	}
	if deletedID != "prompt-1" {
		t.Errorf("deletedID = %q, want %q", deletedID, "prompt-1")
	}
}

// TestPromptHandler_DeletePrompt_Forbidden は他人のプロンプト削除が
// 403にマッピングされることを検証する。
func TestPromptHandler_DeletePrompt_Forbidden(t *testing.T) {
	svc := &mockPromptService{
		deleteFn: func(ctx context.Context, userID, promptID string) error {
			return model.NewForbiddenError()
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/deletePrompt", strings.NewReader(`{"promptID":"prompt-1"}`))
	req = withUserID(req, "attacker")
	w := httptest.NewRecorder()

	h.DeletePrompt(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// --- GET /api/getPrompt テスト ---

// TestPromptHandler_GetPrompt_Success はプロンプト取得の正常系を検証する。
func TestPromptHandler_GetPrompt_Success(t *testing.T) {
	svc := &mockPromptService{
		getFn: func(ctx context.Context, promptID string) (*model.Prompt, error) {
			return &model.Prompt{
				ID:      promptID,
				UserID:  "owner",
				Title:   "Email Assistant",
				Upvotes: []string{"user-2"},
			}, nil
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/getPrompt?promptID=prompt-1", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.GetPrompt(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["title"] != "Email Assistant" {
		t.Errorf("title = %v, want %q", result["title"], "Email Assistant")
	}
	upvotes, ok := result["upvotes"].([]interface{})
	if !ok || len(upvotes) != 1 {
		t.Errorf("upvotes = %v, want 1 voter", result["upvotes"])
	}
}

// TestPromptHandler_GetPrompt_NotFound は存在しないプロンプトの取得が
// 404にマッピングされることを検証する。
func TestPromptHandler_GetPrompt_NotFound(t *testing.T) {
	h := NewPromptHandler(&mockPromptService{})

	req := httptest.NewRequest(http.MethodGet, "/api/getPrompt?promptID=missing", nil)
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.GetPrompt(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- POST /api/getPrompts テスト ---

// TestPromptHandler_GetPrompts_Success は一括取得の正常系を検証する。
func TestPromptHandler_GetPrompts_Success(t *testing.T) {
	svc := &mockPromptService{
		getBatchFn: func(ctx context.Context, userID string, ids []string) ([]*model.Prompt, error) {
			if len(ids) != 2 {
				t.Errorf("ids length = %d, want 2", len(ids))
			}
			return []*model.Prompt{{ID: "p1"}}, nil
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/getPrompts", strings.NewReader(`{"promptIDs":["p1","missing"]}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.GetPrompts(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var result struct {
		Prompts []map[string]interface{} `json:"prompts"`
	}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Prompts) != 1 {
		t.Errorf("prompts length = %d, want 1", len(result.Prompts))
	}
}

// --- POST /api/upvotePrompt / /api/unUpvotePrompt テスト ---

// TestPromptHandler_UpvotePrompt_Success は投票成功時に204が返されることを検証する。
func TestPromptHandler_UpvotePrompt_Success(t *testing.T) {
	svc := &mockPromptService{
		upvoteFn: func(ctx context.Context, userID, promptID string) error {
			if userID != "user-1" || promptID != "prompt-1" {
				t.Errorf("Upvote(%q, %q), want (user-1, prompt-1)", userID, promptID)
			}
			return nil
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/upvotePrompt", strings.NewReader(`{"promptID":"prompt-1"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpvotePrompt(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}

// TestPromptHandler_UpvotePrompt_AlreadyVoted は重複投票が
// 409にマッピングされることを検証する。
func TestPromptHandler_UpvotePrompt_AlreadyVoted(t *testing.T) {
	svc := &mockPromptService{
		upvoteFn: func(ctx context.Context, userID, promptID string) error {
			return model.NewAlreadyVotedError(promptID)
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/upvotePrompt", strings.NewReader(`{"promptID":"prompt-1"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UpvotePrompt(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

// TestPromptHandler_UnUpvotePrompt_NotVoted は未投票の取り消しが
// 409にマッピングされることを検証する。
func TestPromptHandler_UnUpvotePrompt_NotVoted(t *testing.T) {
	svc := &mockPromptService{
		unvoteFn: func(ctx context.Context, userID, promptID string) error {
			return model.NewNotVotedError(promptID)
		},
	}
	h := NewPromptHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/unUpvotePrompt", strings.NewReader(`{"promptID":"prompt-1"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.UnUpvotePrompt(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}
