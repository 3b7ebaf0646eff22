package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signTestToken はテスト用のHMAC署名付きJWTを生成する。
func signTestToken(t *testing.T, secret, subject string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

// --- LocalJWTVerifier テスト ---

// TestLocalJWTVerifier_Success は正しい鍵で署名されたトークンの検証を検証する。
func TestLocalJWTVerifier_Success(t *testing.T) {
	v := NewLocalJWTVerifier("shared-secret")

	token := signTestToken(t, "shared-secret", "user-123")

	subject, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "user-123" {
		t.Errorf("subject = %q, want %q", subject, "user-123")
	}
}

// TestLocalJWTVerifier_WrongSecret は異なる鍵で署名されたトークンが
// 拒否されることを検証する。
func TestLocalJWTVerifier_WrongSecret(t *testing.T) {
	v := NewLocalJWTVerifier("shared-secret")

	token := signTestToken(t, "other-secret", "user-123")

	if _, err := v.Verify(context.Background(), token); err == nil {
		t.Error("Verify() error = nil, want error")
	}
}

// TestLocalJWTVerifier_Expired は期限切れトークンが拒否されることを検証する。
func TestLocalJWTVerifier_Expired(t *testing.T) {
	v := NewLocalJWTVerifier("shared-secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := v.Verify(context.Background(), signed); err == nil {
		t.Error("Verify() error = nil, want error")
	}
}

// TestLocalJWTVerifier_NoSubject はsubクレームのないトークンが
// 拒否されることを検証する。
func TestLocalJWTVerifier_NoSubject(t *testing.T) {
	v := NewLocalJWTVerifier("shared-secret")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := v.Verify(context.Background(), signed); err == nil {
		t.Error("Verify() error = nil, want error")
	}
}

// TestLocalJWTVerifier_Garbage はJWT形式でない文字列が拒否されることを検証する。
func TestLocalJWTVerifier_Garbage(t *testing.T) {
	v := NewLocalJWTVerifier("shared-secret")

	if _, err := v.Verify(context.Background(), "not-a-jwt"); err == nil {
		t.Error("Verify() error = nil, want error")
	}
}

// --- RemoteVerifier テスト ---

// TestRemoteVerifier_Success はIdPが受理したトークンの検証を検証する。
// トークンはAuthorizationヘッダーでIdPへ転送される。
func TestRemoteVerifier_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer token-abc")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "user-456"}`))
	}))
	defer server.Close()

	v := NewRemoteVerifier(server.URL, 5*time.Second)

	subject, err := v.Verify(context.Background(), "token-abc")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "user-456" {
		t.Errorf("subject = %q, want %q", subject, "user-456")
	}
}

// TestRemoteVerifier_SubFallback はidの代わりにsubで返すIdPへの対応を検証する。
func TestRemoteVerifier_SubFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sub": "user-789"}`))
	}))
	defer server.Close()

	v := NewRemoteVerifier(server.URL, 5*time.Second)

	subject, err := v.Verify(context.Background(), "token-abc")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if subject != "user-789" {
		t.Errorf("subject = %q, want %q", subject, "user-789")
	}
}

// TestRemoteVerifier_Rejected はIdPが拒否したトークンの検証を検証する。
func TestRemoteVerifier_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	v := NewRemoteVerifier(server.URL, 5*time.Second)

	if _, err := v.Verify(context.Background(), "bad-token"); err == nil {
		t.Error("Verify() error = nil, want error")
	}
}

// TestRemoteVerifier_EmptySubject はsubjectを含まないレスポンスが
// 拒否されることを検証する。
func TestRemoteVerifier_EmptySubject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	v := NewRemoteVerifier(server.URL, 5*time.Second)

	if _, err := v.Verify(context.Background(), "token-abc"); err == nil {
		t.Error("Verify() error = nil, want error")
	}
}
