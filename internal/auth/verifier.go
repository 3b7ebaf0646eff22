// Package auth はIDトークンの検証機能を提供する。
// トークンの発行は外部IdPの責務であり、ここでは検証のみを行う。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier はIDトークン検証のインターフェース。
// 成功時はIdPが発行した不透明なsubject識別子を返す。
// 以降の全コンポーネントはこの識別子のみをテナントキーとして扱う。
type TokenVerifier interface {
	// Verify はbearerトークンを検証し、subject識別子を返す。
	Verify(ctx context.Context, token string) (string, error)
}

// LocalJWTVerifier はIdPと共有するHMAC秘密鍵でJWT署名をローカル検証する。
// ネットワーク呼び出しが不要なため、リモート検証より優先して使用する。
type LocalJWTVerifier struct {
	secret []byte
}

// NewLocalJWTVerifier はLocalJWTVerifierを生成する。
func NewLocalJWTVerifier(secret string) *LocalJWTVerifier {
	return &LocalJWTVerifier{secret: []byte(secret)}
}

// Verify はJWT署名をローカル検証し、subクレームを返す。
func (v *LocalJWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	claims := jwt.MapClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("token is invalid")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject claim")
	}
	return subject, nil
}

// RemoteVerifier はIdPのユーザー情報エンドポイントに問い合わせてトークンを検証する。
// 検証成功時のレスポンスボディ（{"id": "..."} 形式）からsubjectを取り出す。
type RemoteVerifier struct {
	verifierURL string
	client      *http.Client
}

// NewRemoteVerifier はRemoteVerifierを生成する。
func NewRemoteVerifier(verifierURL string, timeout time.Duration) *RemoteVerifier {
	return &RemoteVerifier{
		verifierURL: verifierURL,
		client:      &http.Client{Timeout: timeout},
	}
}

// remoteVerifyResponse はIdP検証エンドポイントのレスポンス。
type remoteVerifyResponse struct {
	ID  string `json:"id"`
	Sub string `json:"sub"`
}

// Verify はIdPにトークンを送信して検証する。
// 2xx以外のレスポンスは検証失敗として扱う。
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.verifierURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call verifier: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("verifier rejected token: status=%d body=%s", resp.StatusCode, string(body))
	}

	var decoded remoteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode verifier response: %w", err)
	}

	// IdPによってはidではなくsubで返すため両方を見る
	subject := decoded.ID
	if subject == "" {
		subject = decoded.Sub
	}
	if subject == "" {
		return "", fmt.Errorf("verifier response has no subject")
	}
	return subject, nil
}

// compile-time interface checks
var (
	_ TokenVerifier = (*LocalJWTVerifier)(nil)
	_ TokenVerifier = (*RemoteVerifier)(nil)
)
