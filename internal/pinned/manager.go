// Package pinned はユーザーごとのピン留めプロンプトリストの管理を提供する。
package pinned

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/repository"
)

// 要素長の検証境界。文字数（ルーン数）で数え、
// 両端とも排他的（20文字ちょうど、5000文字ちょうどは不合格）。
const (
	pinMinLen = 20
	pinMaxLen = 5000
)

// Manager はピン留めプロンプトリストを管理する。
type Manager struct {
	userRepo repository.UserRepository
}

// NewManager は新しいManagerを生成する。
func NewManager(userRepo repository.UserRepository) *Manager {
	return &Manager{userRepo: userRepo}
}

// SetPinned はピン留めリストを全置換する。部分更新は提供しない。
// 各要素は文字数が 20 < n < 5000 を満たす必要があり、重複は許可されない。
func (m *Manager) SetPinned(ctx context.Context, userID string, pinned []string, now time.Time) error {
	if err := validatePinned(pinned); err != nil {
		return err
	}

	user, err := m.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := m.userRepo.ReplacePinnedPrompts(ctx, userID, pinned, now); err != nil {
		return fmt.Errorf("failed to replace pinned prompts: %w", err)
	}
	return nil
}

// AppendPin はピン留めリスト末尾にプロンプトIDを冪等に追加する。
// プロンプト作成時の自動ピン留めに使用され、SetPinnedの長さ検証は適用されない。
func (m *Manager) AppendPin(ctx context.Context, userID, promptID string, now time.Time) error {
	if err := m.userRepo.AppendPinnedPrompt(ctx, userID, promptID, now); err != nil {
		return fmt.Errorf("failed to append pinned prompt: %w", err)
	}
	return nil
}

// validatePinned はピン留めリスト全体を検証する。
// いずれかの要素が不合格の場合、リスト全体が拒否され何も書き込まれない。
// 長さ超過は検証エラー、重複は競合エラーとして区別する。
func validatePinned(pinned []string) error {
	seen := make(map[string]struct{}, len(pinned))
	for i, p := range pinned {
		if n := utf8.RuneCountInString(p); n <= pinMinLen || n >= pinMaxLen {
			return model.NewValidationError(fmt.Sprintf("pinnedPrompts[%d] の長さが範囲外です", i))
		}
		if _, dup := seen[p]; dup {
			return model.NewDuplicatePinError(i)
		}
		seen[p] = struct{}{}
	}
	return nil
}
