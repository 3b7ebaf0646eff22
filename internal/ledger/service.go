// Package ledger はトークン残高の照会と消費額算出を提供する。
// 残高の実際の減算はチャット保存と同一トランザクションで行われるため、
// 本パッケージは事前チェックとコスト算出のみを担う。
package ledger

import (
	"context"
	"fmt"

	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/repository"
	"github.com/hitoshi/promptchat/internal/tokenizer"
)

// Service はトークンレジャーのサービス。
type Service struct {
	userRepo  repository.UserRepository
	tokenizer tokenizer.Tokenizer
}

// NewService は新しいServiceを生成する。
func NewService(userRepo repository.UserRepository, tok tokenizer.Tokenizer) *Service {
	return &Service{
		userRepo:  userRepo,
		tokenizer: tok,
	}
}

// CheckBalance はユーザーの現在残高を返す。
// ユーザーが存在しない場合はUserNotFound、残高が0以下の場合は
// InsufficientBalanceを返す。残高がちょうど0の場合も拒否される。
func (s *Service) CheckBalance(ctx context.Context, userID string) (int64, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return 0, model.NewUserNotFoundError()
	}
	if user.TokenBalance <= 0 {
		return user.TokenBalance, model.NewInsufficientBalanceError()
	}
	return user.TokenBalance, nil
}

// Cost はメッセージ1件の消費トークン数を返す。
// 課金対象はアシスタントロールのメッセージのみで、それ以外は常に0を返す。
func (s *Service) Cost(message *model.ChatMessage) int64 {
	if message == nil || message.Role != model.RoleAssistant {
		return 0
	}
	return int64(s.tokenizer.Count(message.Text))
}
