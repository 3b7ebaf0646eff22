// Package chat はチャット文書の保存・取得サービスを提供する。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/promptchat/internal/ledger"
	"github.com/hitoshi/promptchat/internal/metrics"
	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/repository"
)

// Service はチャットのサービス。
// 保存時のトークン課金とスニペット非正規化もここで統括する。
type Service struct {
	chatRepo repository.ChatRepository
	ledger   *ledger.Service
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(chatRepo repository.ChatRepository, ledgerSvc *ledger.Service, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		chatRepo: chatRepo,
		ledger:   ledgerSvc,
		metrics:  collector,
		logger:   logger,
		now:      time.Now,
	}
}

// PutChat はチャット文書全体を上書き保存する。
// 同一IDの既存チャットはメッセージ列を含め完全に置き換えられる（last-writer-wins）。
//
// 保存前にトークン残高を検査し、残高が0以下の場合は何も書き込まずに拒否する。
// 末尾のメッセージがアシスタントロールの場合、そのテキストのトークン数を
// 残高から減算する。減算・文書保存・スニペット反映は同一トランザクションで行われる。
func (s *Service) PutChat(ctx context.Context, userID string, chat *model.Chat) error {
	if chat == nil || chat.ID == "" {
		return model.NewValidationError("chatIDは必須です")
	}

	// 残高検査。ユーザー不在と残高不足はここで弾かれ、書き込みは発生しない。
	if _, err := s.ledger.CheckBalance(ctx, userID); err != nil {
		return err
	}

	now := s.now()

	var tokenCost int64
	if last := chat.LastMessage(); last != nil && last.Role == model.RoleAssistant {
		tokenCost = s.ledger.Cost(last)
	}

	chat.UpdatedOn = now
	if chat.CreatedOn.IsZero() {
		chat.CreatedOn = now
	}

	snippet := chat.Snippet(now)

	if err := s.chatRepo.SaveWithLedger(ctx, userID, chat, snippet, tokenCost, now); err != nil {
		return fmt.Errorf("failed to save chat: %w", err)
	}

	if tokenCost > 0 {
		s.metrics.RecordTokensDebited(tokenCost)
	}
	s.metrics.RecordChatSaved()

	s.logger.Info("chat saved",
		slog.String("user_id", userID),
		slog.String("chat_id", chat.ID),
		slog.Int64("token_cost", tokenCost),
		slog.Int("message_count", len(chat.Messages)),
	)

	return nil
}

// GetChat は(userID, chatID)でチャット文書を取得する。
// 所有者以外のチャットには到達できない。見つからない場合はChatNotFoundを返す。
func (s *Service) GetChat(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	if chatID == "" {
		return nil, model.NewValidationError("chatIDは必須です")
	}

	chat, err := s.chatRepo.FindByID(ctx, userID, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}
	if chat == nil {
		return nil, model.NewChatNotFoundError(chatID)
	}
	return chat, nil
}
