// Package account はユーザー登録とアカウント管理のサービスを提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/repository"
)

// Service はアカウントのサービス。
type Service struct {
	userRepo             repository.UserRepository
	startingTokenBalance int64
	starterPinnedPrompts []string
	openAIAPIKey         string
	logger               *slog.Logger
	now                  func() time.Time
}

// NewService は新しいServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	startingTokenBalance int64,
	starterPinnedPrompts []string,
	openAIAPIKey string,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:             userRepo,
		startingTokenBalance: startingTokenBalance,
		starterPinnedPrompts: starterPinnedPrompts,
		openAIAPIKey:         openAIAPIKey,
		logger:               logger,
		now:                  time.Now,
	}
}

// RegisterUser はユーザーレコードを初期化する。冪等であり、
// 既存ユーザーに対しては何も変更せず現在のレコードを返す。
// 新規ユーザーには初期トークン残高と初期ピン留めリストが付与される。
func (s *Service) RegisterUser(ctx context.Context, userID string) (*model.User, error) {
	now := s.now()

	pinned := make([]string, len(s.starterPinnedPrompts))
	copy(pinned, s.starterPinnedPrompts)

	user := &model.User{
		ID:             userID,
		TokenBalance:   s.startingTokenBalance,
		ChatSnippets:   map[string]model.ChatSnippet{},
		PinnedPrompts:  pinned,
		CreatedPrompts: []string{},
		CreatedOn:      now,
		UpdatedOn:      now,
	}

	created, err := s.userRepo.CreateIfAbsent(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if !created {
		existing, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if existing == nil {
			return nil, model.NewUserNotFoundError()
		}
		return existing, nil
	}

	s.logger.Info("user registered",
		slog.String("user_id", userID),
		slog.Int64("starting_balance", s.startingTokenBalance),
	)

	return user, nil
}

// GetOpenAIKey はモデル呼び出し用のAPIキーを返す。
// トークン残高が0以下のユーザーには発行しない。
func (s *Service) GetOpenAIKey(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}
	if user.TokenBalance <= 0 {
		return "", model.NewInsufficientBalanceError()
	}
	return s.openAIAPIKey, nil
}

// GetUser は指定IDのユーザーレコードを返す。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// DeleteAccount はユーザーレコードと関連データを削除する。
// チャット・プロンプト・投票はデータベースのCASCADE制約で連鎖削除される。
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("account deleted", slog.String("user_id", userID))
	return nil
}
