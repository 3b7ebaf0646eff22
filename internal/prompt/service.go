// Package prompt はプロンプトマーケットプレイスのサービスを提供する。
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/promptchat/internal/metrics"
	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/pinned"
	"github.com/hitoshi/promptchat/internal/repository"
	"github.com/hitoshi/promptchat/internal/security"
)

// 入力検証の境界値。長さはすべて文字数（ルーン数）で数える。
const (
	variantMinLen     = 15
	variantMaxLen     = 5000
	titleMinLen       = 4
	titleMaxLen       = 50
	descriptionMaxLen = 200

	// getPromptsの1リクエストあたりのID数上限。
	maxBatchSize = 100
)

// CreateInput はプロンプト作成の入力を表す。
type CreateInput struct {
	Prompts     []string `json:"prompts"`
	Title       string   `json:"title"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
	Public      bool     `json:"public"`
}

// UpdateInput はプロンプト部分更新の入力を表す。
// nilのフィールドは現在の値を維持する。
type UpdateInput struct {
	Prompts     *[]string `json:"prompts"`
	Title       *string   `json:"title"`
	Icon        *string   `json:"icon"`
	Description *string   `json:"description"`
	Public      *bool     `json:"public"`
}

// Service はプロンプトマーケットプレイスのサービス。
type Service struct {
	promptRepo repository.PromptRepository
	userRepo   repository.UserRepository
	pinned     *pinned.Manager
	sanitizer  security.TextSanitizerService
	iconGuard  security.IconGuardService
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewService は新しいServiceを生成する。
func NewService(
	promptRepo repository.PromptRepository,
	userRepo repository.UserRepository,
	pinnedMgr *pinned.Manager,
	sanitizer security.TextSanitizerService,
	iconGuard security.IconGuardService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		promptRepo: promptRepo,
		userRepo:   userRepo,
		pinned:     pinnedMgr,
		sanitizer:  sanitizer,
		iconGuard:  iconGuard,
		metrics:    collector,
		logger:     logger,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
}

// Create はプロンプトを新規作成する。
// 作成者の createdPrompts 集合への追加と、ピン留めリストへの追加も行う。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Prompt, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := validateVariants(input.Prompts); err != nil {
		return nil, err
	}
	if err := validateTitle(input.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(input.Description); err != nil {
		return nil, err
	}
	if err := s.validateIcon(input.Icon); err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.Prompt{
		ID:          s.newID(),
		UserID:      userID,
		Prompts:     s.sanitizeVariants(input.Prompts),
		Title:       s.sanitizer.Sanitize(input.Title),
		Icon:        input.Icon,
		Description: s.sanitizer.Sanitize(input.Description),
		Public:      input.Public,
		Upvotes:     []string{},
		CreatedOn:   now,
		UpdatedOn:   now,
	}

	if err := s.promptRepo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create prompt: %w", err)
	}

	if err := s.userRepo.AddCreatedPrompt(ctx, userID, p.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record created prompt: %w", err)
	}

	// 作成したプロンプトは作成者のピン留めリストにも追加される。
	if err := s.pinned.AppendPin(ctx, userID, p.ID, now); err != nil {
		return nil, fmt.Errorf("failed to pin created prompt: %w", err)
	}

	s.metrics.RecordPromptOp("create")
	s.logger.Info("prompt created",
		slog.String("user_id", userID),
		slog.String("prompt_id", p.ID),
		slog.Bool("public", p.Public),
	)

	return p, nil
}

// Update はプロンプトを部分更新する。作成者のみが実行できる。
// 提供されたフィールドのみが検証・更新され、投票者集合は変更されない。
func (s *Service) Update(ctx context.Context, userID, promptID string, input UpdateInput) (*model.Prompt, error) {
	p, err := s.findOwned(ctx, userID, promptID)
	if err != nil {
		return nil, err
	}

	if input.Prompts != nil {
		if err := validateVariants(*input.Prompts); err != nil {
			return nil, err
		}
		p.Prompts = s.sanitizeVariants(*input.Prompts)
	}
	if input.Title != nil {
		if err := validateTitle(*input.Title); err != nil {
			return nil, err
		}
		p.Title = s.sanitizer.Sanitize(*input.Title)
	}
	if input.Description != nil {
		if err := validateDescription(*input.Description); err != nil {
			return nil, err
		}
		// 空文字列を指定した場合は説明を消去する
		p.Description = s.sanitizer.Sanitize(*input.Description)
	}
	if input.Icon != nil {
		if err := s.validateIcon(*input.Icon); err != nil {
			return nil, err
		}
		p.Icon = *input.Icon
	}
	if input.Public != nil {
		p.Public = *input.Public
	}

	p.UpdatedOn = s.now()

	if err := s.promptRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update prompt: %w", err)
	}

	s.metrics.RecordPromptOp("update")
	s.logger.Info("prompt updated",
		slog.String("user_id", userID),
		slog.String("prompt_id", p.ID),
	)

	return p, nil
}

// Delete はプロンプトを削除する。作成者のみが実行できる。
// 投票はCASCADE削除され、作成者のcreatedPrompts集合とピン留めリストからも除去される。
func (s *Service) Delete(ctx context.Context, userID, promptID string) error {
	p, err := s.findOwned(ctx, userID, promptID)
	if err != nil {
		return err
	}

	if err := s.promptRepo.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}

	if err := s.userRepo.RemoveCreatedPrompt(ctx, userID, p.ID, s.now()); err != nil {
		// プロンプト本体は削除済み。集合の不整合はログに残して処理を続行する。
		s.logger.Error("failed to remove prompt from user record",
			slog.String("user_id", userID),
			slog.String("prompt_id", p.ID),
			slog.String("error", err.Error()),
		)
	}

	s.metrics.RecordPromptOp("delete")
	s.logger.Info("prompt deleted",
		slog.String("user_id", userID),
		slog.String("prompt_id", p.ID),
	)

	return nil
}

// Get は指定IDのプロンプトを取得する。
// 認証済みであれば作成者以外も取得でき、publicフラグによる絞り込みは行わない。
func (s *Service) Get(ctx context.Context, promptID string) (*model.Prompt, error) {
	if promptID == "" {
		return nil, model.NewValidationError("promptIDは必須です")
	}

	p, err := s.promptRepo.FindByID(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to find prompt: %w", err)
	}
	if p == nil {
		return nil, model.NewPromptNotFoundError(promptID)
	}
	return p, nil
}

// GetBatch はIDリストに一致するプロンプトをまとめて取得する。
// 呼び出し元のユーザーレコードが存在している必要がある。
// 解決できないIDは黙って省かれ、エラーにはならない。
func (s *Service) GetBatch(ctx context.Context, userID string, ids []string) ([]*model.Prompt, error) {
	if len(ids) == 0 {
		return nil, model.NewValidationError("promptIDsは必須です")
	}
	if len(ids) > maxBatchSize {
		return nil, model.NewValidationError(fmt.Sprintf("promptIDsは%d件以下にしてください", maxBatchSize))
	}
	for i, id := range ids {
		if id == "" {
			return nil, model.NewValidationError(fmt.Sprintf("promptIDs[%d] が空です", i))
		}
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	prompts, err := s.promptRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, nil
}

// Upvote はプロンプトに投票する。同一ユーザーによる重複投票は拒否される。
// 投票者のユーザーレコードが存在している必要がある。
func (s *Service) Upvote(ctx context.Context, userID, promptID string) error {
	if err := s.ensureUserExists(ctx, userID); err != nil {
		return err
	}
	if err := s.ensurePromptExists(ctx, promptID); err != nil {
		return err
	}

	added, err := s.promptRepo.AddUpvote(ctx, promptID, userID)
	if err != nil {
		return fmt.Errorf("failed to add upvote: %w", err)
	}
	if !added {
		return model.NewAlreadyVotedError(promptID)
	}

	s.metrics.RecordPromptOp("upvote")
	return nil
}

// Unvote は投票を取り消す。未投票の取り消しは拒否される。
func (s *Service) Unvote(ctx context.Context, userID, promptID string) error {
	if err := s.ensureUserExists(ctx, userID); err != nil {
		return err
	}
	if err := s.ensurePromptExists(ctx, promptID); err != nil {
		return err
	}

	removed, err := s.promptRepo.RemoveUpvote(ctx, promptID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove upvote: %w", err)
	}
	if !removed {
		return model.NewNotVotedError(promptID)
	}

	s.metrics.RecordPromptOp("unvote")
	return nil
}

// findOwned はプロンプトを取得し、呼び出し元が作成者であることを確認する。
func (s *Service) findOwned(ctx context.Context, userID, promptID string) (*model.Prompt, error) {
	if promptID == "" {
		return nil, model.NewValidationError("promptIDは必須です")
	}

	p, err := s.promptRepo.FindByID(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("failed to find prompt: %w", err)
	}
	if p == nil {
		return nil, model.NewPromptNotFoundError(promptID)
	}
	if p.UserID != userID {
		return nil, model.NewForbiddenError()
	}
	return p, nil
}

// ensureUserExists は呼び出し元のユーザーレコードの存在のみを確認する。
// 投票テーブルの外部キー違反を内部エラーとして漏らさないための事前検査。
func (s *Service) ensureUserExists(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}
	return nil
}

// ensurePromptExists はプロンプトの存在のみを確認する。
func (s *Service) ensurePromptExists(ctx context.Context, promptID string) error {
	if promptID == "" {
		return model.NewValidationError("promptIDは必須です")
	}

	p, err := s.promptRepo.FindByID(ctx, promptID)
	if err != nil {
		return fmt.Errorf("failed to find prompt: %w", err)
	}
	if p == nil {
		return model.NewPromptNotFoundError(promptID)
	}
	return nil
}

// sanitizeVariants は各バリアントをサニタイズした新しいスライスを返す。
func (s *Service) sanitizeVariants(variants []string) []string {
	out := make([]string, len(variants))
	for i, v := range variants {
		out[i] = s.sanitizer.Sanitize(v)
	}
	return out
}

// validateVariants はプロンプト本文バリアントの検証を行う。
// 空リストは不可。各バリアントは15文字以上5000文字以下。
func validateVariants(variants []string) error {
	if len(variants) == 0 {
		return model.NewValidationError("promptsは1件以上必要です")
	}
	for i, v := range variants {
		if n := utf8.RuneCountInString(v); n < variantMinLen || n > variantMaxLen {
			return model.NewValidationError(fmt.Sprintf("prompts[%d] の長さが範囲外です（%d〜%d文字）", i, variantMinLen, variantMaxLen))
		}
	}
	return nil
}

// validateTitle はタイトルの検証を行う。4文字以上50文字以下。
func validateTitle(title string) error {
	if n := utf8.RuneCountInString(title); n < titleMinLen || n > titleMaxLen {
		return model.NewValidationError(fmt.Sprintf("titleの長さが範囲外です（%d〜%d文字）", titleMinLen, titleMaxLen))
	}
	return nil
}

// validateDescription は説明文の検証を行う。説明は任意で、
// 指定された場合のみ200文字以下であることを確認する。
func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > descriptionMaxLen {
		return model.NewValidationError(fmt.Sprintf("descriptionの長さが範囲外です（%d文字以下）", descriptionMaxLen))
	}
	return nil
}

// validateIcon はアイコンURLの検証を行う。アイコンは任意で、
// 指定された場合のみhttpsスキームとSSRF防止の検査を適用する。
func (s *Service) validateIcon(icon string) error {
	if icon == "" {
		return nil
	}
	if err := s.iconGuard.ValidateIconURL(icon); err != nil {
		return model.NewValidationError(fmt.Sprintf("iconが不正です: %v", err))
	}
	return nil
}
