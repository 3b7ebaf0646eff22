// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, chat, prompt, billing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeValidation          = "VALIDATION_FAILED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeChatNotFound        = "CHAT_NOT_FOUND"
	ErrCodePromptNotFound      = "PROMPT_NOT_FOUND"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeAlreadyVoted        = "ALREADY_VOTED"
	ErrCodeNotVoted            = "NOT_VOTED"
	ErrCodeDuplicatePin        = "DUPLICATE_PIN"
)

// NewUnauthenticatedError は認証失敗エラーを生成する。
// reasonには失敗原因の短い説明を渡す。
func NewUnauthenticatedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  fmt.Sprintf("認証に失敗しました: %s", reason),
		Category: "auth",
		Action:   "サインインし直してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewForbiddenError は認可エラーを生成する。
// 認証済みだが対象レコードへの操作権限がない場合に使用する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が作成したレコードに対してのみ実行できます。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "先にユーザー登録を行ってください。",
	}
}

// NewChatNotFoundError はチャットが見つからない場合のエラーを生成する。
func NewChatNotFoundError(chatID string) *APIError {
	return &APIError{
		Code:     ErrCodeChatNotFound,
		Message:  fmt.Sprintf("指定されたチャットが見つかりません: %s", chatID),
		Category: "chat",
		Action:   "チャットIDを確認してください。",
	}
}

// NewPromptNotFoundError はプロンプトが見つからない場合のエラーを生成する。
func NewPromptNotFoundError(promptID string) *APIError {
	return &APIError{
		Code:     ErrCodePromptNotFound,
		Message:  fmt.Sprintf("指定されたプロンプトが見つかりません: %s", promptID),
		Category: "prompt",
		Action:   "プロンプトIDを確認してください。",
	}
}

// NewInsufficientBalanceError はトークン残高不足エラーを生成する。
func NewInsufficientBalanceError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientBalance,
		Message:  "トークン残高が不足しています。",
		Category: "billing",
		Action:   "残高を追加してから再度お試しください。",
	}
}

// NewAlreadyVotedError は重複投票エラーを生成する。
func NewAlreadyVotedError(promptID string) *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyVoted,
		Message:  fmt.Sprintf("このプロンプトには投票済みです: %s", promptID),
		Category: "prompt",
		Action:   "1つのプロンプトに投票できるのは1回までです。",
	}
}

// NewDuplicatePinError はピン留めリスト内の重複エントリエラーを生成する。
func NewDuplicatePinError(index int) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicatePin,
		Message:  fmt.Sprintf("ピン留めリストに重複したエントリがあります: %d番目", index),
		Category: "prompt",
		Action:   "同じプロンプトを複数回ピン留めすることはできません。",
	}
}

// NewNotVotedError は未投票の取り消しエラーを生成する。
func NewNotVotedError(promptID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotVoted,
		Message:  fmt.Sprintf("このプロンプトにはまだ投票していません: %s", promptID),
		Category: "prompt",
		Action:   "投票済みのプロンプトに対してのみ取り消しできます。",
	}
}
