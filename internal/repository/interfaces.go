// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/promptchat/internal/model"
)

// UserRepository はユーザーレコードの永続化インターフェース。
// 残高・スニペット・ピン留めリストはユーザーレコードに非正規化されている。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateIfAbsent はユーザーが存在しない場合のみ作成する。
	// 作成した場合はtrueを返す。既存ユーザーに対しては何も変更しない。
	CreateIfAbsent(ctx context.Context, user *model.User) (bool, error)

	// ReplacePinnedPrompts はピン留めリストを全置換する。
	ReplacePinnedPrompts(ctx context.Context, userID string, pinned []string, updatedOn time.Time) error

	// AppendPinnedPrompt はピン留めリスト末尾にIDを冪等に追加する。
	// 既に含まれている場合は何も変更しない（arrayUnion相当）。
	AppendPinnedPrompt(ctx context.Context, userID, promptID string, updatedOn time.Time) error

	// AddCreatedPrompt は作成プロンプト集合にIDを冪等に追加する（arrayUnion相当）。
	AddCreatedPrompt(ctx context.Context, userID, promptID string, updatedOn time.Time) error

	// RemoveCreatedPrompt は作成プロンプト集合とピン留めリストからIDを除去する（arrayRemove相当）。
	RemoveCreatedPrompt(ctx context.Context, userID, promptID string, updatedOn time.Time) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するchats、prompts、prompt_upvotesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// ChatRepository はチャット文書の永続化インターフェース。
type ChatRepository interface {
	// FindByID は(userID, chatID)でチャットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, chatID string) (*model.Chat, error)

	// SaveWithLedger はチャット文書の上書き保存と、ユーザーレコードへの
	// 残高減算・スニペット反映・updated_on更新を同一トランザクションで行う。
	// 残高は相対更新（token_balance - tokenCost）で適用するため、
	// 並行するSaveWithLedger同士で減算が失われることはない。
	SaveWithLedger(ctx context.Context, userID string, chat *model.Chat, snippet model.ChatSnippet, tokenCost int64, now time.Time) error
}

// PromptRepository はプロンプトテンプレートの永続化インターフェース。
type PromptRepository interface {
	// FindByID は指定IDのプロンプトを投票者集合付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Prompt, error)

	// ListByIDs はIDリストに一致するプロンプトを返す（id = ANY($1)）。
	// 解決できないIDは黙って省かれる。
	ListByIDs(ctx context.Context, ids []string) ([]*model.Prompt, error)

	// Create はプロンプトを作成する。
	Create(ctx context.Context, prompt *model.Prompt) error

	// Update はプロンプトの内容フィールドを上書き更新する。
	// 投票者集合はこのメソッドでは変更されない。
	Update(ctx context.Context, prompt *model.Prompt) error

	// Delete は指定IDのプロンプトを削除する。投票はCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// AddUpvote は投票を追加する。既に投票済みの場合はfalseを返す。
	// 集合への所属はprompt_upvotesの主キーで保証される。
	AddUpvote(ctx context.Context, promptID, userID string) (bool, error)

	// RemoveUpvote は投票を取り消す。未投票だった場合はfalseを返す。
	RemoveUpvote(ctx context.Context, promptID, userID string) (bool, error)

	// ListIconCandidates はアイコンURLが設定済みで画像が未キャッシュの
	// 公開プロンプトを返す。アイコンキャッシュワーカーが使用する。
	ListIconCandidates(ctx context.Context, limit int) ([]*model.Prompt, error)

	// UpdateIconCache はキャッシュしたアイコン画像を保存する。
	UpdateIconCache(ctx context.Context, promptID string, data []byte, mimeType string) error
}
