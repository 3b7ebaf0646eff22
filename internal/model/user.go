// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 外部IdPが発行する不透明なIDをそのまま主キーとして使用する。
// 残高・チャットスニペット・ピン留めリストは1ユーザーレコードに
// 非正規化して保持し、更新は同一トランザクション内で行う。
type User struct {
	ID             string                 `json:"id"`
	TokenBalance   int64                  `json:"tokenBalance"`
	ChatSnippets   map[string]ChatSnippet `json:"chatSnippets"`
	PinnedPrompts  []string               `json:"pinnedPrompts"`
	CreatedPrompts []string               `json:"createdPrompts"`
	CreatedOn      time.Time              `json:"createdOn"`
	UpdatedOn      time.Time              `json:"updatedOn"`
}

// ChatSnippet はチャット一覧表示用の非正規化サマリー。
// チャット本体を読み込まずに一覧を描画するために使用する。
type ChatSnippet struct {
	ID          string    `json:"id"`
	Snippet     string    `json:"snippet"`
	PromptTitle string    `json:"promptTitle"`
	PromptIcon  string    `json:"promptIcon"`
	UpdatedOn   time.Time `json:"updatedOn"`
}
