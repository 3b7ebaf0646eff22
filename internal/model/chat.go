package model

import "time"

// ChatMessageRole はメッセージの発話者区分を表す。
type ChatMessageRole string

const (
	// RoleSystem はシステムメッセージ。
	RoleSystem ChatMessageRole = "system"
	// RoleUser はユーザーが入力したメッセージ。
	RoleUser ChatMessageRole = "user"
	// RoleAssistant はアシスタントが生成したメッセージ。
	// このロールのメッセージのみがトークン残高を消費する。
	RoleAssistant ChatMessageRole = "assistant"
)

// MessageStatus はメッセージの配信状態を表す。
type MessageStatus string

const (
	// StatusWaiting はネットワーク応答待ちの状態。
	StatusWaiting MessageStatus = "waiting"
	// StatusStreaming はストリーミング受信中の状態。
	StatusStreaming MessageStatus = "streaming"
	// StatusDone は受信完了の状態。
	StatusDone MessageStatus = "done"
	// StatusErrored はエラーが発生した状態。
	StatusErrored MessageStatus = "errored"
)

// ChatMessage はチャット内の1メッセージを表す。
// 永続化後はチャット全体の上書き以外では変更されない。
type ChatMessage struct {
	ID        string          `json:"id"`
	Role      ChatMessageRole `json:"role"`
	Timestamp int64           `json:"timestamp"`
	Text      string          `json:"text"`
	Status    MessageStatus   `json:"status"`
}

// ChatPrompt はチャットの起点となったプロンプトのコピー。
// スニペット生成時にタイトルとアイコンを参照する。
type ChatPrompt struct {
	ID      string   `json:"id"`
	Prompts []string `json:"prompts"`
	Title   string   `json:"title"`
	Icon    string   `json:"icon"`
}

// Chat は1ユーザーが所有するチャットの全文書を表す。
// 更新は常に文書全体の上書き（last-writer-wins）で行い、
// メッセージ列のマージは行わない。
type Chat struct {
	ID        string        `json:"id"`
	Prompt    ChatPrompt    `json:"prompt"`
	Messages  []ChatMessage `json:"messages"`
	CreatedOn time.Time     `json:"createdOn"`
	UpdatedOn time.Time     `json:"updatedOn"`
}

// noMessagesSnippet はメッセージが1件もないチャットのスニペット文言。
const noMessagesSnippet = "No messages"

// LastMessage は末尾のメッセージを返す。メッセージがない場合はnilを返す。
func (c *Chat) LastMessage() *ChatMessage {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// Snippet はチャット一覧表示用のスニペットを導出する。
// スニペット本文は先頭メッセージのテキスト、メッセージがない場合は固定文言。
func (c *Chat) Snippet(now time.Time) ChatSnippet {
	text := noMessagesSnippet
	if len(c.Messages) > 0 {
		text = c.Messages[0].Text
	}
	return ChatSnippet{
		ID:          c.ID,
		Snippet:     text,
		PromptTitle: c.Prompt.Title,
		PromptIcon:  c.Prompt.Icon,
		UpdatedOn:   now,
	}
}
