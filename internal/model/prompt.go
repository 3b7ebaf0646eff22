package model

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// Prompt はコミュニティで共有されるプロンプトテンプレートを表す。
// 内容の変更は所有者のみが行える。Upvotesは投票したユーザーIDの集合で、
// 構築上重複を含まない。
type Prompt struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userID"`
	Prompts     []string  `json:"prompts"`
	Title       string    `json:"title"`
	Icon        string    `json:"icon"`
	Description string    `json:"description,omitempty"`
	Public      bool      `json:"public"`
	Upvotes     []string  `json:"upvotes"`
	CreatedOn   time.Time `json:"createdOn"`
	UpdatedOn   time.Time `json:"updatedOn"`

	// IconData / IconMime はワーカーがキャッシュしたアイコン画像。
	// APIレスポンスにはdata URLに変換して載せる。
	IconData []byte `json:"-"`
	IconMime string `json:"-"`
}

// MarshalJSON はキャッシュ済みアイコン画像をdata URLのiconCachedフィールドとして
// 含めてシリアライズする。未キャッシュの場合はフィールド自体を省く。
func (p *Prompt) MarshalJSON() ([]byte, error) {
	type alias Prompt
	var cached string
	if len(p.IconData) > 0 && p.IconMime != "" {
		cached = "data:" + p.IconMime + ";base64," + base64.StdEncoding.EncodeToString(p.IconData)
	}
	return json.Marshal(struct {
		*alias
		IconCached string `json:"iconCached,omitempty"`
	}{(*alias)(p), cached})
}

// HasUpvoteFrom は指定ユーザーが投票済みかどうかを返す。
func (p *Prompt) HasUpvoteFrom(userID string) bool {
	for _, id := range p.Upvotes {
		if id == userID {
			return true
		}
	}
	return false
}
