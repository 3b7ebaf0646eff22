// Package tokenizer はメッセージテキストのトークン数算出を提供する。
// 厳密なトークナイズは外部の責務であり、ここではインターフェースと
// レジャー減算用の近似を返す既定実装を定義する。
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Tokenizer はテキストのトークン数を返すインターフェース。
// レジャーはこの戻り値をそのまま減算額として使用する。
type Tokenizer interface {
	// Count はテキストのトークン数を返す。空文字列には0を返す。
	Count(text string) int
}

// charsPerToken は1トークンあたりの平均文字数の近似値。
// 英語テキストにおけるBPE系トークナイザの経験則に合わせている。
const charsPerToken = 4

// Estimator は文字数ベースの近似でトークン数を算出する既定実装。
// 単語数を下限とすることで、短い単語が連続するテキストの過小評価を防ぐ。
type Estimator struct{}

// NewEstimator はEstimatorを生成する。
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Count はテキストのトークン数の近似値を返す。空文字列には0を返す。
func (e *Estimator) Count(text string) int {
	if text == "" {
		return 0
	}

	runes := utf8.RuneCountInString(text)
	estimate := (runes + charsPerToken - 1) / charsPerToken

	if words := len(strings.Fields(text)); words > estimate {
		return words
	}
	return estimate
}

// compile-time interface check
var _ Tokenizer = (*Estimator)(nil)
