package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/promptchat/internal/model"
)

// PostgresChatRepo はPostgreSQLを使用したチャットリポジトリ。
// チャット本体はJSONB文書として(user_id, id)キーで保存する。
type PostgresChatRepo struct {
	db *sql.DB
}

// NewPostgresChatRepo はPostgresChatRepoを生成する。
func NewPostgresChatRepo(db *sql.DB) *PostgresChatRepo {
	return &PostgresChatRepo{db: db}
}

// FindByID は(userID, chatID)でチャットを取得する。見つからない場合はnilを返す。
func (r *PostgresChatRepo) FindByID(ctx context.Context, userID, chatID string) (*model.Chat, error) {
	var document []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT document FROM chats WHERE user_id = $1 AND id = $2`,
		userID, chatID,
	).Scan(&document)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find chat: %w", err)
	}

	chat := &model.Chat{}
	if err := json.Unmarshal(document, chat); err != nil {
		return nil, fmt.Errorf("failed to decode chat document: %w", err)
	}
	return chat, nil
}

// SaveWithLedger はチャット文書の上書き保存と、ユーザーレコードへの
// 残高減算・スニペット反映・updated_on更新を同一トランザクションで行う。
// 残高は相対更新（token_balance - tokenCost）で適用するため、
// 並行するSaveWithLedger同士で減算が失われることはない。
func (r *PostgresChatRepo) SaveWithLedger(ctx context.Context, userID string, chat *model.Chat, snippet model.ChatSnippet, tokenCost int64, now time.Time) error {
	document, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("failed to encode chat document: %w", err)
	}
	snippetJSON, err := json.Marshal(snippet)
	if err != nil {
		return fmt.Errorf("failed to encode chat snippet: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// チャット文書を全体上書き（last-writer-wins）
	_, err = tx.ExecContext(ctx,
		`INSERT INTO chats (user_id, id, document, created_on, updated_on)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (user_id, id)
		 DO UPDATE SET document = EXCLUDED.document, updated_on = EXCLUDED.updated_on`,
		userID, chat.ID, document, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}

	// 残高・スニペット・タイムスタンプを1回の更新で反映する
	result, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET token_balance = token_balance - $2,
		     chat_snippets = jsonb_set(chat_snippets, ARRAY[$3::text], $4::jsonb, true),
		     updated_on = $5
		 WHERE id = $1`,
		userID, tokenCost, chat.ID, snippetJSON, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update user ledger: %w", err)
	}
	if err := requireRowAffected(result, "user", userID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ ChatRepository = (*PostgresChatRepo)(nil)
