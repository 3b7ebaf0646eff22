package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/promptchat/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var snippets, pinned, created []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, token_balance, chat_snippets, pinned_prompts, created_prompts, created_on, updated_on
		 FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.TokenBalance, &snippets, &pinned, &created, &user.CreatedOn, &user.UpdatedOn)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	if err := json.Unmarshal(snippets, &user.ChatSnippets); err != nil {
		return nil, fmt.Errorf("failed to decode chat snippets: %w", err)
	}
	if err := json.Unmarshal(pinned, &user.PinnedPrompts); err != nil {
		return nil, fmt.Errorf("failed to decode pinned prompts: %w", err)
	}
	if err := json.Unmarshal(created, &user.CreatedPrompts); err != nil {
		return nil, fmt.Errorf("failed to decode created prompts: %w", err)
	}

	return user, nil
}

// CreateIfAbsent はユーザーが存在しない場合のみ作成する。
// 作成した場合はtrueを返す。既存ユーザーに対しては何も変更しない。
func (r *PostgresUserRepo) CreateIfAbsent(ctx context.Context, user *model.User) (bool, error) {
	snippets, err := marshalOrDefault(user.ChatSnippets, "{}")
	if err != nil {
		return false, fmt.Errorf("failed to encode chat snippets: %w", err)
	}
	pinned, err := marshalOrDefault(user.PinnedPrompts, "[]")
	if err != nil {
		return false, fmt.Errorf("failed to encode pinned prompts: %w", err)
	}
	created, err := marshalOrDefault(user.CreatedPrompts, "[]")
	if err != nil {
		return false, fmt.Errorf("failed to encode created prompts: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, token_balance, chat_snippets, pinned_prompts, created_prompts, created_on, updated_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID, user.TokenBalance, snippets, pinned, created, user.CreatedOn, user.UpdatedOn,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ReplacePinnedPrompts はピン留めリストを全置換する。
func (r *PostgresUserRepo) ReplacePinnedPrompts(ctx context.Context, userID string, pinned []string, updatedOn time.Time) error {
	encoded, err := marshalOrDefault(pinned, "[]")
	if err != nil {
		return fmt.Errorf("failed to encode pinned prompts: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET pinned_prompts = $2, updated_on = $3 WHERE id = $1`,
		userID, encoded, updatedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to replace pinned prompts: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// AppendPinnedPrompt はピン留めリスト末尾にIDを冪等に追加する。
// 既に含まれている場合は何も変更しない（arrayUnion相当）。
func (r *PostgresUserRepo) AppendPinnedPrompt(ctx context.Context, userID, promptID string, updatedOn time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET pinned_prompts = CASE
		         WHEN pinned_prompts ? $2 THEN pinned_prompts
		         ELSE pinned_prompts || to_jsonb($2::text)
		     END,
		     updated_on = $3
		 WHERE id = $1`,
		userID, promptID, updatedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to append pinned prompt: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// AddCreatedPrompt は作成プロンプト集合にIDを冪等に追加する（arrayUnion相当）。
func (r *PostgresUserRepo) AddCreatedPrompt(ctx context.Context, userID, promptID string, updatedOn time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET created_prompts = CASE
		         WHEN created_prompts ? $2 THEN created_prompts
		         ELSE created_prompts || to_jsonb($2::text)
		     END,
		     updated_on = $3
		 WHERE id = $1`,
		userID, promptID, updatedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to add created prompt: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// RemoveCreatedPrompt は作成プロンプト集合とピン留めリストからIDを除去する（arrayRemove相当）。
func (r *PostgresUserRepo) RemoveCreatedPrompt(ctx context.Context, userID, promptID string, updatedOn time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET created_prompts = (
		         SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
		         FROM jsonb_array_elements_text(created_prompts) AS e
		         WHERE e <> $2
		     ),
		     pinned_prompts = (
		         SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
		         FROM jsonb_array_elements_text(pinned_prompts) AS e
		         WHERE e <> $2
		     ),
		     updated_on = $3
		 WHERE id = $1`,
		userID, promptID, updatedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to remove created prompt: %w", err)
	}
	return requireRowAffected(result, "user", userID)
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するchats、prompts、prompt_upvotesはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRowAffected(result, "user", id)
}

// marshalOrDefault はvをJSONに変換する。nilの場合はデフォルトリテラルを返す。
func marshalOrDefault(v any, defaultLiteral string) ([]byte, error) {
	if v == nil {
		return []byte(defaultLiteral), nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(encoded) == "null" {
		return []byte(defaultLiteral), nil
	}
	return encoded, nil
}

// requireRowAffected は更新対象の行が存在したことを検証する。
func requireRowAffected(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
