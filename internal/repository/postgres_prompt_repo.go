package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/promptchat/internal/model"
)

// PostgresPromptRepo はPostgreSQLを使用したプロンプトリポジトリ。
// 投票者集合はprompt_upvotesテーブルの主キーで重複を排除する。
type PostgresPromptRepo struct {
	db *sql.DB
}

// NewPostgresPromptRepo はPostgresPromptRepoを生成する。
func NewPostgresPromptRepo(db *sql.DB) *PostgresPromptRepo {
	return &PostgresPromptRepo{db: db}
}

// promptColumns はプロンプト取得クエリの共通SELECT句。
// 投票者集合をarray_aggで集約して1クエリで取得する。
const promptColumns = `
	SELECT p.id, p.user_id, p.prompts, p.title, p.icon, p.description, p.public,
	       p.icon_data, p.icon_mime, p.created_on, p.updated_on,
	       COALESCE(array_agg(v.user_id) FILTER (WHERE v.user_id IS NOT NULL), '{}') AS upvotes
	FROM prompts p
	LEFT JOIN prompt_upvotes v ON v.prompt_id = p.id`

// FindByID は指定IDのプロンプトを投票者集合付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPromptRepo) FindByID(ctx context.Context, id string) (*model.Prompt, error) {
	row := r.db.QueryRowContext(ctx,
		promptColumns+` WHERE p.id = $1 GROUP BY p.id`,
		id,
	)

	prompt, err := scanPrompt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find prompt by ID: %w", err)
	}
	return prompt, nil
}

// ListByIDs はIDリストに一致するプロンプトを返す（id = ANY($1)）。
// 解決できないIDは黙って省かれる。
func (r *PostgresPromptRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Prompt, error) {
	rows, err := r.db.QueryContext(ctx,
		promptColumns+` WHERE p.id = ANY($1) GROUP BY p.id`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts by IDs: %w", err)
	}
	defer rows.Close()

	var prompts []*model.Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prompts: %w", err)
	}
	return prompts, nil
}

// Create はプロンプトを作成する。
func (r *PostgresPromptRepo) Create(ctx context.Context, prompt *model.Prompt) error {
	variants, err := json.Marshal(prompt.Prompts)
	if err != nil {
		return fmt.Errorf("failed to encode prompt variants: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO prompts (id, user_id, prompts, title, icon, description, public, created_on, updated_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		prompt.ID, prompt.UserID, variants, prompt.Title, prompt.Icon,
		prompt.Description, prompt.Public, prompt.CreatedOn, prompt.UpdatedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to insert prompt: %w", err)
	}
	return nil
}

// Update はプロンプトの内容フィールドを上書き更新する。
// 投票者集合はこのメソッドでは変更されない。
// アイコンURLが変わった場合はキャッシュ済み画像を破棄する。
func (r *PostgresPromptRepo) Update(ctx context.Context, prompt *model.Prompt) error {
	variants, err := json.Marshal(prompt.Prompts)
	if err != nil {
		return fmt.Errorf("failed to encode prompt variants: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE prompts
		 SET prompts = $2, title = $3,
		     icon_data = CASE WHEN icon = $4 THEN icon_data ELSE NULL END,
		     icon_mime = CASE WHEN icon = $4 THEN icon_mime ELSE '' END,
		     icon = $4, description = $5, public = $6, updated_on = $7
		 WHERE id = $1`,
		prompt.ID, variants, prompt.Title, prompt.Icon,
		prompt.Description, prompt.Public, prompt.UpdatedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to update prompt: %w", err)
	}
	return requireRowAffected(result, "prompt", prompt.ID)
}

// Delete は指定IDのプロンプトを削除する。投票はCASCADE削除される。
func (r *PostgresPromptRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM prompts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete prompt: %w", err)
	}
	return requireRowAffected(result, "prompt", id)
}

// AddUpvote は投票を追加する。既に投票済みの場合はfalseを返す。
func (r *PostgresPromptRepo) AddUpvote(ctx context.Context, promptID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO prompt_upvotes (prompt_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT (prompt_id, user_id) DO NOTHING`,
		promptID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add upvote: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// RemoveUpvote は投票を取り消す。未投票だった場合はfalseを返す。
func (r *PostgresPromptRepo) RemoveUpvote(ctx context.Context, promptID, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM prompt_upvotes WHERE prompt_id = $1 AND user_id = $2`,
		promptID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove upvote: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListIconCandidates はアイコンURLが設定済みで画像が未キャッシュの
// 公開プロンプトを返す。アイコンキャッシュワーカーが使用する。
func (r *PostgresPromptRepo) ListIconCandidates(ctx context.Context, limit int) ([]*model.Prompt, error) {
	rows, err := r.db.QueryContext(ctx,
		promptColumns+`
		 WHERE p.public AND p.icon <> '' AND p.icon_data IS NULL
		 GROUP BY p.id
		 ORDER BY p.updated_on ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list icon candidates: %w", err)
	}
	defer rows.Close()

	var prompts []*model.Prompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, prompt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prompts: %w", err)
	}
	return prompts, nil
}

// UpdateIconCache はキャッシュしたアイコン画像を保存する。
func (r *PostgresPromptRepo) UpdateIconCache(ctx context.Context, promptID string, data []byte, mimeType string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE prompts SET icon_data = $2, icon_mime = $3 WHERE id = $1`,
		promptID, data, mimeType,
	)
	if err != nil {
		return fmt.Errorf("failed to update icon cache: %w", err)
	}
	return requireRowAffected(result, "prompt", promptID)
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPrompt は1行分のプロンプトレコードを読み取る。
func scanPrompt(row rowScanner) (*model.Prompt, error) {
	prompt := &model.Prompt{}
	var variants []byte
	var iconData []byte

	err := row.Scan(
		&prompt.ID, &prompt.UserID, &variants, &prompt.Title, &prompt.Icon,
		&prompt.Description, &prompt.Public, &iconData, &prompt.IconMime,
		&prompt.CreatedOn, &prompt.UpdatedOn, pq.Array(&prompt.Upvotes),
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(variants, &prompt.Prompts); err != nil {
		return nil, fmt.Errorf("failed to decode prompt variants: %w", err)
	}
	prompt.IconData = iconData
	if prompt.Upvotes == nil {
		prompt.Upvotes = []string{}
	}
	return prompt, nil
}

// compile-time interface check
var _ PromptRepository = (*PostgresPromptRepo)(nil)
