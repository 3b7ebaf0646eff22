// Package iconcache はプロンプトアイコンのバックグラウンドキャッシュ処理を提供する。
// アイコンURLが設定済みで画像が未キャッシュの公開プロンプトを定期的に取得し、
// SSRF防止機能付きクライアントで画像をダウンロードしてデータベースに保存する。
// クライアントは外部URLを直接参照せずに済むようになる。
package iconcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/promptchat/internal/metrics"
	"github.com/hitoshi/promptchat/internal/model"
	"github.com/hitoshi/promptchat/internal/repository"
)

// 1サイクルあたりの処理対象プロンプト数の上限。
const batchLimit = 50

// Worker はアイコンキャッシュのバックグラウンドワーカー。
type Worker struct {
	promptRepo repository.PromptRepository
	client     *http.Client
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	maxSize    int64
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// clientにはSSRF防止機能付きのHTTPクライアントを渡すこと。
// maxSizeが0以下の場合はデフォルト値2MiBを使用する。
func NewWorker(
	promptRepo repository.PromptRepository,
	client *http.Client,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxSize int64,
) *Worker {
	if maxSize <= 0 {
		maxSize = 2 << 20
	}
	return &Worker{
		promptRepo: promptRepo,
		client:     client,
		metrics:    collector,
		logger:     logger,
		maxSize:    maxSize,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("アイコンキャッシュワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int64("max_size", w.maxSize),
	)

	// 起動直後に1回実行
	if err := w.RunOnce(ctx); err != nil {
		w.logger.Error("アイコンキャッシュサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("アイコンキャッシュワーカーを停止しました")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("アイコンキャッシュサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はキャッシュ対象プロンプトを1回取得し、順次アイコンを取得・保存する。
// 個々の取得失敗はログとメトリクスに記録し、サイクル全体は継続する。
func (w *Worker) RunOnce(ctx context.Context) error {
	start := time.Now()

	prompts, err := w.promptRepo.ListIconCandidates(ctx, batchLimit)
	if err != nil {
		return fmt.Errorf("failed to list icon candidates: %w", err)
	}

	if len(prompts) == 0 {
		return nil
	}

	w.logger.Info("アイコンキャッシュサイクルを開始します",
		slog.Int("candidate_count", len(prompts)),
	)

	cached := 0
	for _, p := range prompts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := w.cacheIcon(ctx, p); err != nil {
			w.metrics.RecordIconFetchFailure()
			w.logger.Warn("アイコンの取得に失敗しました",
				slog.String("prompt_id", p.ID),
				slog.String("icon_url", p.Icon),
				slog.String("error", err.Error()),
			)
			continue
		}
		cached++
		w.metrics.RecordIconCached()
	}

	duration := time.Since(start)
	w.logger.Info("アイコンキャッシュサイクルが完了しました",
		slog.Int("candidate_count", len(prompts)),
		slog.Int("cached_count", cached),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// cacheIcon は1件のプロンプトアイコンを取得して保存する。
// アイコンURLがHTMLページを返す場合は<link rel="icon">を探索して再取得する。
func (w *Worker) cacheIcon(ctx context.Context, p *model.Prompt) error {
	data, mimeType, err := w.fetch(ctx, p.Icon)
	if err != nil {
		return err
	}

	if strings.HasPrefix(mimeType, "text/html") {
		iconURL, err := discoverIconURL(p.Icon, data)
		if err != nil {
			return err
		}
		data, mimeType, err = w.fetch(ctx, iconURL)
		if err != nil {
			return err
		}
	}

	if !strings.HasPrefix(mimeType, "image/") {
		return fmt.Errorf("unexpected content type: %s", mimeType)
	}

	if err := w.promptRepo.UpdateIconCache(ctx, p.ID, data, mimeType); err != nil {
		return fmt.Errorf("failed to store icon: %w", err)
	}
	return nil
}

// fetch はURLからボディを取得する。ボディはmaxSizeで打ち切られる。
func (w *Worker) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, w.maxSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read body: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	return data, mimeType, nil
}

// discoverIconURL はHTML文書から<link rel="icon">のURLを探索する。
// 相対URLはページURLを基準に解決する。見つからない場合はエラーを返す。
func discoverIconURL(pageURL string, body []byte) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	href := findIconLink(doc)
	if href == "" {
		return "", fmt.Errorf("no icon link found in page: %s", pageURL)
	}

	resolved, err := base.Parse(href)
	if err != nil {
		return "", fmt.Errorf("failed to resolve icon URL: %w", err)
	}
	return resolved.String(), nil
}

// findIconLink はHTMLノードツリーを走査してrel属性にiconを含むlink要素のhrefを返す。
func findIconLink(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "link" {
		var rel, href string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "rel":
				rel = strings.ToLower(attr.Val)
			case "href":
				href = attr.Val
			}
		}
		if strings.Contains(rel, "icon") && href != "" {
			return href
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findIconLink(c); found != "" {
			return found
		}
	}
	return ""
}
