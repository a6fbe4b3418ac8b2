// Package tabular は外部データベースAPIから読み取り専用のテーブルデータを
// 取得し、表示用に整形する。
package tabular

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/credential"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// CredentialSource は接続情報の解決に必要なインターフェース。
type CredentialSource interface {
	GetCredentials(ctx context.Context) (*credential.Credential, error)
}

// Metrics は外部データAPI呼び出しのメトリクス記録インターフェース。
type Metrics interface {
	RecordDataFetchStatus(statusCode int)
}

// noopMetrics は未設定時のデフォルト実装。
type noopMetrics struct{}

func (noopMetrics) RecordDataFetchStatus(int) {}

// Client は外部データベースAPIのHTTPクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	creds      CredentialSource
	maxPages   int
	metrics    Metrics
}

// NewClient はClientを生成する。httpClientにはSSRF対策済みのクライアントを渡すこと。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, creds CredentialSource, maxPages int) *Client {
	if maxPages < 1 {
		maxPages = 1
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		creds:      creds,
		maxPages:   maxPages,
		metrics:    noopMetrics{},
	}
}

// SetMetrics はメトリクスコレクターを設定する。FetchTableの呼び出し前に設定すること。
func (c *Client) SetMetrics(m Metrics) {
	if m != nil {
		c.metrics = m
	}
}

// listResponse は外部APIのレコード一覧レスポンス。
type listResponse struct {
	Records []model.TabularRecord `json:"records"`
	Offset  string                `json:"offset"`
}

// errorBody は外部APIのエラーレスポンス。
type errorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// FetchTable は指定テーブルの全レコードを取得する。
// 接続情報が未設定の場合、ネットワークアクセスを一切行わずに設定エラーを返す。
// ページネーションはoffsetカーソルに従い、maxPagesページまで取得する。
// レコードが0件の場合はエラーではなく空スライスを返す（呼び出し側で区別して扱う）。
func (c *Client) FetchTable(ctx context.Context, table string) ([]model.TabularRecord, error) {
	cred, err := c.creds.GetCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, model.NewNotConfiguredError()
	}

	records := make([]model.TabularRecord, 0, 64)
	offset := ""

	for page := 0; page < c.maxPages; page++ {
		resp, err := c.fetchPage(ctx, cred, table, offset)
		if err != nil {
			return nil, err
		}
		records = append(records, resp.Records...)
		if resp.Offset == "" {
			break
		}
		offset = resp.Offset
	}

	c.logger.Info("table fetched",
		slog.String("table", table),
		slog.Int("records", len(records)))

	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, cred *credential.Credential, table, offset string) (*listResponse, error) {
	u := fmt.Sprintf("%s/v0/%s/%s", c.baseURL, url.PathEscape(cred.BaseID), url.PathEscape(table))
	if offset != "" {
		u += "?offset=" + url.QueryEscape(offset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, model.NewFetchFailedError(0, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("table fetch failed", slog.String("table", table), slog.String("error", err.Error()))
		return nil, model.NewFetchFailedError(0, err.Error())
	}
	defer resp.Body.Close()

	c.metrics.RecordDataFetchStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		reason := http.StatusText(resp.StatusCode)
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error.Message != "" {
			reason = eb.Error.Message
		}
		c.logger.Warn("table fetch returned error status",
			slog.String("table", table),
			slog.Int("status", resp.StatusCode))
		return nil, model.NewFetchFailedError(resp.StatusCode, reason)
	}

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, model.NewFetchFailedError(resp.StatusCode, "レスポンスの解析に失敗しました")
	}
	return &list, nil
}
