package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// profileRow はprofilesテーブルの1行のワイヤ表現。
type profileRow struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Provider            string     `json:"provider"`
	PhotoURL            string     `json:"photo_url"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

// subscriptionRow はsubscriptionsテーブルの1行のワイヤ表現。
type subscriptionRow struct {
	UserID          string     `json:"user_id"`
	Status          string     `json:"status"`
	StartDate       time.Time  `json:"start_date"`
	TrialEndDate    *time.Time `json:"trial_end_date,omitempty"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
}

// GetProfile はユーザーIDに対応するプロフィール行を取得する。
// 行が存在しない場合は(nil, nil)を返す。
func (c *Client) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var rows []profileRow
	if err := c.selectRows(ctx, "profiles", "id", userID, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	p := &model.Profile{
		ID:                  row.ID,
		Name:                row.Name,
		PhotoURL:            row.PhotoURL,
		Provider:            model.AuthProvider(row.Provider),
		OnboardingCompleted: row.OnboardingCompleted,
	}
	if row.CreatedAt != nil {
		p.CreatedAt = *row.CreatedAt
	}
	if row.UpdatedAt != nil {
		p.UpdatedAt = *row.UpdatedAt
	}
	return p, nil
}

// CreateProfile はプロフィール行を新規作成する。
func (c *Client) CreateProfile(ctx context.Context, p *model.Profile) error {
	row := profileRow{
		ID:                  p.ID,
		Name:                p.Name,
		Provider:            string(p.Provider),
		PhotoURL:            p.PhotoURL,
		OnboardingCompleted: p.OnboardingCompleted,
	}
	if err := c.insertRow(ctx, "profiles", row); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpdateProfile はプロフィール行の指定カラムを更新する。
func (c *Client) UpdateProfile(ctx context.Context, userID string, patch map[string]any) error {
	if err := c.updateRows(ctx, "profiles", "id", userID, patch); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// GetSubscription はユーザーIDに対応するサブスクリプション行を取得する。
// 行が存在しない場合は(nil, nil)を返す。
func (c *Client) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	var rows []subscriptionRow
	if err := c.selectRows(ctx, "subscriptions", "user_id", userID, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	return &model.Subscription{
		UserID:          row.UserID,
		Status:          model.SubscriptionStatus(row.Status),
		StartDate:       row.StartDate,
		TrialEndDate:    row.TrialEndDate,
		NextBillingDate: row.NextBillingDate,
	}, nil
}

// CreateSubscription はサブスクリプション行を新規作成する。
func (c *Client) CreateSubscription(ctx context.Context, s *model.Subscription) error {
	row := subscriptionRow{
		UserID:          s.UserID,
		Status:          string(s.Status),
		StartDate:       s.StartDate,
		TrialEndDate:    s.TrialEndDate,
		NextBillingDate: s.NextBillingDate,
	}
	if err := c.insertRow(ctx, "subscriptions", row); err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// UpdateSubscription はサブスクリプション行の指定カラムを更新する。
// 行は削除されないため、statusの遷移は常にこの更新で表現される。
func (c *Client) UpdateSubscription(ctx context.Context, userID string, patch map[string]any) error {
	if err := c.updateRows(ctx, "subscriptions", "user_id", userID, patch); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// selectRows は単一キー一致でのselectを実行する。
func (c *Client) selectRows(ctx context.Context, table, keyColumn, keyValue string, out any) error {
	reqURL := fmt.Sprintf("%s/rest/v1/%s?%s=eq.%s&select=*",
		c.baseURL, table, keyColumn, url.QueryEscape(keyValue))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setRowHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("select on %s returned status %d", table, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s rows: %w", table, err)
	}
	return nil
}

// insertRow は1行のinsertを実行する。
func (c *Client) insertRow(ctx context.Context, table string, row any) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setRowHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("insert on %s returned status %d", table, resp.StatusCode)
	}
	return nil
}

// updateRows は単一キー一致でのupdate（部分更新）を実行する。
func (c *Client) updateRows(ctx context.Context, table, keyColumn, keyValue string, patch map[string]any) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	reqURL := fmt.Sprintf("%s/rest/v1/%s?%s=eq.%s",
		c.baseURL, table, keyColumn, url.QueryEscape(keyValue))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, reqURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setRowHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update on %s returned status %d", table, resp.StatusCode)
	}
	return nil
}

// setRowHeaders は行レベルAPIの共通ヘッダーを設定する。
// アクセストークンが未取得の場合はAPIキーをBearerとして使用する。
func (c *Client) setRowHeaders(req *http.Request) {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
}
