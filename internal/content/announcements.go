// Package content はお知らせフィードの取得とキャッシュを提供する。
package content

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
)

// maxFeedBodySize はフィード本文の最大読み込みサイズ。
const maxFeedBodySize = 2 * 1024 * 1024

// Announcement はお知らせ1件。
type Announcement struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// URLValidator はフェッチ前のURL検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Sanitizer はお知らせ本文の無害化インターフェース。
type Sanitizer interface {
	SanitizeText(s string) string
}

// AnnouncementService はお知らせフィードを取得し、TTL付きでキャッシュする。
// フェッチ失敗時はキャッシュが残っていれば古い内容を返し、なければエラーを返す。
type AnnouncementService struct {
	httpClient *http.Client
	logger     *slog.Logger
	validator  URLValidator
	sanitizer  Sanitizer
	feedURL    string
	ttl        time.Duration
	limit      int
	now        func() time.Time

	mu        sync.Mutex
	cached    []Announcement
	fetchedAt time.Time
}

// NewAnnouncementService はAnnouncementServiceを生成する。
// httpClientにはSSRF対策済みのクライアントを渡すこと。
func NewAnnouncementService(
	httpClient *http.Client,
	logger *slog.Logger,
	validator URLValidator,
	sanitizer Sanitizer,
	feedURL string,
	ttl time.Duration,
	limit int,
) *AnnouncementService {
	return &AnnouncementService{
		httpClient: httpClient,
		logger:     logger,
		validator:  validator,
		sanitizer:  sanitizer,
		feedURL:    feedURL,
		ttl:        ttl,
		limit:      limit,
		now:        time.Now,
	}
}

// Enabled はお知らせフィードが設定されているかを返す。
func (s *AnnouncementService) Enabled() bool {
	return s.feedURL != ""
}

// List はお知らせ一覧を返す。キャッシュが有効期間内であればフェッチしない。
func (s *AnnouncementService) List(ctx context.Context) ([]Announcement, error) {
	if !s.Enabled() {
		return []Announcement{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.cached, nil
	}

	items, err := s.fetch(ctx)
	if err != nil {
		if s.cached != nil {
			s.logger.Warn("announcements refresh failed, serving cached items",
				slog.String("error", err.Error()))
			return s.cached, nil
		}
		return nil, model.NewAnnouncementsFailedError(err.Error())
	}

	s.cached = items
	s.fetchedAt = s.now()
	return items, nil
}

func (s *AnnouncementService) fetch(ctx context.Context) ([]Announcement, error) {
	if err := s.validator.ValidateURL(s.feedURL); err != nil {
		return nil, fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードがHTTPステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, fmt.Errorf("フィード本文の読み取りに失敗しました: %w", err)
	}

	parser := gofeed.NewParser()
	parsed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	items := make([]Announcement, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		if len(items) >= s.limit {
			break
		}
		items = append(items, Announcement{
			Title:       s.sanitizer.SanitizeText(item.Title),
			Link:        item.Link,
			Summary:     s.sanitizer.SanitizeText(item.Description),
			PublishedAt: item.PublishedParsed,
		})
	}

	s.logger.Info("announcements fetched", slog.Int("items", len(items)))
	return items, nil
}
