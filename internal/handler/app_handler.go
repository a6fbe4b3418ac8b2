package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/content"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/middleware"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/theme"
)

// OnboardingServiceInterface はオンボーディング／サブスクリプション操作のインターフェース。
type OnboardingServiceInterface interface {
	CompleteOnboarding(ctx context.Context) error
	StartSubscription(ctx context.Context) error
}

// ThemeServiceInterface はテーマ操作のインターフェース。
type ThemeServiceInterface interface {
	Get(ctx context.Context) (theme.Theme, error)
	Set(ctx context.Context, value string) error
	Resolve(ctx context.Context, route string) (theme.Theme, error)
}

// ProgressServiceInterface はレッスン進捗操作のインターフェース。
type ProgressServiceInterface interface {
	Completed(ctx context.Context) ([]string, error)
	MarkCompleted(ctx context.Context, lessonID string) error
}

// AnnouncementServiceInterface はお知らせ取得のインターフェース。
type AnnouncementServiceInterface interface {
	List(ctx context.Context) ([]content.Announcement, error)
}

// AppHandler はアプリ内操作のHTTPハンドラー。
type AppHandler struct {
	onboarding    OnboardingServiceInterface
	theme         ThemeServiceInterface
	progress      ProgressServiceInterface
	announcements AnnouncementServiceInterface
}

// NewAppHandler はAppHandlerを生成する。
func NewAppHandler(
	onboarding OnboardingServiceInterface,
	themeService ThemeServiceInterface,
	progress ProgressServiceInterface,
	announcements AnnouncementServiceInterface,
) *AppHandler {
	return &AppHandler{
		onboarding:    onboarding,
		theme:         themeService,
		progress:      progress,
		announcements: announcements,
	}
}

// CompleteOnboarding はオンボーディング完了を記録する。
// POST /api/onboarding/complete
func (h *AppHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := h.onboarding.CompleteOnboarding(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StartSubscription はサブスクリプション開始を記録する。
// POST /api/subscription/start
func (h *AppHandler) StartSubscription(w http.ResponseWriter, r *http.Request) {
	if err := h.onboarding.StartSubscription(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// themeRequest はテーマ設定リクエストのボディ。
type themeRequest struct {
	Theme string `json:"theme"`
}

// themeResponse はテーマのAPIレスポンス。
type themeResponse struct {
	Theme string `json:"theme"`
}

// GetTheme は保存済みのテーマ設定を返す。
// GET /api/theme
func (h *AppHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	t, err := h.theme.Get(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themeResponse{Theme: string(t)})
}

// SetTheme はテーマ設定を更新する。
// POST /api/theme
func (h *AppHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.theme.Set(r.Context(), req.Theme); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themeResponse{Theme: req.Theme})
}

// ResolveTheme は画面パスに対する実効テーマを返す。
// GET /api/theme/resolve?route=/welcome
func (h *AppHandler) ResolveTheme(w http.ResponseWriter, r *http.Request) {
	route := r.URL.Query().Get("route")
	if route == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "routeクエリパラメータは必須です。",
			Category: "validation",
			Action:   "画面パスを指定してください。",
		})
		return
	}

	t, err := h.theme.Resolve(r.Context(), route)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themeResponse{Theme: string(t)})
}

// progressRequest はレッスン完了リクエストのボディ。
type progressRequest struct {
	LessonID string `json:"lesson_id"`
}

// progressResponse はレッスン進捗のAPIレスポンス。
type progressResponse struct {
	Completed []string `json:"completed"`
}

// GetProgress は完了済みレッスンの一覧を返す。
// GET /api/progress
func (h *AppHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ids, err := h.progress.Completed(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Completed: ids})
}

// MarkProgress はレッスンを完了として記録する。
// POST /api/progress
func (h *AppHandler) MarkProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.LessonID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "lesson_idは必須です。",
			Category: "validation",
			Action:   "レッスンIDを指定してください。",
		})
		return
	}

	if err := h.progress.MarkCompleted(r.Context(), req.LessonID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Announcements はお知らせ一覧を返す。
// GET /api/announcements
func (h *AppHandler) Announcements(w http.ResponseWriter, r *http.Request) {
	items, err := h.announcements.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]content.Announcement{"announcements": items})
}
