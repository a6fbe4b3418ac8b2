package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/middleware"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/model"
	"github.com/abundantia-ehf/taxwise-pathway-sub000/internal/tabular"
)

// ViewerInterface はテーブル表示のインターフェース。
type ViewerInterface interface {
	Load(ctx context.Context, table string) (*tabular.TableView, error)
}

// CredentialServiceInterface は接続情報管理のインターフェース。
type CredentialServiceInterface interface {
	IsConfigured() bool
	AdminOnly() bool
	SaveCredentials(ctx context.Context, token, baseID string) error
}

// DataMetrics はデータ取得のメトリクス記録インターフェース。
type DataMetrics interface {
	RecordDataFetchSuccess(table string)
	RecordDataFetchFailure(table string)
	RecordDataFetchLatency(duration time.Duration)
}

// noopDataMetrics は未設定時のデフォルト実装。
type noopDataMetrics struct{}

func (noopDataMetrics) RecordDataFetchSuccess(string)        {}
func (noopDataMetrics) RecordDataFetchFailure(string)        {}
func (noopDataMetrics) RecordDataFetchLatency(time.Duration) {}

// DataHandler は外部テーブルデータのHTTPハンドラー。
type DataHandler struct {
	viewer      ViewerInterface
	credentials CredentialServiceInterface
	metrics     DataMetrics
}

// NewDataHandler はDataHandlerを生成する。metricsはnil可。
func NewDataHandler(viewer ViewerInterface, credentials CredentialServiceInterface, metrics DataMetrics) *DataHandler {
	if metrics == nil {
		metrics = noopDataMetrics{}
	}
	return &DataHandler{
		viewer:      viewer,
		credentials: credentials,
		metrics:     metrics,
	}
}

// GetTable はテーブルの表示データを返す。
// レコードが0件の場合は200でwarning付きの空ビューを返す。
// GET /api/data/{table}
func (h *DataHandler) GetTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	start := time.Now()
	view, err := h.viewer.Load(r.Context(), table)
	h.metrics.RecordDataFetchLatency(time.Since(start))

	if err != nil {
		h.metrics.RecordDataFetchFailure(table)
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordDataFetchSuccess(table)
	writeJSON(w, http.StatusOK, view)
}

// dataStatusResponse は接続情報の設定状態レスポンス。
type dataStatusResponse struct {
	Configured bool `json:"configured"`
	AdminOnly  bool `json:"admin_only"`
}

// GetStatus は接続情報の設定状態を返す。トークン自体は含めない。
// GET /api/data-status
func (h *DataHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataStatusResponse{
		Configured: h.credentials.IsConfigured(),
		AdminOnly:  h.credentials.AdminOnly(),
	})
}

// credentialsRequest は接続情報保存リクエストのボディ。
type credentialsRequest struct {
	Token  string `json:"token"`
	BaseID string `json:"base_id"`
}

// SaveCredentials はユーザー入力の接続情報を保存する。
// 管理者専用モードでは403を返す（保存は行われない）。
// POST /api/data-credentials
func (h *DataHandler) SaveCredentials(w http.ResponseWriter, r *http.Request) {
	if h.credentials.AdminOnly() {
		middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewCredentialsLockedError())
		return
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.Token == "" || req.BaseID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "tokenとbase_idは必須です。",
			Category: "validation",
			Action:   "接続情報を両方入力してください。",
		})
		return
	}

	if err := h.credentials.SaveCredentials(r.Context(), req.Token, req.BaseID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
