package handler

import (
	"net/http"

	"github.com/hitoshi/feedpress/internal/model"
)

// SettingsServiceInterface はサイト設定サービスのインターフェース。
type SettingsServiceInterface interface {
	Get() model.Settings
	Update(patch []byte) (model.Settings, error)
}

// SettingsHandler はサイト設定のHTTPハンドラー。
type SettingsHandler struct {
	service SettingsServiceInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// GetSettings は現在の設定を返す。未保存の場合はデフォルト値を返す。
// GET /api/settings
//
// 公開エンドポイントのため、データストアのパスワードと接続文字列は返さない。
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, redactSettings(h.service.Get()))
}

// UpdateSettings は指定されたフィールドを現在の設定に上書きして保存する。
// POST /api/admin/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	s, err := h.service.Update(body)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, redactSettings(s))
}

func redactSettings(s model.Settings) model.Settings {
	if s.Database.Password != "" {
		s.Database.Password = model.RedactedSecret
	}
	s.Database.ConnectionString = ""
	return s
}
