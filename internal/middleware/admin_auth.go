// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/feedpress/internal/model"
)

// NewAdminAuthMiddleware は管理APIのBearerトークン認証ミドルウェアを返す。
// tokenが空の場合は認証を行わない。起動時の警告は呼び出し側で出力する。
func NewAdminAuthMiddleware(token string) func(next http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				slog.Warn("admin authentication failed",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", clientIP(r)),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				WriteRequestErrorResponse(w, r, http.StatusUnauthorized, &model.APIError{
					Code:     ErrCodeUnauthorized,
					Message:  "管理APIの認証に失敗しました。",
					Category: "auth",
					Action:   "有効な管理トークンをAuthorizationヘッダーに指定してください。",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
