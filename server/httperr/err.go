// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package httperr

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/zintix-labs/blocklab/errs"
)

// StatusCode 將錯誤映射成 HTTP status code。
//
// 規則（邊界層最小映射、可預期）：
//   - ctx timeout/cancel → 504/408（請求生命週期問題）
//   - errs.CodeNotFound  → 404（session / 遊戲不存在）
//   - errs.CodeState     → 409（例如遊戲已結束仍送出操作）
//   - errs.Warn          → 400（請求/參數問題）
//   - errs.Fatal         → 500（系統/不可恢復問題）
//
// 本函數屬於 HTTP 邊界層，核心錯誤包不依賴 net/http。
func StatusCode(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout // 504
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout // 408
	}

	e, ok := errs.AsErr(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Code {
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeState:
		return http.StatusConflict
	}
	if e.ErrLv == errs.Warn {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Body 錯誤回應的 JSON 內容。
type Body struct {
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
	Field  string `json:"field,omitempty"`
	Error  string `json:"error"`
}

// Errs 依 StatusCode 寫回 JSON 錯誤。
func Errs(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := StatusCode(err)
	b := Body{Status: status, Error: err.Error()}
	if e, ok := errs.AsErr(err); ok {
		b.Code = e.Code.String()
		b.Field = e.Field
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(b)
}

// Log 只記錄值得關注的錯誤：請求逾時/衝突為 Warn，5xx 為 Error，其餘 4xx 交給 access log。
func Log(log *slog.Logger, msg string, err error) {
	if err == nil || log == nil {
		return
	}
	status := StatusCode(err)
	if (status == 408) || (status == 409) || (status == 429) {
		log.Warn(msg, slog.Any("err", err))
	} else if (status >= 500) && (status < 600) {
		log.Error(msg, slog.Any("err", err))
	}
}
