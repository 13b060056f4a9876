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

package errs

import (
	"errors"
	"fmt"
)

// ErrLevel : Error 分級，使最上層理解問題嚴重程度
type ErrLevel uint8

const (
	None ErrLevel = iota
	Fatal
	Warn
	Log
)

var errLvMap = map[ErrLevel]string{
	None:  "",
	Fatal: "fatal",
	Warn:  "warn",
	Log:   "log",
}

func ErrLv(errlv ErrLevel) string {
	if str, ok := errLvMap[errlv]; ok {
		return str
	}
	return ""
}

// Code : 錯誤類別，對應設定/方塊格式/空旋轉/狀態等分類
type Code uint8

const (
	CodeNone          Code = iota
	CodeConfig             // 設定欄位不合法（GameSettings）
	CodeShapeFormat        // 方塊 cells 長度或數值不合法
	CodeEmptyRotation      // 方塊某個旋轉沒有任何格子
	CodeState              // 在錯誤的狀態下呼叫操作
	CodeNotFound           // 查無資源（設定檔、session）
)

var codeMap = map[Code]string{
	CodeNone:          "",
	CodeConfig:        "config",
	CodeShapeFormat:   "shape_format",
	CodeEmptyRotation: "empty_rotation",
	CodeState:         "state",
	CodeNotFound:      "not_found",
}

func (c Code) String() string {
	if s, ok := codeMap[c]; ok {
		return s
	}
	return ""
}

// E 是統一的錯誤型別。
// Message 為主訊息；Extra 為額外上下文；Field 為出錯的設定欄位名稱（可空）；
// Cause 可串接下層錯誤（wrap）；ErrLv 表示嚴重程度；Code 表示錯誤類別。
type E struct {
	Message string
	Extra   string
	Field   string
	Cause   error
	ErrLv   ErrLevel
	Code    Code
}

// Error 實作 error 介面並回傳格式化後的錯誤訊息。
func (e *E) Error() string {
	base := fmt.Sprintf("errlv=%s %s", ErrLv(e.ErrLv), e.Message)
	if e.Code != CodeNone {
		base = fmt.Sprintf("errlv=%s code=%s %s", ErrLv(e.ErrLv), e.Code, e.Message)
	}
	if e.Extra != "" {
		base += " | extra: " + e.Extra
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap 讓 errors.Is / errors.As 能夠向下展開。
func (e *E) Unwrap() error { return e.Cause }

func New(errLv ErrLevel, msg string) *E {
	return &E{Message: msg, ErrLv: errLv}
}

func NewFatal(msg string) *E {
	return &E{Message: msg, ErrLv: Fatal}
}

func NewWarn(msg string) *E {
	return &E{Message: msg, ErrLv: Warn}
}

func NewLog(msg string) *E {
	return &E{Message: msg, ErrLv: Log}
}

func Fatalf(format string, a ...any) *E {
	return NewFatal(fmt.Sprintf(format, a...))
}

func Warnf(format string, a ...any) *E {
	return NewWarn(fmt.Sprintf(format, a...))
}

// WithCode 設定錯誤類別並回傳自身，方便鏈式建立。
func (e *E) WithCode(c Code) *E {
	e.Code = c
	return e
}

// Config 建立設定欄位錯誤（載入時致命）。field 為設定檔中的欄位名稱。
func Config(field string, format string, a ...any) *E {
	return &E{
		Message: fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, a...)),
		Field:   field,
		ErrLv:   Fatal,
		Code:    CodeConfig,
	}
}

// ShapeFormat 建立方塊格式錯誤。
func ShapeFormat(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Fatal, Code: CodeShapeFormat}
}

// EmptyRotation 建立空旋轉錯誤。
func EmptyRotation(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Fatal, Code: CodeEmptyRotation}
}

// State 建立狀態錯誤；屬於呼叫端問題，分級為 Warn。
func State(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Code: CodeState}
}

// NotFound 建立查無資源錯誤。
func NotFound(format string, a ...any) *E {
	return &E{Message: fmt.Sprintf(format, a...), ErrLv: Warn, Code: CodeNotFound}
}

// NewWithExtra 與 New 相同，但可附加額外上下文字串（不影響主訊息）。
func NewWithExtra(errLv ErrLevel, msg string, extra string) *E {
	e := New(errLv, msg)
	e.Extra = extra
	return e
}

// Wrap 使用給定的訊息包裝底層錯誤，建立一個 *E。
//
// 規則：
//   - 若 cause 已經是 *E，則沿用其 ErrLv、Code 與 Field。
//   - 若 cause 不是本包定義的 *E（標準庫或三方依賴錯誤），ErrLv 一律視為 Fatal。
func Wrap(cause error, msg string) *E {
	r := New(Fatal, msg)
	var e *E
	if errors.As(cause, &e) {
		r.ErrLv = e.ErrLv
		r.Code = e.Code
		r.Field = e.Field
	}
	r.Cause = cause
	return r
}

func AsErr(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return e, false
}

// HasCode 回報錯誤鏈上是否帶有指定類別。
func HasCode(err error, c Code) bool {
	for err != nil {
		if e, ok := err.(*E); ok && e.Code == c {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
