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

package netsvr

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const DefaultAddr string = ":5808"

// Timeouts http.Server 的逾時設定。/v1/sim 會跑較久，WriteTimeout 要留餘裕。
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

var DefaultTimeouts = Timeouts{
	Read:  10 * time.Second,
	Write: 60 * time.Second,
	Idle:  120 * time.Second,
}

// -----------------------------------------------------------------------------
//  Chi 服務
// -----------------------------------------------------------------------------

// ChiAdapter 以 chi (基於標準庫 net/http) 實作 NetSvr。
type ChiAdapter struct {
	router chi.Router
	server *http.Server
	addr   string
}

// NewChiServer 建立自訂監聽位址的 ChiAdapter；addr 為空時使用 DefaultAddr。
func NewChiServer(addr string) *ChiAdapter {
	return NewChiServerWith(addr, DefaultTimeouts)
}

// NewChiServerWith 同 NewChiServer，可指定逾時；零值欄位沿用 DefaultTimeouts。
func NewChiServerWith(addr string, to Timeouts) *ChiAdapter {
	if addr == "" {
		addr = DefaultAddr
	}
	if to.Read <= 0 {
		to.Read = DefaultTimeouts.Read
	}
	if to.Write <= 0 {
		to.Write = DefaultTimeouts.Write
	}
	if to.Idle <= 0 {
		to.Idle = DefaultTimeouts.Idle
	}
	cr := chi.NewRouter()
	return &ChiAdapter{
		router: cr,
		server: &http.Server{
			Addr:         addr,
			Handler:      cr,
			ReadTimeout:  to.Read,
			WriteTimeout: to.Write,
			IdleTimeout:  to.Idle,
		},
		addr: addr,
	}
}

// NewChiServerDefault 建立監聽 DefaultAddr 的 ChiAdapter。
func NewChiServerDefault() *ChiAdapter {
	return NewChiServer(DefaultAddr)
}

// -----------------------------------------------------------------------------
//  介面實作 NetSvr / (會同時實作 Component)
// -----------------------------------------------------------------------------

func (c *ChiAdapter) Ready() bool {
	return (c != nil) && (c.router != nil) && (c.server != nil) &&
		(c.addr != "") && strings.Contains(c.addr, ":") &&
		(c.server.Handler != nil) && (c.server.Handler == c.router)
}

// Run 阻塞直到 server 停止；正常 Shutdown 不視為錯誤。
func (c *ChiAdapter) Run() error {
	err := c.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (c *ChiAdapter) Shutdown(ctx context.Context) error {
	return c.server.Shutdown(ctx)
}

func (c *ChiAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.router.ServeHTTP(w, r)
}

func (c *ChiAdapter) Use(mw func(http.Handler) http.Handler) {
	c.router.Use(mw)
}

func (c *ChiAdapter) Get(path string, h http.HandlerFunc) {
	c.router.Get(path, h)
}

func (c *ChiAdapter) Post(path string, h http.HandlerFunc) {
	c.router.Post(path, h)
}

func (c *ChiAdapter) Put(path string, h http.HandlerFunc) {
	c.router.Put(path, h)
}

func (c *ChiAdapter) Delete(path string, h http.HandlerFunc) {
	c.router.Delete(path, h)
}

func (c *ChiAdapter) Handle(path string, h http.Handler) {
	c.router.Handle(path, h)
}

func (c *ChiAdapter) Group(path string, fn func(subRouter NetRouter)) {
	c.router.Route(path, func(r chi.Router) {
		fn(&ChiAdapter{router: r})
	})
}

// -----------------------------------------------------------------------------
//  其他公開方法
// -----------------------------------------------------------------------------

func (c *ChiAdapter) Address() string {
	return c.addr
}

// Param 取得路由參數，例如 /games/{id} 的 id。
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// RoutePattern 回傳請求命中的路由樣板（例如 /v1/games/{id}），未命中時回傳空字串。
// 需在 handler 執行完之後呼叫，chi 才會填好完整樣板。
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}
