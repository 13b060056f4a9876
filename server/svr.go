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

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/server/api"
	"github.com/zintix-labs/blocklab/server/app"
	"github.com/zintix-labs/blocklab/server/netsvr"
	"github.com/zintix-labs/blocklab/server/svrcfg"
)

// Run 是 server 套件的「組裝器」與「啟動入口」。
//
// 它負責：
//  1. 驗證 SvrCfg（logger、Lab 與各項上限）。
//  2. 建立 session store 與 HTTP server。
//  3. 註冊路由與 middleware（api.RegisterRoutes）。
//  4. 以 app.App 同時管理 HTTP server 與 session 回收，直到收到信號或出錯。
//
// 需要自訂 server（TLS、外部 listener、掛到既有服務）時改用 RunWithSvr。
func Run(sCfg *svrcfg.SvrCfg) {
	if err := sCfg.Valid(); err != nil {
		// 防止外層傳入的 logger 不可用
		fmt.Fprintln(os.Stderr, err)
		return
	}
	RunWithSvr(sCfg, netsvr.NewChiServer(sCfg.Addr))
}

// RunWithSvr 與 Run 相同，但由呼叫端注入 NetSvr。
//   - svr 必須非 nil；若是 ChiAdapter 會要求 Ready() 為 true。
//   - 這一層只負責「註冊 routes + 啟動 app.Run()」，不接管整個系統的組裝方式。
func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) {
	if err := sCfg.Valid(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	a, err := Assemble(sCfg, svr)
	if err != nil {
		sCfg.Log.Error("assemble server failed", slog.Any("err", err))
		return
	}
	sCfg.Log.Info("[blocklab] listening", slog.String("addr", sCfg.Addr), slog.Any("games", sCfg.Lab.Names()))
	if err := a.Run(); err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
	}
}

// Assemble 建立 session store、註冊路由，回傳尚未啟動的 App。
// sCfg 須已通過 Valid。
func Assemble(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) (*app.App, error) {
	if svr == nil {
		return nil, errs.NewFatal("svr is required")
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		return nil, errs.NewFatal("default server is not ready")
	}
	ss, err := sCfg.Lab.NewSessions(sCfg.SessionOptions())
	if err != nil {
		return nil, err
	}
	if err := api.RegisterRoutes(svr, sCfg, ss); err != nil {
		return nil, err
	}
	a := app.NewWith(svr, NewJanitor(ss))
	a.SetLogger(sCfg.Log)
	return a, nil
}

// Janitor 把 Sessions 的閒置回收包成 app.Component。
type Janitor struct {
	ss     *blocklab.Sessions
	ctx    context.Context
	cancel context.CancelFunc
}

func NewJanitor(ss *blocklab.Sessions) *Janitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{ss: ss, ctx: ctx, cancel: cancel}
}

// Run 阻塞到 Shutdown 為止。
func (j *Janitor) Run() error {
	j.ss.Run(j.ctx)
	return nil
}

// Shutdown 停止回收並關閉 session store，之後的對局操作都會回 Fatal。
func (j *Janitor) Shutdown(ctx context.Context) error {
	j.cancel()
	j.ss.Close()
	return nil
}
