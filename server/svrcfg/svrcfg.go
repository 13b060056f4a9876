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

package svrcfg

import (
	"log/slog"
	"strings"
	"time"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/server/logger"
)

const (
	DefaultAddr        = ":5808"
	DefaultSimMaxGames = 100000
	DefaultSimWorkers  = 4

	// DefaultReplayMaxActions /v1/replay 單份紀錄的操作數上限
	DefaultReplayMaxActions = 1 << 18
)

type SvrCfg struct {
	Log         *slog.Logger
	Lab         *blocklab.Lab
	Addr        string        // 監聽位址，空字串使用 DefaultAddr
	MaxSessions int           // 同時存在的對局上限
	SessionTTL  time.Duration // 閒置多久回收
	SimMaxGames int           // /v1/sim 單次請求的局數上限
	SimWorkers  int           // /v1/sim 的 worker 上限
	Metrics     bool          // 是否掛上 /metrics 與 prometheus middleware

	ReplayMaxActions int // /v1/replay 單份紀錄的操作數上限
}

// Valid 補齊預設值並檢查必要依賴。
func (sc *SvrCfg) Valid() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		// 保持安靜、合法
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}
	if sc.Lab == nil {
		return errs.NewFatal("lab is required")
	}
	if len(sc.Lab.Names()) == 0 {
		return errs.NewFatal("lab has no registered game")
	}

	sc.Addr = strings.TrimSpace(sc.Addr)
	if sc.Addr == "" {
		sc.Addr = DefaultAddr
	}
	if !strings.Contains(sc.Addr, ":") {
		return errs.Config("addr", "listen address must contain a port: %q", sc.Addr)
	}
	if sc.MaxSessions <= 0 {
		sc.MaxSessions = blocklab.DefaultMaxSessions
	}
	if sc.SessionTTL <= 0 {
		sc.SessionTTL = blocklab.DefaultSessionTTL
	}
	// 1 <= SimWorkers <= 64，資源管理
	if sc.SimWorkers <= 0 {
		sc.SimWorkers = DefaultSimWorkers
	}
	sc.SimWorkers = min(64, sc.SimWorkers)
	if sc.SimMaxGames <= 0 {
		sc.SimMaxGames = DefaultSimMaxGames
	}
	if sc.ReplayMaxActions <= 0 {
		sc.ReplayMaxActions = DefaultReplayMaxActions
	}
	return nil
}

// SessionOptions 轉成 Lab 的 session store 設定。
func (sc *SvrCfg) SessionOptions() blocklab.SessionOptions {
	return blocklab.SessionOptions{
		MaxSessions: sc.MaxSessions,
		IdleTTL:     sc.SessionTTL,
		Log:         sc.Log,
	}
}
