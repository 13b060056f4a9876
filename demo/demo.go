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

// Package demo 組裝內建示範設定（demo_configs），供 CLI、server 與測試直接取用。
package demo

import (
	"log/slog"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/catalog"
	"github.com/zintix-labs/blocklab/demo/demo_configs"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/server/logger"
	"github.com/zintix-labs/blocklab/server/svrcfg"
)

// DefaultGame 示範設定中預設使用的遊戲
const DefaultGame = "classic"

func New() (*catalog.Catalog, error) {
	return catalog.New(demo_configs.FS)
}

// NewLab 以預設亂數與示範設定建立 Lab，log 為 nil 時不輸出。
func NewLab(log *slog.Logger) (*blocklab.Lab, error) {
	lab, err := blocklab.NewAuto(core.Default(), blocklab.Configs(demo_configs.FS))
	if err != nil {
		return nil, errs.Wrap(err, "new blocklab failed")
	}
	if log != nil {
		lab.SetLogger(log)
	}
	return lab, nil
}

// NewServerConfig 示範 server 設定：dev log、示範設定、開啟 /metrics。
func NewServerConfig() (*svrcfg.SvrCfg, error) {
	log := logger.NewDefaultAsyncLogger(logger.ModeDev)
	lab, err := NewLab(log)
	if err != nil {
		return nil, err
	}
	return &svrcfg.SvrCfg{
		Log:     log,
		Lab:     lab,
		Metrics: true,
	}, nil
}
