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

// Package blocklab 提供落塊引擎的「組裝入口」與「運行入口」。
//
// Lab 把兩個地基組裝在一起，並提供建立 Machine / Simulator 的入口：
//  1. Catalog：遊戲目錄，定義有哪些遊戲設定、各自對應的設定檔名稱（ConfigName）。
//  2. PRNGFactory：亂數核心工廠，同一個 seed 必須產生同一串方塊與出生旋轉。
//
// Lab 本身不綁定任何檔案路徑：設定檔來源一律以 fs.FS 注入。
//
// 典型使用情境：
//   - 後端服務（HTTP）：由 Lab 建立 Machine，放進 Sessions 對外提供操作。
//   - 模擬器（sim）：由 Lab 建立 Simulator，以 autoplay 跑大量對局。
package blocklab

import (
	"crypto/rand"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"math/big"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zintix-labs/blocklab/catalog"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/spec"
)

// Configs 把一或多個設定檔來源打包成 New() 需要的參數。
//
// go:embed 的 embed.FS 與 os.DirFS 都可以直接放進來。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Lab 持有遊戲目錄與亂數工廠。
//
// 使用流程分兩階段：
//   - 註冊階段：建立 catalog，RegisterAll 掃描設定檔並檢查名稱唯一。
//   - 執行階段：Freeze 後依遊戲名稱建立 Machine / Simulator。
//
// 解析過的設定會快取；GameSettings 載入後不再被修改，可在多台 Machine 間共享。
type Lab struct {
	cat *catalog.Catalog
	cf  core.PRNGFactory
	log *slog.Logger

	mu       sync.RWMutex
	settings map[string]*spec.GameSettings
	sum      []catalog.Summary
}

// New 建立一個 Lab（註冊階段）。cf 不可為 nil，cfgs 至少一個。
func New(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	if cf == nil {
		return nil, errs.NewFatal("core factory required")
	}
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	return &Lab{
		cat:      cata,
		cf:       cf,
		log:      slog.New(slog.DiscardHandler),
		settings: map[string]*spec.GameSettings{},
	}, nil
}

// NewAuto 註冊全部設定檔並 Freeze，直接進入執行階段。
func NewAuto(cf core.PRNGFactory, cfgs []fs.FS) (*Lab, error) {
	lab, err := New(cf, cfgs)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

// SetLogger 設定 Machine 使用的 logger；只有 debug_mode 開啟的遊戲才會真的輸出。
func (l *Lab) SetLogger(log *slog.Logger) {
	if log != nil {
		l.log = log
	}
}

func (l *Lab) Register(ents ...catalog.Entry) error {
	return l.cat.Register(ents...)
}

// RegisterAll 掃描所有設定檔來源，把可辨識的設定檔（.yaml/.yml/.json）解析成 GameSettings，
// 以設定檔內的 name 產生 catalog.Entry 後一次註冊。
//
//   - Fail-fast：任何一個檔案讀取/解析失敗都立刻回傳 error。
//   - 原子性：全部成功才呼叫一次 Register，不會只註冊一半。
func (l *Lab) RegisterAll() error {
	sources := l.cat.Cfg().Sources()
	if len(sources) == 0 {
		return errs.NewFatal("configs required")
	}

	entries := make([]catalog.Entry, 0, 16)
	parsed := make(map[string]*spec.GameSettings, 16)
	seenName := map[string]string{}

	for _, src := range sources {
		walkErr := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == "." {
					return nil
				}
				return errs.NewFatal(fmt.Sprintf("configs must be flat (no subdir): %q", path))
			}
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") || !catalog.IsConfigFile(base) {
				return nil
			}

			raw, rerr := fs.ReadFile(src, path)
			if rerr != nil {
				return errs.Wrap(rerr, fmt.Sprintf("read config failed: %s", base))
			}
			gs, gerr := catalog.ParseGameSettings(base, raw)
			if gerr != nil {
				return errs.Wrap(gerr, fmt.Sprintf("parse game settings failed: %s", base))
			}

			name := strings.TrimSpace(gs.Name)
			if name == "" {
				return errs.Config("name", "game name required: %s", base)
			}
			key := strings.ToLower(name)
			if prev, ok := seenName[key]; ok {
				return errs.NewFatal(fmt.Sprintf("duplicate game name: %s (config=%s and %s)", key, prev, base))
			}
			if _, ok := l.cat.GetByName(name); ok {
				return errs.NewFatal(fmt.Sprintf("game name already registered: %s (config=%s)", name, base))
			}
			seenName[key] = base
			parsed[key] = gs

			entries = append(entries, catalog.Entry{Name: name, ConfigName: base})
			return nil
		})
		if walkErr != nil {
			return walkErr
		}
	}

	if len(entries) == 0 {
		return errs.NewFatal("no config files found to register")
	}
	if err := l.cat.Register(entries...); err != nil {
		return err
	}
	l.mu.Lock()
	for k, gs := range parsed {
		l.settings[k] = gs
	}
	l.mu.Unlock()
	return nil
}

func (l *Lab) Freeze() {
	l.cat.Freeze()
}

func (l *Lab) Names() []string {
	return l.cat.Names()
}

func (l *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return l.cat.GetByName(name)
}

// Settings 取得（並快取）遊戲設定。
func (l *Lab) Settings(name string) (*spec.GameSettings, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	key := strings.ToLower(strings.TrimSpace(name))
	l.mu.RLock()
	gs, ok := l.settings[key]
	l.mu.RUnlock()
	if ok {
		return gs, nil
	}
	gs, err := l.cat.GameSettingByName(name)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.settings[key] = gs
	l.mu.Unlock()
	return gs, nil
}

// Summary 列出所有已註冊遊戲的摘要，結果會快取。
func (l *Lab) Summary() ([]catalog.Summary, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	l.mu.RLock()
	sum := l.sum
	l.mu.RUnlock()
	if sum != nil {
		return sum, nil
	}
	all := l.cat.All()
	cs := make([]catalog.Summary, 0, len(all))
	for _, e := range all {
		gs, err := l.Settings(e.Name)
		if err != nil {
			return nil, err
		}
		cs = append(cs, catalog.Summarize(e, gs))
	}
	l.mu.Lock()
	l.sum = cs
	l.mu.Unlock()
	return cs, nil
}

// NewMachine 依遊戲名稱建立一台 Machine，seed 由 crypto/rand 產生並記錄在 Machine 內。
func (l *Lab) NewMachine(name string) (*Machine, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return l.NewMachineWithSeed(name, seed)
}

// NewMachineWithSeed 同一份設定 + 同一個 seed 會得到同一串方塊；replay 依賴這一點。
func (l *Lab) NewMachineWithSeed(name string, seed int64) (*Machine, error) {
	gs, err := l.Settings(name)
	if err != nil {
		return nil, err
	}
	return newMachineWithSeed(gs, l.cf, seed, false, l.log)
}

// NewSimMachineWithSeed 同 NewMachineWithSeed，但機台不記 tape 也不記事件，
// 只需要最終盤面時使用（例如驗證外部送來的紀錄）。
func (l *Lab) NewSimMachineWithSeed(name string, seed int64) (*Machine, error) {
	gs, err := l.Settings(name)
	if err != nil {
		return nil, err
	}
	return newMachineWithSeed(gs, l.cf, seed, true, l.log)
}

func (l *Lab) NewSimulator(name string) (*Simulator, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return l.NewSimulatorWithSeed(name, seed)
}

func (l *Lab) NewSimulatorWithSeed(name string, seed int64) (*Simulator, error) {
	gs, err := l.Settings(name)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(gs, l.cf, seed)
}

// NewSessions 建立 HTTP 用的 session store。
func (l *Lab) NewSessions(opt SessionOptions) (*Sessions, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	return newSessions(l, opt), nil
}

func cryptoSeed() (int64, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return seed.Int64(), nil
}
