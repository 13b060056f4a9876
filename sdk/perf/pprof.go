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

// Package perf 在執行一段工作時順便輸出 pprof，供效能分析或 PGO 使用。
package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"

	"github.com/zintix-labs/blocklab/errs"
)

// DefaultDir pprof 檔案預設寫入路徑
const DefaultDir = "build/profiling"

type Mode string

const (
	ModeNone   Mode = ""
	ModeCPU    Mode = "cpu"
	ModeHeap   Mode = "heap"
	ModeAllocs Mode = "allocs"
)

// ParseMode 解析 CLI 的 -p 旗標；不認得的值回傳 Warn。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNone, ModeCPU, ModeHeap, ModeAllocs:
		return m, nil
	default:
		return ModeNone, errs.Warnf("unknown pprof mode %q (want cpu|heap|allocs)", s)
	}
}

// Run 依 mode 包住 exe 執行，輸出檔為 <dir>/<mode>.pprof；dir 為空時使用 DefaultDir。
// exe 的錯誤優先回傳；profiling 本身的錯誤分級為 Fatal。
//
// Usage like:
//
//	go run ./cmd/run -p cpu
func Run(dir string, mode Mode, exe func() error) error {
	if mode == ModeNone {
		return exe()
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, "create pprof dir failed")
	}
	f, err := os.Create(filepath.Join(dir, string(mode)+".pprof"))
	if err != nil {
		return errs.Wrap(err, "create pprof file failed")
	}
	defer f.Close()

	switch mode {
	case ModeCPU:
		return cpu(f, exe)
	case ModeHeap:
		if err := exe(); err != nil {
			return err
		}
		// 盡量讓快照貼近最新狀態（in-use memory）
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return errs.Wrap(err, "write heap profile failed")
		}
		return nil
	case ModeAllocs:
		// 累積配置，搭配 -alloc_space / -alloc_objects 查看
		if err := exe(); err != nil {
			return err
		}
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			return errs.Wrap(err, "write allocs profile failed")
		}
		return nil
	default:
		return errs.Warnf("unknown pprof mode %q", mode)
	}
}

func cpu(f *os.File, exe func() error) error {
	if err := pprof.StartCPUProfile(f); err != nil {
		return errs.Wrap(err, "start cpu profile failed")
	}
	defer pprof.StopCPUProfile()
	return exe()
}
