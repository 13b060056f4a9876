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

package blocklab

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/recorder"
	"github.com/zintix-labs/blocklab/sdk/autoplay"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/sdk/field"
	"github.com/zintix-labs/blocklab/spec"
	"github.com/zintix-labs/blocklab/stats"
)

// DefaultMaxPieces 單局方塊上限；autoplay 在寬盤面上可能永遠不會輸。
const DefaultMaxPieces = 1000

// tieSalt 讓 autoplay 的 tie-break 亂數與出生亂數錯開
const tieSalt = 0x9E3779B97F4A7C15

// Simulator 以 autoplay 跑大量對局並紀錄統計。
//
// 每一局的 seed 在開跑前依序由 seedMaker 產生，worker 只是領取局號，
// 所以同一個 seed 的結果與 worker 數量無關。
type Simulator struct {
	GameName  string
	gs        *spec.GameSettings
	cf        core.PRNGFactory
	initSeed  int64
	weights   autoplay.Weights
	maxPieces int
	shapes    []string
	rBuf      []*recorder.GameRecorder
}

func newSimulatorWithSeed(gs *spec.GameSettings, cf core.PRNGFactory, seed int64) (*Simulator, error) {
	shapes := make([]string, 0, len(gs.Pieces))
	for _, p := range gs.Pieces {
		shapes = append(shapes, p.Name)
	}
	s := &Simulator{
		GameName:  gs.Name,
		gs:        gs,
		cf:        cf,
		initSeed:  seed,
		weights:   autoplay.DefaultWeights,
		maxPieces: DefaultMaxPieces,
		shapes:    shapes,
	}
	// 先建一次確認設定可用，錯誤在建構時就回報
	if _, err := recorder.NewGameRecorder(s.GameName, gs.Policy().String(), shapes); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) Seed() int64 { return s.initSeed }

// SetMaxPieces 設定單局方塊上限，n <= 0 時不變。
func (s *Simulator) SetMaxPieces(n int) {
	if n > 0 {
		s.maxPieces = n
	}
}

func (s *Simulator) SetWeights(w autoplay.Weights) {
	s.weights = w
}

// Sim 單線模擬：依序跑 games 局，回傳統計結果與用時。
func (s *Simulator) Sim(games int, showpb bool) (*stats.GameReport, time.Duration, error) {
	defer s.reset()
	if games < 1 {
		return nil, 0, errs.NewWarn("games must > 0")
	}
	seeds := s.seeds(games)
	r, err := s.newRecorder()
	if err != nil {
		return nil, 0, err
	}

	bar := pb.StartNew(games)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for _, seed := range seeds {
		if err := s.play(seed, r); err != nil {
			bar.Finish()
			return nil, 0, err
		}
		bar.Increment()
	}
	used := time.Since(bar.StartTime())
	bar.Finish()
	return s.report(r), used, nil
}

// SimMP 以 mp 個 worker 平行跑 games 局，合併統計後回傳結果與用時。
func (s *Simulator) SimMP(games int, mp int, showpb bool) (*stats.GameReport, time.Duration, error) {
	defer s.reset()
	if mp <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if games < 1 {
		return nil, 0, errs.NewWarn("games must > 0")
	}
	mp = min(mp, games)
	seeds := s.seeds(games)
	for len(s.rBuf) < mp {
		r, err := s.newRecorder()
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	jobs := make(chan int64, min(games, 2048))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	wg.Add(mp)
	bar := pb.StartNew(games)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	for w := 0; w < mp; w++ {
		go func(r *recorder.GameRecorder) {
			defer wg.Done()
			for seed := range jobs {
				if err := s.play(seed, r); err != nil {
					errOnce.Do(func() { firstErr = err })
				}
				bar.Increment()
			}
		}(s.rBuf[w])
	}
	for _, seed := range seeds {
		jobs <- seed
	}
	close(jobs)
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	if firstErr != nil {
		return nil, 0, firstErr
	}
	merged, err := recorder.MergeGameRecorder(s.rBuf[:mp])
	if err != nil {
		return nil, 0, err
	}
	return s.report(merged), used, nil
}

// play 用一台新的 sim 機台跑完一局：autoplay 排好位置後一路 step 到落地，
// 直到遊戲結束或達到方塊上限。
func (s *Simulator) play(seed int64, r *recorder.GameRecorder) error {
	m, err := newMachineWithSeed(s.gs, s.cf, seed, true, nil)
	if err != nil {
		return err
	}
	g := autoplay.New(s.weights, core.New(s.cf.New(int64(mix63(uint64(seed)^tieSalt)))))
	if err := m.start(); err != nil {
		return err
	}
	for landed := 0; ; {
		cur := m.pf.Current()
		r.RecordSpawn(cur.Name())
		board := autoplay.Board{Cells: m.pf.Board(), Cols: field.Width, Rows: field.Height}
		for _, a := range g.Plan(board, cur) {
			if _, err := m.apply(a); err != nil {
				return err
			}
		}
		var res Result
		for res.Step == 0 || res.Step == field.StepMoved {
			if res, err = m.apply(spec.ActStep); err != nil {
				return err
			}
		}
		landed++
		r.RecordLanding(res.Lines)
		if res.Step == field.StepGameOver {
			r.EndGame(m.pf.Score(), true)
			return nil
		}
		if landed >= s.maxPieces {
			r.EndGame(m.pf.Score(), false)
			return nil
		}
	}
}

func (s *Simulator) newRecorder() (*recorder.GameRecorder, error) {
	return recorder.NewGameRecorder(s.GameName, s.gs.Policy().String(), s.shapes)
}

func (s *Simulator) report(r *recorder.GameRecorder) *stats.GameReport {
	rep := r.Done()
	rep.Summary.Seed = s.initSeed
	rep.Done()
	return rep
}

// seeds 每次模擬都從 initSeed 重新推導，同一個 Simulator 重跑結果相同。
func (s *Simulator) seeds(games int) []int64 {
	sm := newSeedMaker(s.initSeed)
	out := make([]int64, games)
	for i := range out {
		out[i] = sm.next()
	}
	return out
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 以全週期 LCG 推進 state（不重複），再用可逆 mix63 打散。
//
// 可能被多個 goroutine 同時呼叫，state 以 CAS 迴圈推進，每次呼叫取得唯一的下一個 state。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63 // full-period LCG mod 2^63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用「可逆」的 bit 操作 + 乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63 // 乘奇數 ⇒ mod 2^63 可逆
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
