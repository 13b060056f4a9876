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

// Package autoplay 提供模擬器用的自動玩家：列舉「旋轉 x 水平位置」，
// 對每個可到達的落點評分，回傳一串操作。
package autoplay

import (
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/sdk/ops"
	"github.com/zintix-labs/blocklab/sdk/piece"
	"github.com/zintix-labs/blocklab/spec"
)

// Weights 盤面評分權重；分數越高越好。
type Weights struct {
	Lines     float64
	Height    float64
	Holes     float64
	Bumpiness float64
}

// DefaultWeights 常見的四特徵線性權重
var DefaultWeights = Weights{
	Lines:     0.760666,
	Height:    -0.510066,
	Holes:     -0.35663,
	Bumpiness: -0.184483,
}

// Board 自動玩家看到的盤面（唯讀）。
type Board struct {
	Cells []int8 // row-major, idx = y*Cols + x
	Cols  int
	Rows  int
}

// Greedy 一步貪婪玩家。同分時用 core 隨機挑一個，seed 相同則決策相同。
type Greedy struct {
	w       Weights
	c       *core.Core
	scratch []int8
	best    [][]spec.Action // 目前同分最佳的操作序列
}

func New(w Weights, c *core.Core) *Greedy {
	return &Greedy{w: w, c: c, best: make([][]spec.Action, 0, 8)}
}

// Plan 回傳把 cur 移到最佳位置所需的操作（旋轉、左右移），不含下落。
// 沒有任何可到達的落點時回傳 nil，呼叫端直接 step 即可。
func (g *Greedy) Plan(b Board, cur *piece.Instance) []spec.Action {
	if cur == nil {
		return nil
	}
	shape := cur.Shape()
	start := cur.Position()
	bestScore := 0.0
	g.best = g.best[:0]

	for k := 0; k < piece.Rotations; k++ {
		rot, turns, ok := g.rotatePath(b, shape, start, cur.Rotation(), k)
		if !ok {
			continue
		}
		m := shape.Mask(rot)
		// 往左、往右各自走到撞牆/撞塊為止，每一格都是候選
		for _, dir := range []int{0, -1, 1} {
			x := start.X
			var moves []spec.Action
			for {
				if dir != 0 {
					if !ops.CanPlace(b.Cells, b.Cols, b.Rows, &m, x+dir, start.Y) {
						break
					}
					x += dir
					if dir < 0 {
						moves = append(moves, spec.ActLeft)
					} else {
						moves = append(moves, spec.ActRight)
					}
				}
				y, ok := ops.DropY(b.Cells, b.Cols, b.Rows, &m, x, start.Y)
				if ok {
					score := g.evaluate(b, &m, x, y)
					plan := make([]spec.Action, 0, len(turns)+len(moves))
					plan = append(append(plan, turns...), moves...)
					// 同分時操作數少者優先，仍相同才進入隨機挑選
					switch {
					case len(g.best) == 0 || score > bestScore ||
						(score == bestScore && len(plan) < len(g.best[0])):
						bestScore = score
						g.best = append(g.best[:0], plan)
					case score == bestScore && len(plan) == len(g.best[0]):
						g.best = append(g.best, plan)
					}
				}
				if dir == 0 {
					break
				}
			}
		}
	}
	if len(g.best) == 0 {
		return nil
	}
	if len(g.best) == 1 || g.c == nil {
		return g.best[0]
	}
	return g.best[g.c.IntN(len(g.best))]
}

// rotatePath 以最少次數旋轉 k 步（3 步改為逆轉 1 步），每一步都必須合法。
func (g *Greedy) rotatePath(b Board, shape *piece.Shape, pos piece.Vec2, from, k int) (int, []spec.Action, bool) {
	act, step, n := spec.ActRotateRight, 1, k
	if k == 3 {
		act, step, n = spec.ActRotateLeft, 3, 1
	}
	rot := from
	turns := make([]spec.Action, 0, n)
	for i := 0; i < n; i++ {
		rot = (rot + step) % piece.Rotations
		m := shape.Mask(rot)
		if !ops.CanPlace(b.Cells, b.Cols, b.Rows, &m, pos.X, pos.Y) {
			return 0, nil, false
		}
		turns = append(turns, act)
	}
	return rot, turns, true
}

// evaluate 在 scratch 上放下方塊、消行後計算盤面分數。
func (g *Greedy) evaluate(b Board, m *piece.Mask, x, y int) float64 {
	if cap(g.scratch) < len(b.Cells) {
		g.scratch = make([]int8, len(b.Cells))
	}
	s := g.scratch[:len(b.Cells)]
	copy(s, b.Cells)
	ops.Stamp(s, b.Cols, b.Rows, m, x, y)
	lines := ops.ClearFullRows(s, b.Cols, b.Rows, nil)
	f := Features(s, b.Cols, b.Rows)
	return g.w.Lines*float64(lines) + g.w.Height*float64(f.Height) + g.w.Holes*float64(f.Holes) + g.w.Bumpiness*float64(f.Bumpiness)
}

// Feature 盤面特徵
type Feature struct {
	Height    int // 各欄高度總和
	Holes     int // 上方有格子的空格數
	Bumpiness int // 相鄰欄高度差的絕對值總和
}

// Features 計算盤面特徵。
func Features(cells []int8, cols, rows int) Feature {
	var f Feature
	prev := -1
	for x := 0; x < cols; x++ {
		h := 0
		seen := false
		for y := 0; y < rows; y++ {
			filled := cells[y*cols+x] != ops.Empty
			if filled && !seen {
				seen = true
				h = rows - y
			} else if !filled && seen {
				f.Holes++
			}
		}
		f.Height += h
		if prev >= 0 {
			d := h - prev
			if d < 0 {
				d = -d
			}
			f.Bumpiness += d
		}
		prev = h
	}
	return f
}
