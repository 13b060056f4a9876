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

// Package field 是落塊遊戲的盤面核心：出生、下落、鎖定、消行與結束判定。
//
// Playfield 不是 concurrency-safe；同一局只應由一個 goroutine 操作
// （上層 Machine 會以 mutex 串行化）。
package field

import (
	"log/slog"
	"strings"

	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/sdk/ops"
	"github.com/zintix-labs/blocklab/sdk/piece"
	"github.com/zintix-labs/blocklab/sdk/spawn"
)

const (
	Width  = 10
	Height = 22
)

// Config 建立盤面所需的設定（通常由 spec.GameSettings 轉出）。
type Config struct {
	Shapes        []*piece.Shape
	Policy        spawn.Policy
	PointsPerLine int
	Debug         bool
}

type Playfield struct {
	grid      []int8 // row-major, idx = y*Width + x
	spawner   *spawn.Spawner
	core      *core.Core
	cur       *piece.Instance
	state     State
	listeners []Listener
	observers []piece.Observer
	cfg       Config
	log       *slog.Logger

	score   int
	lines   int
	spawned int
}

// New 建立空盤面。log 為 nil 時不輸出任何日誌。
func New(cfg Config, c *core.Core, log *slog.Logger) (*Playfield, error) {
	sp, err := spawn.New(cfg.Policy, cfg.Shapes, c)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Playfield{
		grid:    make([]int8, Width*Height),
		spawner: sp,
		core:    c,
		cfg:     cfg,
		log:     log,
	}
	p.ResetGame()
	return p, nil
}

// Subscribe 註冊盤面事件接收者，nil 會被忽略。
func (p *Playfield) Subscribe(l Listener) {
	if l != nil {
		p.listeners = append(p.listeners, l)
	}
}

// SubscribePiece 之後每個新出生的方塊都會掛上 o。
func (p *Playfield) SubscribePiece(o piece.Observer) {
	if o != nil {
		p.observers = append(p.observers, o)
	}
}

// ResetGame 任何狀態都可呼叫：清空盤面、丟棄目前方塊、分數歸零。
// Spawner 的袋子不重置，同一 seed 的後續序列仍然可重現。
func (p *Playfield) ResetGame() {
	clear(p.grid)
	p.cur = nil
	p.state = StateIdle
	p.score, p.lines, p.spawned = 0, 0, 0
	if p.cfg.Debug {
		p.log.Debug("resetting game")
	}
}

// CreatePiece 抽出新方塊、隨機旋轉，放在該旋轉的出生位置並水平置中。
// 只能在 StateIdle 呼叫。
func (p *Playfield) CreatePiece() *piece.Instance {
	if p.state != StateIdle {
		panic("field: CreatePiece requires an idle playfield, state=" + p.state.String())
	}
	in := p.spawner.Next()
	for _, o := range p.observers {
		in.Subscribe(o)
	}
	rot := p.core.IntN(piece.Rotations)
	pos := in.Shape().SpawnOffset(rot)
	pos.X += Width / 2
	in.SetPosition(pos)
	in.SetRotation(rot)

	p.cur = in
	p.state = StateActive
	p.spawned++
	if p.cfg.Debug {
		p.log.Debug("creating block", slog.String("piece", in.Name()), slog.Int("rotation", rot))
	}
	return in
}

// Step 往下一格；無法下移時鎖定、消行並判定結束。只能在 StateActive 呼叫。
func (p *Playfield) Step() StepResult {
	if p.state != StateActive {
		panic("field: Step requires an active piece, state=" + p.state.String())
	}
	cur := p.cur
	pos := cur.Position()
	if p.IsPossibleMovement(pos.X, pos.Y+1, cur, cur.Rotation()) {
		cur.SetPosition(piece.Vec2{X: pos.X, Y: pos.Y + 1})
		return StepMoved
	}

	cur.SetLocked(true)
	m := cur.Shape().Mask(cur.Rotation())
	ops.Stamp(p.grid, Width, Height, &m, pos.X, pos.Y)
	ops.ClearFullRows(p.grid, Width, Height, p.destroyLine)
	p.cur = nil

	if p.IsGameOver() {
		p.state = StateOver
		if p.cfg.Debug {
			p.log.Debug("game over", slog.String("grid", p.Dump()))
		}
		for _, l := range p.listeners {
			l.GameOver()
		}
		return StepGameOver
	}
	p.state = StateIdle
	if p.cfg.Debug {
		p.log.Debug("piece landed", slog.String("grid", p.Dump()))
	}
	for _, l := range p.listeners {
		l.PieceLanded()
	}
	return StepLanded
}

func (p *Playfield) destroyLine(row int) {
	p.lines++
	p.score += p.cfg.PointsPerLine
	if p.cfg.Debug {
		p.log.Debug("destroying line", slog.Int("row", row))
	}
	for _, l := range p.listeners {
		l.LineDestroyed(row)
	}
}

// IsPossibleMovement 判斷 in 以 rotation 放在 (x,y) 是否合法。純函式，不改任何狀態。
func (p *Playfield) IsPossibleMovement(x, y int, in *piece.Instance, rotation int) bool {
	m := in.Shape().Mask(rotation)
	return ops.CanPlace(p.grid, Width, Height, &m, x, y)
}

// Move 若合法則把目前方塊平移 (dx,dy)。下移只移動，不會鎖定。
func (p *Playfield) Move(dx, dy int) bool {
	if p.state != StateActive {
		return false
	}
	pos := p.cur.Position()
	if !p.IsPossibleMovement(pos.X+dx, pos.Y+dy, p.cur, p.cur.Rotation()) {
		return false
	}
	p.cur.SetPosition(piece.Vec2{X: pos.X + dx, Y: pos.Y + dy})
	return true
}

// Rotate 原地旋轉，不做 wall kick。
func (p *Playfield) Rotate(clockwise bool) bool {
	if p.state != StateActive {
		return false
	}
	next := p.cur.PreviousRotation()
	if clockwise {
		next = p.cur.NextRotation()
	}
	pos := p.cur.Position()
	if !p.IsPossibleMovement(pos.X, pos.Y, p.cur, next) {
		return false
	}
	p.cur.SetRotation(next)
	return true
}

// IsGameOver 第 0 列只要有任何一格已填即結束。
func (p *Playfield) IsGameOver() bool {
	return ops.RowAny(p.grid, Width, 0)
}

func (p *Playfield) Current() *piece.Instance { return p.cur }

func (p *Playfield) State() State { return p.state }

func (p *Playfield) Score() int { return p.score }

func (p *Playfield) Lines() int { return p.lines }

// Spawned 本局（自上次 ResetGame）出生的方塊數。
func (p *Playfield) Spawned() int { return p.spawned }

// Filled 回報 (x,y) 是否已填；超出盤面視為未填。
func (p *Playfield) Filled(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	return p.grid[y*Width+x] != ops.Empty
}

// Board 回傳盤面副本。
func (p *Playfield) Board() []int8 {
	return append([]int8(nil), p.grid...)
}

// Dump 以 "[0][1]..." 的格式輸出整個盤面，一列一行。
func (p *Playfield) Dump() string {
	var sb strings.Builder
	sb.Grow(Height * (Width*3 + 1))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			sb.WriteByte('[')
			sb.WriteByte('0' + byte(p.grid[y*Width+x]))
			sb.WriteByte(']')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
