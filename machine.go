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
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/sdk/field"
	"github.com/zintix-labs/blocklab/sdk/piece"
	"github.com/zintix-labs/blocklab/server/logger"
	"github.com/zintix-labs/blocklab/spec"
)

// Machine 封裝一局遊戲：設定 + 帶 seed 的 Core + Playfield。
//
// 你可以把 Machine 視為 Playfield 的「外殼」：
//   - 對外：Apply / Press / State / Tape（HTTP、Run loop、模擬器都只操作 Machine）。
//   - 對內：扮演外部驅動者，方塊落地後自動 CreatePiece，移動前先以 IsPossibleMovement 檢查。
//
// 並發語意：Playfield 本身不是併發安全的，Machine 以 mu 序列化所有操作。
// Listener 在 mu 持有期間被呼叫，不可回頭呼叫同一台 Machine。
type Machine struct {
	gameName string
	gs       *spec.GameSettings
	core     *core.Core
	pf       *field.Playfield
	mu       sync.Mutex
	initseed int64         // 出生 seed；Tape 只記 seed 與操作，重播靠它
	tape     []spec.Action // 已接受的操作；isSim 時不記
	events   []Event       // 上次 State() 之後的事件；isSim 時不記
	lines    int           // 目前這個操作消除的列數
	isSim    bool
	log      *slog.Logger
}

// Event 盤面事件，依發生順序收集，State() 時一次取走。
type Event struct {
	Kind  string `json:"kind"`
	Row   int    `json:"row,omitempty"`
	Piece string `json:"piece,omitempty"`
}

const (
	EventSpawned   = "piece_spawned"
	EventLine      = "line_destroyed"
	EventLanded    = "piece_landed"
	EventGameOver  = "game_over"
	EventGameReset = "game_reset"
)

// Result 單一操作的結果。
type Result struct {
	Action  spec.Action      `json:"action"`
	Applied bool             `json:"applied"`        // 移動/旋轉被接受；Step 與 Reset 恆為 true
	Step    field.StepResult `json:"step,omitempty"` // 只有 ActStep 會設定
	Lines   int              `json:"lines"`          // 本次操作消除的列數
	State   field.State      `json:"state"`
}

// Snapshot 對外提供的盤面快照。Board 每列一個字串，'1' 為已填；不含目前方塊。
type Snapshot struct {
	Game   string      `json:"game"`
	Seed   int64       `json:"seed"`
	State  field.State `json:"state"`
	Score  int         `json:"score"`
	Lines  int         `json:"lines"`
	Pieces int         `json:"pieces"`
	Board  []string    `json:"board"`
	Piece  *PieceView  `json:"piece,omitempty"`
	Events []Event     `json:"events,omitempty"`
}

// PieceView 目前方塊；Cells 為盤面座標（可能在盤面上方）。
type PieceView struct {
	Name     string       `json:"name"`
	Color    piece.RGB    `json:"color"`
	X        int          `json:"x"`
	Y        int          `json:"y"`
	Rotation int          `json:"rotation"`
	Cells    []piece.Vec2 `json:"cells"`
}

// Tape 重播所需的全部資訊：同一份設定、同一個 seed、同一串操作會得到同一個盤面。
type Tape struct {
	Game    string        `json:"game"`
	Seed    int64         `json:"seed"`
	Actions []spec.Action `json:"actions"`
}

func newMachineWithSeed(gs *spec.GameSettings, cf core.PRNGFactory, seed int64, isSim bool, log *slog.Logger) (*Machine, error) {
	m := &Machine{
		gameName: gs.Name,
		gs:       gs,
		core:     core.New(cf.New(seed)),
		initseed: seed,
		isSim:    isSim,
		log:      logger.ForGame(log, gs.Name, "").With(slog.Int64("seed", seed)),
	}
	if !isSim {
		m.tape = make([]spec.Action, 0, 256)
	}
	pf, err := field.New(field.Config{
		Shapes:        gs.Shapes(),
		Policy:        gs.Policy(),
		PointsPerLine: gs.PointsByBreakingLine,
		Debug:         gs.DebugMode,
	}, m.core, m.log)
	if err != nil {
		return nil, err
	}
	pf.Subscribe(field.Events{
		OnLine: func(row int) {
			m.lines++
			m.emit(Event{Kind: EventLine, Row: row})
		},
		OnLanded:   func() { m.emit(Event{Kind: EventLanded}) },
		OnGameOver: func() { m.emit(Event{Kind: EventGameOver}) },
	})
	m.pf = pf
	return m, nil
}

func (m *Machine) Name() string { return m.gameName }

func (m *Machine) Seed() int64 { return m.initseed }

func (m *Machine) Settings() *spec.GameSettings { return m.gs }

// Subscribe 註冊額外的盤面事件接收者。
func (m *Machine) Subscribe(l field.Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pf.Subscribe(l)
}

// Start 讓第一個方塊出生；已開始則不做事。遊戲結束後需先 reset。
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start()
}

func (m *Machine) start() error {
	switch m.pf.State() {
	case field.StateOver:
		return errs.State("game %s is over, reset it first", m.gameName)
	case field.StateIdle:
		m.spawn()
	}
	return nil
}

// Apply 執行一個操作。
//
//   - ActStep：下落一格；落地則消行、判定結束，未結束就讓下一個方塊出生。
//   - ActLeft / ActRight / ActDown / ActRotate*：先檢查合法才套用，不合法時 Applied=false。ActDown 不會鎖定。
//   - ActReset：任何狀態都可呼叫，清空盤面後出生新方塊。
//
// 遊戲結束後除了 ActReset 都回傳 CodeState 錯誤。
func (m *Machine) Apply(a spec.Action) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(a)
}

func (m *Machine) apply(a spec.Action) (Result, error) {
	res := Result{Action: a}
	if a == spec.ActNone || a > spec.ActReset {
		return res, errs.Warnf("invalid action %d", a)
	}
	m.lines = 0

	if a == spec.ActReset {
		m.pf.ResetGame()
		m.emit(Event{Kind: EventGameReset})
		m.spawn()
		res.Applied = true
	} else {
		if err := m.start(); err != nil {
			return res, err
		}
		switch a {
		case spec.ActStep:
			res.Step = m.pf.Step()
			res.Applied = true
			if res.Step == field.StepLanded {
				m.spawn()
			}
		case spec.ActLeft:
			res.Applied = m.pf.Move(-1, 0)
		case spec.ActRight:
			res.Applied = m.pf.Move(1, 0)
		case spec.ActDown:
			res.Applied = m.pf.Move(0, 1)
		case spec.ActRotateRight:
			res.Applied = m.pf.Rotate(true)
		case spec.ActRotateLeft:
			res.Applied = m.pf.Rotate(false)
		}
	}

	if !m.isSim {
		m.tape = append(m.tape, a)
	}
	res.Lines = m.lines
	res.State = m.pf.State()
	return res, nil
}

// Press 依設定的按鍵綁定轉成操作後 Apply。
func (m *Machine) Press(k spec.KeyCode) (Result, error) {
	a, ok := m.gs.ActionForKey(k)
	if !ok {
		return Result{}, errs.Warnf("key %q is not bound in game %s", k, m.gameName)
	}
	return m.Apply(a)
}

func (m *Machine) spawn() {
	in := m.pf.CreatePiece()
	m.emit(Event{Kind: EventSpawned, Piece: in.Name()})
}

func (m *Machine) emit(e Event) {
	if !m.isSim {
		m.events = append(m.events, e)
	}
}

// State 回傳快照並清空已累積的事件。
func (m *Machine) State() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Game:   m.gameName,
		Seed:   m.initseed,
		State:  m.pf.State(),
		Score:  m.pf.Score(),
		Lines:  m.pf.Lines(),
		Pieces: m.pf.Spawned(),
		Board:  boardRows(m.pf.Board()),
		Events: m.events,
	}
	m.events = nil
	if cur := m.pf.Current(); cur != nil {
		pos := cur.Position()
		s.Piece = &PieceView{
			Name:     cur.Name(),
			Color:    cur.Color(),
			X:        pos.X,
			Y:        pos.Y,
			Rotation: cur.Rotation(),
			Cells:    cur.Cells(),
		}
	}
	return s
}

func boardRows(grid []int8) []string {
	rows := make([]string, field.Height)
	var sb strings.Builder
	for y := 0; y < field.Height; y++ {
		sb.Reset()
		for x := 0; x < field.Width; x++ {
			sb.WriteByte('0' + byte(grid[y*field.Width+x]))
		}
		rows[y] = sb.String()
	}
	return rows
}

// Tape 回傳目前為止的重播紀錄（副本）。
func (m *Machine) Tape() Tape {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Tape{
		Game:    m.gameName,
		Seed:    m.initseed,
		Actions: append([]spec.Action(nil), m.tape...),
	}
}

// SnapshotCore 取得 Core 狀態，用於比對兩台機台是否走到同一個亂數位置。
func (m *Machine) SnapshotCore() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.core.Snapshot()
}

// Run 以 StepInterval 為節拍自動下落，同時套用 inputs 送進來的操作。
// ctx 結束時回傳 ctx.Err()；遊戲結束時回傳 nil。不合法的輸入只記 log，不中斷。
func (m *Machine) Run(ctx context.Context, inputs <-chan spec.Action) error {
	if err := m.Start(); err != nil {
		return err
	}
	t := time.NewTicker(m.gs.StepInterval())
	defer t.Stop()
	for {
		var (
			res Result
			err error
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a, ok := <-inputs:
			if !ok {
				inputs = nil
				continue
			}
			res, err = m.Apply(a)
		case <-t.C:
			res, err = m.Apply(spec.ActStep)
		}
		if err != nil {
			if e, ok := errs.AsErr(err); ok && e.ErrLv == errs.Warn && !errs.HasCode(err, errs.CodeState) {
				m.log.Debug("input rejected", slog.String("err", err.Error()))
				continue
			}
			return err
		}
		if res.State == field.StateOver {
			return nil
		}
	}
}
