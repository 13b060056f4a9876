package recorder

import (
	"fmt"
	"slices"

	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/stats"
)

// GameRecorder 遊戲紀錄員
//
// GameRecorder 負責紀錄每一局自動對戰的結果，並透過 Done 輸出統計報表。
// 一個 GameRecorder 只給一個 worker 使用；多 worker 的結果以 MergeGameRecorder 合併。
type GameRecorder struct {
	GameName string
	Policy   string
	Shapes   []string
	Basic    *BasicRecord
	Clears   [4]int64 // 單次消 1、2、3、4+ 列的次數
	Spawns   []int64  // 與 Shapes 同索引
	PerGame  []float64
	shapeIdx map[string]int
	cur      gameRecord
}

// BasicRecord 基本遊戲資料紀錄
type BasicRecord struct {
	Games     int
	Pieces    int64
	Lines     int64
	Score     int64
	GameOvers int
	Capped    int
}

// gameRecord 進行中那一局的計數
type gameRecord struct {
	pieces int
	lines  int
}

func NewGameRecorder(name string, policy string, shapes []string) (*GameRecorder, error) {
	if len(shapes) == 0 {
		return nil, errs.NewFatal(fmt.Sprintf("game %s: recorder needs at least one shape", name))
	}
	idx := make(map[string]int, len(shapes))
	for i, s := range shapes {
		if _, ok := idx[s]; ok {
			return nil, errs.NewFatal(fmt.Sprintf("game %s: duplicate shape name %q", name, s))
		}
		idx[s] = i
	}
	return &GameRecorder{
		GameName: name,
		Policy:   policy,
		Shapes:   slices.Clone(shapes),
		Basic:    new(BasicRecord),
		Spawns:   make([]int64, len(shapes)),
		PerGame:  make([]float64, 0, 64),
		shapeIdx: idx,
	}, nil
}

// MergeGameRecorder 合併多個 worker 的紀錄；遊戲名稱與方塊目錄必須一致。
func MergeGameRecorder(r []*GameRecorder) (*GameRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge game record err : empty input")
	}
	r0 := r[0]
	s, err := NewGameRecorder(r0.GameName, r0.Policy, r0.Shapes)
	if err != nil {
		return nil, err
	}
	for _, v := range r {
		if v.GameName != r0.GameName {
			return s, errs.NewFatal("merge game record err : different game name")
		}
		if !slices.Equal(v.Shapes, r0.Shapes) {
			return s, errs.NewFatal("merge game record err : different shapes")
		}
		s.Basic.Games += v.Basic.Games
		s.Basic.Pieces += v.Basic.Pieces
		s.Basic.Lines += v.Basic.Lines
		s.Basic.Score += v.Basic.Score
		s.Basic.GameOvers += v.Basic.GameOvers
		s.Basic.Capped += v.Basic.Capped
		for i := range s.Clears {
			s.Clears[i] += v.Clears[i]
		}
		for i := range s.Spawns {
			s.Spawns[i] += v.Spawns[i]
		}
		s.PerGame = append(s.PerGame, v.PerGame...)
	}
	return s, nil
}

// RecordSpawn 記一次方塊出生。
func (g *GameRecorder) RecordSpawn(shape string) {
	if i, ok := g.shapeIdx[shape]; ok {
		g.Spawns[i]++
	}
	g.cur.pieces++
}

// RecordLanding 記一次落地；lines 為該次同時消除的列數（可為 0）。
func (g *GameRecorder) RecordLanding(lines int) {
	if lines <= 0 {
		return
	}
	g.Clears[min(lines, len(g.Clears))-1]++
	g.cur.lines += lines
}

// EndGame 結束一局：over 為真代表遊戲結束，否則視為達到上限而中止。
func (g *GameRecorder) EndGame(score int, over bool) {
	g.Basic.Games++
	g.Basic.Pieces += int64(g.cur.pieces)
	g.Basic.Lines += int64(g.cur.lines)
	g.Basic.Score += int64(score)
	if over {
		g.Basic.GameOvers++
	} else {
		g.Basic.Capped++
	}
	g.PerGame = append(g.PerGame, float64(g.cur.lines))
	g.cur = gameRecord{}
}

// Done 產出尚未計算的報表；呼叫端再呼叫 GameReport.Done() 完成統計量。
func (g *GameRecorder) Done() *stats.GameReport {
	return &stats.GameReport{
		Summary: &stats.SummaryReport{
			GameName:  g.GameName,
			Policy:    g.Policy,
			Games:     g.Basic.Games,
			Pieces:    g.Basic.Pieces,
			Lines:     g.Basic.Lines,
			Score:     g.Basic.Score,
			GameOvers: g.Basic.GameOvers,
			Capped:    g.Basic.Capped,
		},
		Lines:  &stats.LinesReport{PerGame: slices.Clone(g.PerGame)},
		Clears: &stats.ClearReport{Counts: slices.Clone(g.Clears[:])},
		Spawns: &stats.SpawnReport{Shapes: slices.Clone(g.Shapes), Counts: slices.Clone(g.Spawns)},
	}
}
