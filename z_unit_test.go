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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"testing/fstest"
	"time"

	"github.com/zintix-labs/blocklab/demo/demo_configs"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/autoplay"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/sdk/field"
	"github.com/zintix-labs/blocklab/sdk/piece"
	"github.com/zintix-labs/blocklab/spec"
	"github.com/zintix-labs/blocklab/stats"
)

func newDemoLab(t *testing.T) *Lab {
	t.Helper()
	lab, err := NewAuto(core.Default(), Configs(demo_configs.FS))
	if err != nil {
		t.Fatalf("new lab: %v", err)
	}
	return lab
}

// boxSettings 一個 4 寬 5 高實心方塊的遊戲：永遠湊不滿一列，五塊就疊到頂，適合測結束流程。
func boxSettings(t *testing.T, name string) []byte {
	t.Helper()
	cells := make([]int, piece.CellCount)
	for i := range cells {
		if i%piece.Area < 4 {
			cells[i] = 1
		}
	}
	offs := make([]piece.Vec2, piece.Rotations)
	for i := range offs {
		offs[i] = piece.Vec2{X: -2, Y: -piece.Area}
	}
	gs := spec.GameSettings{
		Name:                 name,
		TimeToStep:           0.01,
		PointsByBreakingLine: 10,
		MoveRightKey:         "D",
		MoveLeftKey:          "A",
		MoveDownKey:          "S",
		RotateRightKey:       "E",
		RotateLeftKey:        "Q",
		Pieces:               []spec.PieceSetting{{Name: "box", Cells: cells, SpawnOffsets: offs}},
	}
	raw, err := json.Marshal(gs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func newBoxLab(t *testing.T) *Lab {
	t.Helper()
	lab, err := NewAuto(core.Default(), Configs(fstest.MapFS{
		"box.json": &fstest.MapFile{Data: boxSettings(t, "box")},
	}))
	if err != nil {
		t.Fatalf("new lab: %v", err)
	}
	return lab
}

func TestNewAutoRegistersDemoConfigs(t *testing.T) {
	lab := newDemoLab(t)
	if got := lab.Names(); !reflect.DeepEqual(got, []string{"classic", "classic_uniform"}) {
		t.Fatalf("names = %v", got)
	}
	sum, err := lab.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(sum) != 2 || sum[0].Policy != "bag" || sum[1].Policy != "uniform" || len(sum[0].Pieces) != 7 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if _, err := lab.Settings("nope"); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewRequiresFactoryAndConfigs(t *testing.T) {
	if _, err := New(nil, Configs(demo_configs.FS)); err == nil {
		t.Fatalf("expected error without factory")
	}
	if _, err := New(core.Default(), nil); err == nil {
		t.Fatalf("expected error without configs")
	}
	lab, err := New(core.Default(), Configs(demo_configs.FS))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := lab.NewMachine("classic"); err == nil {
		t.Fatalf("machines require a frozen catalog")
	}
}

func TestRegisterAllRejectsDuplicateNames(t *testing.T) {
	raw := boxSettings(t, "box")
	_, err := NewAuto(core.Default(), Configs(fstest.MapFS{
		"a.json": &fstest.MapFile{Data: raw},
		"b.json": &fstest.MapFile{Data: raw},
	}))
	if err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

func TestRegisterAllFailsOnBadConfig(t *testing.T) {
	_, err := NewAuto(core.Default(), Configs(fstest.MapFS{
		"bad.yaml": &fstest.MapFile{Data: []byte("name: x\ntime_to_step: 0\n")},
	}))
	if !errs.HasCode(err, errs.CodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestMachineStartSpawnsPiece(t *testing.T) {
	lab := newDemoLab(t)
	m, err := lab.NewMachineWithSeed("classic", 7)
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("start must be idempotent: %v", err)
	}
	s := m.State()
	if s.State != field.StateActive || s.Piece == nil || s.Pieces != 1 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
	if len(s.Events) != 1 || s.Events[0].Kind != EventSpawned || s.Events[0].Piece != s.Piece.Name {
		t.Fatalf("unexpected events: %+v", s.Events)
	}
	if len(s.Board) != field.Height || len(s.Board[0]) != field.Width {
		t.Fatalf("board has wrong shape")
	}
	if again := m.State(); len(again.Events) != 0 {
		t.Fatalf("events must be drained, got %+v", again.Events)
	}
}

func TestMachineSameSeedSameGame(t *testing.T) {
	lab := newDemoLab(t)
	script := []spec.Action{
		spec.ActLeft, spec.ActRotateRight, spec.ActStep, spec.ActDown, spec.ActRight,
		spec.ActRotateLeft, spec.ActStep, spec.ActStep,
	}
	play := func() (Snapshot, []byte) {
		m, err := lab.NewMachineWithSeed("classic_uniform", 99)
		if err != nil {
			t.Fatalf("machine: %v", err)
		}
		for i := 0; i < 40; i++ {
			for _, a := range script {
				if _, err := m.Apply(a); err != nil {
					if errs.HasCode(err, errs.CodeState) {
						break
					}
					t.Fatalf("apply: %v", err)
				}
			}
		}
		snap, err := m.SnapshotCore()
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		return m.State(), snap
	}
	a, ca := play()
	b, cb := play()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same seed diverged:\n%+v\n%+v", a, b)
	}
	if !bytes.Equal(ca, cb) {
		t.Fatalf("core state diverged")
	}
}

func TestMachineLandingSpawnsNext(t *testing.T) {
	lab := newDemoLab(t)
	m, _ := lab.NewMachineWithSeed("classic", 1)
	var res Result
	var err error
	for i := 0; i < 2*field.Height; i++ {
		if res, err = m.Apply(spec.ActStep); err != nil {
			t.Fatalf("step: %v", err)
		}
		if res.Step != field.StepMoved {
			break
		}
	}
	if res.Step != field.StepLanded || res.State != field.StateActive {
		t.Fatalf("expected landing with a fresh piece, got %+v", res)
	}
	s := m.State()
	kinds := make([]string, 0, len(s.Events))
	for _, e := range s.Events {
		kinds = append(kinds, e.Kind)
	}
	want := []string{EventSpawned, EventLanded, EventSpawned}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	if s.Pieces != 2 {
		t.Fatalf("pieces = %d", s.Pieces)
	}
}

func TestMachineDownNeverLocks(t *testing.T) {
	lab := newDemoLab(t)
	m, _ := lab.NewMachineWithSeed("classic", 3)
	for i := 0; i < 3*field.Height; i++ {
		if _, err := m.Apply(spec.ActDown); err != nil {
			t.Fatalf("down: %v", err)
		}
	}
	s := m.State()
	if s.Pieces != 1 || s.State != field.StateActive {
		t.Fatalf("down must not lock: %+v", s)
	}
	res, _ := m.Apply(spec.ActDown)
	if res.Applied {
		t.Fatalf("piece at the bottom must not move further")
	}
}

func TestMachineGameOverAndReset(t *testing.T) {
	lab := newBoxLab(t)
	m, _ := lab.NewMachineWithSeed("box", 1)
	over := false
	for i := 0; i < 500 && !over; i++ {
		res, err := m.Apply(spec.ActStep)
		if err != nil {
			t.Fatalf("step: %v", err)
		}
		over = res.Step == field.StepGameOver
	}
	if !over {
		t.Fatalf("box game should end")
	}
	if _, err := m.Apply(spec.ActLeft); !errs.HasCode(err, errs.CodeState) {
		t.Fatalf("expected state error after game over, got %v", err)
	}
	if err := m.Start(); !errs.HasCode(err, errs.CodeState) {
		t.Fatalf("start after game over must fail, got %v", err)
	}
	res, err := m.Apply(spec.ActReset)
	if err != nil || !res.Applied || res.State != field.StateActive {
		t.Fatalf("reset: %+v %v", res, err)
	}
	s := m.State()
	if s.Score != 0 || s.Lines != 0 || s.Pieces != 1 {
		t.Fatalf("reset must clear counters: %+v", s)
	}
	for _, row := range s.Board {
		if row != "0000000000" {
			t.Fatalf("reset must clear board, got %q", row)
		}
	}
}

func TestMachineRejectsInvalidAction(t *testing.T) {
	lab := newDemoLab(t)
	m, _ := lab.NewMachineWithSeed("classic", 1)
	if _, err := m.Apply(spec.ActNone); err == nil {
		t.Fatalf("ActNone must be rejected")
	}
	if len(m.Tape().Actions) != 0 {
		t.Fatalf("rejected actions must not be recorded")
	}
}

func TestPressUsesKeyBindings(t *testing.T) {
	lab := newDemoLab(t)
	a, _ := lab.NewMachineWithSeed("classic", 11)
	b, _ := lab.NewMachineWithSeed("classic", 11)
	if _, err := a.Press("LeftArrow"); err != nil {
		t.Fatalf("press: %v", err)
	}
	if _, err := b.Apply(spec.ActLeft); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !reflect.DeepEqual(a.State().Piece, b.State().Piece) {
		t.Fatalf("press and apply disagree")
	}
	if _, err := a.Press("F12"); err == nil {
		t.Fatalf("unbound key must be rejected")
	}
}

func TestTapeRecordsAcceptedActions(t *testing.T) {
	lab := newDemoLab(t)
	m, _ := lab.NewMachineWithSeed("classic", 5)
	acts := []spec.Action{spec.ActLeft, spec.ActStep, spec.ActRotateRight, spec.ActReset}
	for _, a := range acts {
		if _, err := m.Apply(a); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	tp := m.Tape()
	if tp.Game != "classic" || tp.Seed != 5 || !reflect.DeepEqual(tp.Actions, acts) {
		t.Fatalf("unexpected tape: %+v", tp)
	}
	tp.Actions[0] = spec.ActRight
	if m.Tape().Actions[0] != spec.ActLeft {
		t.Fatalf("tape must be a copy")
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	lab := newBoxLab(t)
	m, _ := lab.NewMachineWithSeed("box", 1)
	landed, over := 0, 0
	m.Subscribe(field.Events{
		OnLanded:   func() { landed++ },
		OnGameOver: func() { over++ },
	})
	for i := 0; i < 500 && over == 0; i++ {
		if _, err := m.Apply(spec.ActStep); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if over != 1 || landed == 0 {
		t.Fatalf("landed=%d over=%d", landed, over)
	}
}

func TestRunStopsOnGameOver(t *testing.T) {
	lab := newBoxLab(t)
	m, _ := lab.NewMachineWithSeed("box", 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Run(ctx, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if m.State().State != field.StateOver {
		t.Fatalf("run must return at game over")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	lab := newDemoLab(t)
	m, _ := lab.NewMachineWithSeed("classic", 1)
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan spec.Action, 4)
	in <- spec.ActNone // 不合法的輸入只記 log
	in <- spec.ActLeft
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, in) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
	if tp := m.Tape(); len(tp.Actions) == 0 || tp.Actions[0] != spec.ActLeft {
		t.Fatalf("inputs must be applied, tape=%v", tp.Actions)
	}
}

func TestSessionsLifecycle(t *testing.T) {
	lab := newDemoLab(t)
	ss, err := lab.NewSessions(SessionOptions{MaxSessions: 2, IdleTTL: time.Minute})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	seed := int64(4)
	id, m, err := ss.Create("classic", &seed)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Seed() != 4 || m.State().State != field.StateActive {
		t.Fatalf("session machine must be started with the given seed")
	}
	got, err := ss.Get(id)
	if err != nil || got != m {
		t.Fatalf("get: %v", err)
	}
	if _, _, err := ss.Create("nope", nil); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := ss.Create("classic", nil); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if _, _, err := ss.Create("classic", nil); err == nil {
		t.Fatalf("expected capacity error")
	}
	if err := ss.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ss.Get(id); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("deleted session must be gone, got %v", err)
	}
	if err := ss.Delete(id); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("double delete must be not found")
	}
	mt := ss.Metrics()
	if mt.Active != 1 || mt.Created != 2 || mt.Deleted != 1 || mt.Max != 2 {
		t.Fatalf("unexpected metrics: %+v", mt)
	}
}

func TestSessionsDoRecoversPanic(t *testing.T) {
	lab := newDemoLab(t)
	ss, _ := lab.NewSessions(SessionOptions{})
	id, _, _ := ss.Create("classic", nil)
	err := ss.Do(context.Background(), id, func(m *Machine) error {
		panic("boom")
	})
	if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Fatal {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if ss.Len() != 0 || ss.Metrics().Panics != 1 {
		t.Fatalf("panicking session must be dropped")
	}

	id, _, _ = ss.Create("classic", nil)
	want := errs.NewWarn("plain")
	if err := ss.Do(context.Background(), id, func(m *Machine) error { return want }); err != want {
		t.Fatalf("plain errors pass through, got %v", err)
	}
	if ss.Len() != 1 {
		t.Fatalf("plain errors keep the session")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = ss.Do(ctx, id, func(m *Machine) error { return nil })
	if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Warn || !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled context must keep its cause, got %v", err)
	}
	dl, cancel2 := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel2()
	if err := ss.Do(dl, id, func(m *Machine) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expired context must keep its cause, got %v", err)
	}
}

func TestSessionsSweepAndClose(t *testing.T) {
	lab := newDemoLab(t)
	ss, _ := lab.NewSessions(SessionOptions{MaxSessions: 1, IdleTTL: time.Minute})
	if _, _, err := ss.Create("classic", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if n := ss.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh session must survive, evicted %d", n)
	}
	if n := ss.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("idle session must be evicted, evicted %d", n)
	}
	if ss.Metrics().Evicted != 1 {
		t.Fatalf("evicted counter")
	}

	ss.Close()
	ss.Close()
	if !ss.Closed() || ss.ClosedReason() != "closed" {
		t.Fatalf("close state")
	}
	if _, _, err := ss.Create("classic", nil); err == nil {
		t.Fatalf("closed store must reject create")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ss.Run(ctx) // 已關閉，應立即返回
}

func TestSimulatorDeterministicAcrossWorkers(t *testing.T) {
	lab := newDemoLab(t)
	s, err := lab.NewSimulatorWithSeed("classic", 2025)
	if err != nil {
		t.Fatalf("simulator: %v", err)
	}
	s.SetMaxPieces(60)
	one, _, err := s.Sim(6, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	mp, _, err := s.SimMP(6, 3, false)
	if err != nil {
		t.Fatalf("simmp: %v", err)
	}
	a, b := one.Summary, mp.Summary
	if a.Games != 6 || a.Games != b.Games || a.Pieces != b.Pieces || a.Lines != b.Lines || a.Score != b.Score || a.GameOvers != b.GameOvers {
		t.Fatalf("results depend on worker count:\n%+v\n%+v", a, b)
	}
	if a.Seed != 2025 {
		t.Fatalf("report must carry the seed")
	}
	var spawned int64
	for _, c := range one.Spawns.Counts {
		spawned += c
	}
	if spawned != a.Pieces {
		t.Fatalf("spawn counts %d != pieces %d", spawned, a.Pieces)
	}
	if a.Lines == 0 {
		t.Fatalf("autoplay should clear some lines in 60 pieces")
	}
	if a.Score != a.Lines*100 {
		t.Fatalf("score = %d, lines = %d", a.Score, a.Lines)
	}
}

func TestSimulatorWeightsChangePlay(t *testing.T) {
	lab := newDemoLab(t)
	run := func(w *autoplay.Weights) *stats.GameReport {
		s, err := lab.NewSimulatorWithSeed("classic", 7)
		if err != nil {
			t.Fatalf("simulator: %v", err)
		}
		s.SetMaxPieces(80)
		if w != nil {
			s.SetWeights(*w)
		}
		rep, _, err := s.Sim(4, false)
		if err != nil {
			t.Fatalf("sim: %v", err)
		}
		return rep
	}
	// 鼓勵堆高、懲罰消行的權重，消行數應明顯少於預設
	tower := autoplay.Weights{Lines: -1, Height: 1, Holes: 1, Bumpiness: 0}
	good, bad := run(nil), run(&tower)
	if bad.Summary.Lines >= good.Summary.Lines {
		t.Fatalf("weights had no effect: default lines=%d tower lines=%d", good.Summary.Lines, bad.Summary.Lines)
	}
}

func TestSimulatorRejectsBadParams(t *testing.T) {
	lab := newDemoLab(t)
	s, _ := lab.NewSimulatorWithSeed("classic", 1)
	if _, _, err := s.Sim(0, false); err == nil {
		t.Fatalf("games must be > 0")
	}
	if _, _, err := s.SimMP(1, 0, false); err == nil {
		t.Fatalf("workers must be > 0")
	}
}

func TestSimulatorCountsGameOvers(t *testing.T) {
	lab := newBoxLab(t)
	s, _ := lab.NewSimulatorWithSeed("box", 1)
	rep, _, err := s.SimMP(4, 2, false)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	if rep.Summary.GameOvers != 4 || rep.Summary.Capped != 0 {
		t.Fatalf("box games always end: %+v", rep.Summary)
	}
}

func TestSeedMakerDeterministicAndUnique(t *testing.T) {
	a, b := newSeedMaker(42), newSeedMaker(42)
	seen := map[int64]bool{}
	for i := 0; i < 1000; i++ {
		x, y := a.next(), b.next()
		if x != y {
			t.Fatalf("seed makers diverged at %d", i)
		}
		if x < 0 {
			t.Fatalf("seed must be non-negative")
		}
		if seen[x] {
			t.Fatalf("seed repeated at %d", i)
		}
		seen[x] = true
	}
}
