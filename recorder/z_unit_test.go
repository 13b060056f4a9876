package recorder

import (
	"testing"
)

func TestRecordAndDone(t *testing.T) {
	r, err := NewGameRecorder("classic", "bag", []string{"I", "O"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r.RecordSpawn("I")
	r.RecordSpawn("O")
	r.RecordSpawn("I")
	r.RecordLanding(0)
	r.RecordLanding(2)
	r.RecordLanding(6)
	r.EndGame(800, true)

	r.RecordSpawn("O")
	r.EndGame(0, false)

	if r.Basic.Games != 2 || r.Basic.Pieces != 4 || r.Basic.Lines != 8 || r.Basic.Score != 800 {
		t.Fatalf("unexpected basic %+v", r.Basic)
	}
	if r.Basic.GameOvers != 1 || r.Basic.Capped != 1 {
		t.Fatalf("unexpected end reasons %+v", r.Basic)
	}
	if r.Clears != [4]int64{0, 1, 0, 1} {
		t.Fatalf("unexpected clears %v", r.Clears)
	}
	if r.Spawns[0] != 2 || r.Spawns[1] != 2 {
		t.Fatalf("unexpected spawns %v", r.Spawns)
	}
	rep := r.Done()
	rep.Done()
	if rep.Lines.Mean != 4 || rep.Summary.CappedRate != 0.5 {
		t.Fatalf("unexpected report mean=%v capped=%v", rep.Lines.Mean, rep.Summary.CappedRate)
	}
}

func TestMerge(t *testing.T) {
	a, _ := NewGameRecorder("g", "uniform", []string{"I", "O"})
	b, _ := NewGameRecorder("g", "uniform", []string{"I", "O"})
	a.RecordSpawn("I")
	a.RecordLanding(1)
	a.EndGame(10, true)
	b.RecordSpawn("O")
	b.RecordLanding(4)
	b.EndGame(40, true)

	m, err := MergeGameRecorder([]*GameRecorder{a, b})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if m.Basic.Games != 2 || m.Basic.Lines != 5 || m.Basic.Score != 50 || len(m.PerGame) != 2 {
		t.Fatalf("unexpected merged %+v", m.Basic)
	}
	if m.Clears != [4]int64{1, 0, 0, 1} || m.Spawns[0] != 1 || m.Spawns[1] != 1 {
		t.Fatalf("unexpected merged histograms %v %v", m.Clears, m.Spawns)
	}

	c, _ := NewGameRecorder("other", "uniform", []string{"I", "O"})
	if _, err := MergeGameRecorder([]*GameRecorder{a, c}); err == nil {
		t.Fatalf("different game names must not merge")
	}
	if _, err := MergeGameRecorder(nil); err == nil {
		t.Fatalf("empty merge must fail")
	}
}

func TestNewRejectsDuplicateShapes(t *testing.T) {
	if _, err := NewGameRecorder("g", "bag", []string{"I", "I"}); err == nil {
		t.Fatalf("duplicate shapes must fail")
	}
	if _, err := NewGameRecorder("g", "bag", nil); err == nil {
		t.Fatalf("no shapes must fail")
	}
}
