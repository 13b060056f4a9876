package replay

import (
	"bytes"
	"io"
	"reflect"
	"testing"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/demo/demo_configs"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/spec"
)

func newLab(t *testing.T) *blocklab.Lab {
	t.Helper()
	lab, err := blocklab.NewAuto(core.Default(), blocklab.Configs(demo_configs.FS))
	if err != nil {
		t.Fatalf("new lab: %v", err)
	}
	return lab
}

// record 用固定腳本玩一段，回傳機台（含 tape）。
func record(t *testing.T, lab *blocklab.Lab, seed int64, n int) *blocklab.Machine {
	t.Helper()
	m, err := lab.NewMachineWithSeed("classic", seed)
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	script := []spec.Action{
		spec.ActRotateRight, spec.ActLeft, spec.ActLeft, spec.ActStep, spec.ActStep,
		spec.ActRight, spec.ActDown, spec.ActStep, spec.ActRotateLeft, spec.ActStep,
	}
	for i := 0; i < n; i++ {
		if _, err := m.Apply(script[i%len(script)]); err != nil {
			if errs.HasCode(err, errs.CodeState) {
				if _, err := m.Apply(spec.ActReset); err != nil {
					t.Fatalf("reset: %v", err)
				}
				continue
			}
			t.Fatalf("apply: %v", err)
		}
	}
	return m
}

func TestMarshalRoundTrip(t *testing.T) {
	in := blocklab.Tape{Game: "classic", Seed: -12345, Actions: []spec.Action{spec.ActStep, spec.ActReset, spec.ActLeft}}
	out, err := Unmarshal(Marshal(in))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("got %+v want %+v", out, in)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	good := Marshal(blocklab.Tape{Game: "classic", Seed: 1, Actions: []spec.Action{spec.ActStep}})
	cases := map[string][]byte{
		"empty":    nil,
		"magic":    append([]byte("XYZ"), good[3:]...),
		"version":  append(append([]byte(nil), good[:3]...), append([]byte{9}, good[4:]...)...),
		"trailing": append(append([]byte(nil), good...), 0),
		"short":    good[:len(good)-1],
		"action":   append(append([]byte(nil), good[:len(good)-1]...), 0),
	}
	for name, b := range cases {
		_, err := Unmarshal(b)
		e, ok := errs.AsErr(err)
		if !ok || e.ErrLv != errs.Warn {
			t.Fatalf("%s: expected warn error, got %v", name, err)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	lab := newLab(t)
	tp := record(t, lab, 77, 500).Tape()
	s := Encode(tp)
	if len(s) == 0 {
		t.Fatalf("empty encoding")
	}
	got, err := Decode(s)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, tp) {
		t.Fatalf("round trip changed the tape")
	}
	if _, err := Decode("!!not-base64!!"); err == nil {
		t.Fatalf("expected base64 error")
	}
	if _, err := Decode("AAAA"); err == nil {
		t.Fatalf("expected zstd error")
	}
}

func TestReplayReachesSameBoard(t *testing.T) {
	lab := newLab(t)
	orig := record(t, lab, 2024, 800)
	want := orig.State()

	tp, err := Decode(Encode(orig.Tape()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, err := Replay(lab, tp)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	got := m.State()
	// 事件是各自累積的，比對盤面與計分即可
	want.Events, got.Events = nil, nil
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("replay diverged:\n%+v\n%+v", got, want)
	}
	if !reflect.DeepEqual(m.Tape(), orig.Tape()) {
		t.Fatalf("replayed machine must record the same tape")
	}
}

func TestFinalMatchesReplay(t *testing.T) {
	lab := newLab(t)
	tp := record(t, lab, 31, 600).Tape()
	m, err := Replay(lab, tp)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	want := m.State()
	want.Events = nil

	got, err := Final(lab, tp)
	if err != nil {
		t.Fatalf("final: %v", err)
	}
	if got.Events != nil {
		t.Fatalf("final must not collect events, got %d", len(got.Events))
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("final diverged:\n%+v\n%+v", got, want)
	}
	if _, err := Final(lab, blocklab.Tape{Game: "nope"}); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReplayUnknownGame(t *testing.T) {
	lab := newLab(t)
	if _, err := Replay(lab, blocklab.Tape{Game: "nope"}); !errs.HasCode(err, errs.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFrames(t *testing.T) {
	lab := newLab(t)
	tapes := []blocklab.Tape{record(t, lab, 1, 50).Tape(), record(t, lab, 2, 120).Tape()}
	var buf bytes.Buffer
	for _, tp := range tapes {
		if err := WriteFrame(&buf, tp); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	fr := NewFrameReader(&buf)
	for i, want := range tapes {
		got, err := fr.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("frame %d differs", i)
		}
	}
	if _, err := fr.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}
