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

package stats_test

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/zintix-labs/blocklab/stats"
)

func buildReport(lines []float64, clears []int64, spawns []int64) *stats.GameReport {
	var total int64
	for _, v := range lines {
		total += int64(v)
	}
	var pieces int64
	for _, v := range spawns {
		pieces += v
	}
	rep := &stats.GameReport{
		Summary: &stats.SummaryReport{
			GameName:  "TestGame",
			Policy:    "uniform",
			Games:     len(lines),
			Pieces:    pieces,
			Lines:     total,
			GameOvers: len(lines) - 1,
			Capped:    1,
		},
		Lines:  &stats.LinesReport{PerGame: lines},
		Clears: &stats.ClearReport{Counts: clears},
		Spawns: &stats.SpawnReport{Shapes: []string{"I", "O", "T"}, Counts: spawns},
	}
	rep.Done()
	return rep
}

func TestGameReportCoreMetrics(t *testing.T) {
	rep := buildReport([]float64{4, 0, 2, 6}, []int64{2, 1, 0, 2}, []int64{10, 10, 10})

	if math.Abs(rep.Lines.Mean-3) > 1e-12 {
		t.Fatalf("mean=%v, want 3", rep.Lines.Mean)
	}
	// 樣本標準差：sqrt(((1+9+1+9))/3)
	if want := math.Sqrt(20.0 / 3.0); math.Abs(rep.Lines.Std-want) > 1e-12 {
		t.Fatalf("std=%v, want %v", rep.Lines.Std, want)
	}
	if !(rep.Lines.MeanCI.Lo <= rep.Lines.Mean && rep.Lines.Mean <= rep.Lines.MeanCI.Hi) {
		t.Fatalf("CI %v does not contain mean", rep.Lines.MeanCI)
	}
	if rep.Lines.Max != 6 {
		t.Fatalf("max=%v", rep.Lines.Max)
	}
	if math.Abs(rep.Clears.Dist[0]-0.4) > 1e-12 || len(rep.Clears.Labels) != 4 {
		t.Fatalf("unexpected clear dist %v", rep.Clears.Dist)
	}
	if rep.Spawns.ChiSquare != 0 || rep.Spawns.PValue != 1 || rep.Spawns.Expected != 10 {
		t.Fatalf("perfectly uniform spawns: chi=%v p=%v", rep.Spawns.ChiSquare, rep.Spawns.PValue)
	}
	if rep.Summary.CappedRate != 0.25 || rep.Summary.CappedCI.Lo > 0.25 || rep.Summary.CappedCI.Hi < 0.25 {
		t.Fatalf("unexpected capped %v %v", rep.Summary.CappedRate, rep.Summary.CappedCI)
	}
	if math.Abs(rep.Lines.PiecesPerLine-30.0/12.0) > 1e-12 {
		t.Fatalf("pieces/line=%v", rep.Lines.PiecesPerLine)
	}
}

func TestChiSquareDetectsSkew(t *testing.T) {
	chi, p := stats.ChiSquareUniform([]int64{1000, 100, 100})
	if chi <= 0 || p > 1e-6 {
		t.Fatalf("skewed counts should be rejected, chi=%v p=%v", chi, p)
	}
	if _, p := stats.ChiSquareUniform([]int64{5}); p != 1 {
		t.Fatalf("single category is trivially uniform")
	}
}

func TestSingleGameHasNoSpread(t *testing.T) {
	rep := buildReport([]float64{5}, []int64{5, 0, 0, 0}, []int64{1, 2, 3})
	if rep.Lines.Std != 0 || rep.Lines.MeanCI.Lo != 5 || rep.Lines.MeanCI.Hi != 5 {
		t.Fatalf("single sample: std=%v ci=%v", rep.Lines.Std, rep.Lines.MeanCI)
	}
}

func TestRenderers(t *testing.T) {
	rep := buildReport([]float64{1, 2, 3}, []int64{3, 0, 1, 0}, []int64{4, 5, 6})
	var js bytes.Buffer
	if err := rep.WriteWith(&js, stats.RenderFor("json")); err != nil {
		t.Fatalf("json: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(js.Bytes(), &back); err != nil {
		t.Fatalf("json output invalid: %v", err)
	}
	if _, ok := back["Spawns"]; !ok {
		t.Fatalf("json missing Spawns: %s", js.String())
	}
	var ym bytes.Buffer
	if err := rep.WriteWith(&ym, stats.RenderFor("yaml")); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !strings.Contains(ym.String(), "counts: [3, 0, 1, 0]") {
		t.Fatalf("yaml should flow inner lists: %s", ym.String())
	}
	if stats.RenderFor("table") != nil {
		t.Fatalf("table has no renderer")
	}
	table := rep.Table(2 * time.Second)
	if !strings.Contains(table, "TestGame") || !strings.Contains(table, "4+ line(s)") {
		t.Fatalf("table missing content:\n%s", table)
	}
}
