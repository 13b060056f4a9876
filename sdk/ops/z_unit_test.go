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

package ops

import (
	"testing"

	"github.com/zintix-labs/blocklab/sdk/piece"
)

// dot 只有 (0,0) 一格的圖樣
func dot() *piece.Mask {
	var m piece.Mask
	m[0] = true
	return &m
}

func TestCanPlaceBounds(t *testing.T) {
	cols, rows := 4, 3
	screen := make([]int8, cols*rows)
	m := dot()
	cases := []struct {
		x, y int
		ok   bool
	}{
		{0, 0, true},
		{3, 2, true},
		{-1, 0, false},
		{4, 0, false},
		{0, 3, false},
		{0, -5, true},
	}
	for _, c := range cases {
		if got := CanPlace(screen, cols, rows, m, c.x, c.y); got != c.ok {
			t.Fatalf("CanPlace(%d,%d)=%v, want %v", c.x, c.y, got, c.ok)
		}
	}
	screen[1*cols+2] = Filled
	if CanPlace(screen, cols, rows, m, 2, 1) {
		t.Fatalf("overlap must be rejected")
	}
	if Count(screen) != 1 {
		t.Fatalf("CanPlace must not modify the screen")
	}
}

func TestStampSkipsOutOfBounds(t *testing.T) {
	cols, rows := 3, 3
	screen := make([]int8, cols*rows)
	var m piece.Mask
	for i := range m {
		m[i] = true
	}
	// 5x5 全滿放在 (-1,-1)，只有 3x3 落在盤面內
	n := Stamp(screen, cols, rows, &m, -1, -1)
	if n != 9 || Count(screen) != 9 {
		t.Fatalf("expected 9 stamped cells, got n=%d count=%d", n, Count(screen))
	}
}

func TestDropY(t *testing.T) {
	cols, rows := 3, 5
	screen := make([]int8, cols*rows)
	screen[4*cols+1] = Filled
	y, ok := DropY(screen, cols, rows, dot(), 1, 0)
	if !ok || y != 3 {
		t.Fatalf("expected landing at 3, got %d ok=%v", y, ok)
	}
	if _, ok := DropY(screen, cols, rows, dot(), 1, 4); ok {
		t.Fatalf("blocked start must report false")
	}
}

func TestRowFullAndDropRow(t *testing.T) {
	cols := 3
	screen := []int8{
		1, 0, 0,
		0, 1, 0,
		1, 1, 1,
	}
	if RowFull(screen, cols, 0) || !RowFull(screen, cols, 2) {
		t.Fatalf("RowFull mismatch")
	}
	if !RowAny(screen, cols, 0) {
		t.Fatalf("RowAny mismatch")
	}
	DropRow(screen, cols, 2)
	want := []int8{
		1, 0, 0,
		1, 0, 0,
		0, 1, 0,
	}
	for i := range want {
		if screen[i] != want[i] {
			t.Fatalf("DropRow result %v, want %v", screen, want)
		}
	}
}

func TestClearFullRows(t *testing.T) {
	cols, rows := 2, 4
	screen := []int8{
		0, 0,
		1, 0,
		1, 1,
		1, 1,
	}
	var cleared []int
	n := ClearFullRows(screen, cols, rows, func(row int) { cleared = append(cleared, row) })
	if n != 2 || len(cleared) != 2 || cleared[0] != 2 || cleared[1] != 3 {
		t.Fatalf("unexpected clears n=%d rows=%v", n, cleared)
	}
	if Count(screen) != 1 || screen[3*cols] != Filled {
		t.Fatalf("unexpected screen after clear: %v", screen)
	}
}

// 第 0 列已滿：刪除它不改盤面，之後的列也不會被重檢成無窮迴圈。
func TestClearFullRowsTopRowTerminates(t *testing.T) {
	cols, rows := 2, 3
	screen := []int8{
		1, 1,
		0, 1,
		1, 1,
	}
	var cleared []int
	n := ClearFullRows(screen, cols, rows, func(row int) { cleared = append(cleared, row) })
	if n != 2 || cleared[0] != 0 || cleared[1] != 2 {
		t.Fatalf("unexpected clears %v", cleared)
	}
	if !RowFull(screen, cols, 0) {
		t.Fatalf("row 0 is never written")
	}
}
