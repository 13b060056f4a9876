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

// Package ops 提供盤面原地運算。盤面為 row-major 展平的 []int8，索引 y*cols+x，
// 0 為空格、1 為已填。
package ops

import "github.com/zintix-labs/blocklab/sdk/piece"

const (
	Empty  int8 = 0
	Filled int8 = 1
)

// CanPlace 判斷圖樣 m 的左上角放在 (x,y) 是否合法（純函式，不修改盤面）。
//
//   - 有格子的位置超出左右邊界或低於底列 -> 不合法
//   - 有格子的位置在 y >= 0 且盤面該格已填 -> 不合法
//   - y < 0（盤面上方）允許，讓方塊可以部分在頂端外出生
func CanPlace(screen []int8, cols, rows int, m *piece.Mask, x, y int) bool {
	for row := 0; row < piece.Area; row++ {
		gy := y + row
		for col := 0; col < piece.Area; col++ {
			if !m[row*piece.Area+col] {
				continue
			}
			gx := x + col
			if gx < 0 || gx > cols-1 || gy > rows-1 {
				return false
			}
			if gy >= 0 && screen[gy*cols+gx] != Empty {
				return false
			}
		}
	}
	return true
}

// Stamp 把圖樣中有格子且在盤面內的位置標記為已填，回傳實際寫入的格數。
func Stamp(screen []int8, cols, rows int, m *piece.Mask, x, y int) int {
	n := 0
	for row := 0; row < piece.Area; row++ {
		gy := y + row
		if gy < 0 || gy >= rows {
			continue
		}
		for col := 0; col < piece.Area; col++ {
			gx := x + col
			if !m[row*piece.Area+col] || gx < 0 || gx >= cols {
				continue
			}
			screen[gy*cols+gx] = Filled
			n++
		}
	}
	return n
}

// DropY 從 (x,y) 往下找到最後一個合法的 y；若 (x,y) 本身就不合法回傳 y, false。
func DropY(screen []int8, cols, rows int, m *piece.Mask, x, y int) (int, bool) {
	if !CanPlace(screen, cols, rows, m, x, y) {
		return y, false
	}
	for CanPlace(screen, cols, rows, m, x, y+1) {
		y++
	}
	return y, true
}

// Count 回傳已填格數。
func Count(screen []int8) int {
	n := 0
	for _, v := range screen {
		if v != Empty {
			n++
		}
	}
	return n
}
