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

// RowFull 由左至右掃描，遇到第一個空格就短路。
func RowFull(screen []int8, cols, y int) bool {
	base := y * cols
	x := 0
	for x < cols {
		if screen[base+x] != Filled {
			break
		}
		x++
	}
	return x == cols
}

// RowAny 回報該列是否有任何已填格。
func RowAny(screen []int8, cols, y int) bool {
	for _, v := range screen[y*cols : (y+1)*cols] {
		if v != Empty {
			return true
		}
	}
	return false
}

// DropRow 刪除第 y 列：對 j = y..1 令 row[j] = row[j-1]。
// 第 0 列只當來源、從不被寫入，所以它的內容會原樣留著（不清空）。
func DropRow(screen []int8, cols, y int) {
	for j := y; j > 0; j-- {
		copy(screen[j*cols:(j+1)*cols], screen[(j-1)*cols:j*cols])
	}
}

// ClearFullRows 自上而下掃描，遇到滿列就 DropRow，並對每一列呼叫 onClear（可為 nil）。
// 回傳刪除的列數。
//
// 刪除第 y 列後，落到 y 的是原本的 y-1 列；它在前面已檢查過且不滿，
// 所以掃描直接往下一列走。唯一例外是第 0 列本身已滿：DropRow(0) 不改盤面，
// 之後每次刪列都會把它複製到第 1 列，若重檢會永遠刪不完。
func ClearFullRows(screen []int8, cols, rows int, onClear func(row int)) int {
	n := 0
	for y := 0; y < rows; y++ {
		if !RowFull(screen, cols, y) {
			continue
		}
		DropRow(screen, cols, y)
		n++
		if onClear != nil {
			onClear(y)
		}
	}
	return n
}
