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

// Package piece 定義方塊形狀（不可變）與場上的方塊實例（可變）。
package piece

import (
	"github.com/zintix-labs/blocklab/errs"
)

const (
	Area      = 5                       // 方塊 bounding box 邊長
	Rotations = 4                       // 旋轉狀態數
	MaskSize  = Area * Area             // 單一旋轉的格數
	CellCount = Rotations * Area * Area // 展平後的總格數
)

// RGB 為方塊顯示顏色，核心本身不使用，只轉交給外部畫面層。
type RGB struct {
	R uint8 `yaml:"r" json:"r"`
	G uint8 `yaml:"g" json:"g"`
	B uint8 `yaml:"b" json:"b"`
}

// Vec2 為盤面座標，X 為欄、Y 為列（0 在最上方）。
type Vec2 struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
}

// Mask 為單一旋轉的 5x5 圖樣，索引 row*Area+col。
type Mask [MaskSize]bool

// Filled 回報 (row,col) 是否有格子。
func (m *Mask) Filled(row, col int) bool {
	return m[row*Area+col]
}

// Shape 為一種方塊的不可變描述。
// cells 以 (rotation*Area+row)*Area+col 索引，建構後不再修改，可被多個 Instance 共用。
type Shape struct {
	name  string
	color RGB
	cells [CellCount]bool
	spawn [Rotations]Vec2
}

// NewShape 由設定檔的展平資料建立 Shape。
//
//   - flat: 長度必須為 Rotations*Area*Area，值只能是 0 或 1；依 rotation → row → col 順序展開
//   - spawn: 每個旋轉一組出生位置（bounding box 左上角）
func NewShape(name string, color RGB, flat []int, spawn []Vec2) (*Shape, error) {
	if len(flat) != CellCount {
		return nil, errs.ShapeFormat(
			"the layout of piece %q is wrong: it must have %d rotations of %dx%d grid (%d cells), got %d",
			name, Rotations, Area, Area, CellCount, len(flat))
	}
	if len(spawn) != Rotations {
		return nil, errs.ShapeFormat("piece %q must have %d spawn offsets, got %d", name, Rotations, len(spawn))
	}
	s := &Shape{name: name, color: color}
	for i, v := range flat {
		switch v {
		case 0:
		case 1:
			s.cells[i] = true
		default:
			return nil, errs.ShapeFormat(
				"the layout of piece %q is wrong: it contains '%d' at index %d when only 0s and 1s are supported",
				name, v, i)
		}
	}
	copy(s.spawn[:], spawn)
	return s, nil
}

func (s *Shape) Name() string { return s.name }

func (s *Shape) Color() RGB { return s.color }

// CellFilled 回報指定旋轉的 (row,col) 是否有格子；越界屬於呼叫端錯誤，直接 panic。
func (s *Shape) CellFilled(rotation, row, col int) bool {
	return s.cells[(rotation*Area+row)*Area+col]
}

// SpawnOffset 回傳指定旋轉的出生位置（尚未置中）。
func (s *Shape) SpawnOffset(rotation int) Vec2 {
	return s.spawn[rotation]
}

// Mask 回傳指定旋轉的圖樣副本。
func (s *Shape) Mask(rotation int) Mask {
	var m Mask
	copy(m[:], s.cells[rotation*MaskSize:(rotation+1)*MaskSize])
	return m
}

// FilledCount 回傳指定旋轉的格子數。
func (s *Shape) FilledCount(rotation int) int {
	n := 0
	for _, v := range s.cells[rotation*MaskSize : (rotation+1)*MaskSize] {
		if v {
			n++
		}
	}
	return n
}

// Flat 回傳展平的 0/1 資料，與 NewShape 的輸入格式相同（匯出用）。
func (s *Shape) Flat() []int {
	out := make([]int, CellCount)
	for i, v := range s.cells {
		if v {
			out[i] = 1
		}
	}
	return out
}

// ValidateRotations 檢查每個旋轉至少有一格，否則方塊無法遊玩。
func ValidateRotations(s *Shape) error {
	for r := 0; r < Rotations; r++ {
		if s.FilledCount(r) == 0 {
			return errs.EmptyRotation(
				"rotation number %d of piece %q was left empty: a piece must have at least one block", r+1, s.name)
		}
	}
	return nil
}

// ValidateCatalog 檢查整組方塊：非空、數量符合 expected（<=0 表示不檢查）、每個旋轉都非空。
func ValidateCatalog(shapes []*Shape, expected int) error {
	if len(shapes) == 0 {
		return errs.Config("pieces", "catalog must contain at least one piece")
	}
	if expected > 0 && len(shapes) != expected {
		return errs.Config("piece_count", "expected %d pieces, got %d", expected, len(shapes))
	}
	for _, s := range shapes {
		if s == nil {
			return errs.Config("pieces", "nil piece in catalog")
		}
		if err := ValidateRotations(s); err != nil {
			return err
		}
	}
	return nil
}
