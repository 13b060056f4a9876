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

package piece

import "fmt"

// Observer 接收方塊位置/旋轉變更通知。通知在 setter 內同步呼叫。
type Observer interface {
	PositionChanged(in *Instance)
	RotationChanged(in *Instance)
}

// ObserverFuncs 讓呼叫端只用函式就能訂閱，nil 欄位直接略過。
type ObserverFuncs struct {
	OnPosition func(in *Instance)
	OnRotation func(in *Instance)
}

func (o ObserverFuncs) PositionChanged(in *Instance) {
	if o.OnPosition != nil {
		o.OnPosition(in)
	}
}

func (o ObserverFuncs) RotationChanged(in *Instance) {
	if o.OnRotation != nil {
		o.OnRotation(in)
	}
}

// Instance 為場上的一顆方塊：共用的 Shape + 自己的位置、旋轉與鎖定狀態。
//
// 注意：鎖定後 SetPosition 不再通知，但 SetRotation 仍然會通知。
// 這個不對稱是既有行為，畫面層依賴它，不要統一。
type Instance struct {
	shape     *Shape
	pos       Vec2
	rot       int
	locked    bool
	observers []Observer
}

func NewInstance(s *Shape) *Instance {
	return &Instance{shape: s}
}

func (in *Instance) Shape() *Shape { return in.shape }

func (in *Instance) Name() string { return in.shape.name }

func (in *Instance) Color() RGB { return in.shape.color }

func (in *Instance) Position() Vec2 { return in.pos }

func (in *Instance) Rotation() int { return in.rot }

func (in *Instance) Locked() bool { return in.locked }

// Subscribe 加入觀察者。
func (in *Instance) Subscribe(o Observer) {
	if o == nil {
		return
	}
	in.observers = append(in.observers, o)
}

// SetPosition 更新位置；鎖定中不通知。
func (in *Instance) SetPosition(p Vec2) {
	in.pos = p
	if in.locked {
		return
	}
	for _, o := range in.observers {
		o.PositionChanged(in)
	}
}

// SetRotation 更新旋轉並一律通知。
func (in *Instance) SetRotation(r int) {
	if r < 0 || r >= Rotations {
		panic(fmt.Sprintf("piece: rotation %d out of range [0,%d)", r, Rotations))
	}
	in.rot = r
	for _, o := range in.observers {
		o.RotationChanged(in)
	}
}

// SetLocked 設定鎖定旗標（方塊落定時由 Playfield 設為 true）。
func (in *Instance) SetLocked(locked bool) {
	in.locked = locked
}

// NextRotation 回傳順時針下一個旋轉，不修改狀態。
func (in *Instance) NextRotation() int {
	return (in.rot + 1) % Rotations
}

// PreviousRotation 回傳逆時針上一個旋轉，不修改狀態。
func (in *Instance) PreviousRotation() int {
	return (in.rot + Rotations - 1) % Rotations
}

// IsFilledAt 以目前旋轉查詢 (row,col)。
func (in *Instance) IsFilledAt(row, col int) bool {
	return in.shape.CellFilled(in.rot, row, col)
}

// Cells 回傳目前位置/旋轉下所有格子的盤面座標（含盤面外）。
func (in *Instance) Cells() []Vec2 {
	out := make([]Vec2, 0, MaskSize)
	for row := 0; row < Area; row++ {
		for col := 0; col < Area; col++ {
			if in.IsFilledAt(row, col) {
				out = append(out, Vec2{X: in.pos.X + col, Y: in.pos.Y + row})
			}
		}
	}
	return out
}
