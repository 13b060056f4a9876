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

package field

// Listener 接收盤面事件。事件在 Step 內同步、依序送出。
type Listener interface {
	PieceLanded()
	GameOver()
	LineDestroyed(row int)
}

// Events 以函式欄位實作 Listener，未設定的欄位略過。
type Events struct {
	OnLanded   func()
	OnGameOver func()
	OnLine     func(row int)
}

func (e Events) PieceLanded() {
	if e.OnLanded != nil {
		e.OnLanded()
	}
}

func (e Events) GameOver() {
	if e.OnGameOver != nil {
		e.OnGameOver()
	}
}

func (e Events) LineDestroyed(row int) {
	if e.OnLine != nil {
		e.OnLine(row)
	}
}

// State 盤面狀態
type State uint8

const (
	StateIdle   State = iota // 沒有操作中的方塊，等待 CreatePiece
	StateActive              // 有方塊正在下落
	StateOver                // 遊戲結束，只能 ResetGame
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateOver:
		return "over"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StepResult Step 的結果；零值代表沒有執行 Step。
type StepResult uint8

const (
	StepMoved StepResult = iota + 1
	StepLanded
	StepGameOver
)

func (r StepResult) String() string {
	switch r {
	case StepMoved:
		return "moved"
	case StepLanded:
		return "landed"
	case StepGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

func (r StepResult) MarshalText() ([]byte, error) { return []byte(r.String()), nil }
