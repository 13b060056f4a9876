package spec

import (
	"fmt"
	"time"

	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/piece"
	"github.com/zintix-labs/blocklab/sdk/spawn"
)

const (
	// MinTimeToStep 自動下落間隔下限（秒）
	MinTimeToStep = 0.01
)

// GameSettings 包含啟動一局落塊遊戲所需的全部設定。
type GameSettings struct {
	Name                 string         `yaml:"name"                    json:"name"`
	TimeToStep           float64        `yaml:"time_to_step"            json:"time_to_step"`
	PointsByBreakingLine int            `yaml:"points_by_breaking_line" json:"points_by_breaking_line"`
	ControlledRandomMode bool           `yaml:"controlled_random_mode"  json:"controlled_random_mode"`
	DebugMode            bool           `yaml:"debug_mode"              json:"debug_mode"`
	MoveRightKey         KeyCode        `yaml:"move_right_key"          json:"move_right_key"`
	MoveLeftKey          KeyCode        `yaml:"move_left_key"           json:"move_left_key"`
	MoveDownKey          KeyCode        `yaml:"move_down_key"           json:"move_down_key"`
	RotateRightKey       KeyCode        `yaml:"rotate_right_key"        json:"rotate_right_key"`
	RotateLeftKey        KeyCode        `yaml:"rotate_left_key"         json:"rotate_left_key"`
	PieceCount           int            `yaml:"piece_count,omitempty"   json:"piece_count,omitempty"`
	Pieces               []PieceSetting `yaml:"pieces"                  json:"pieces"`

	shapes []*piece.Shape
}

// PieceSetting 一種方塊的設定。Cells 為 4 個旋轉 x 5 列 x 5 行展平的 0/1。
type PieceSetting struct {
	Name         string       `yaml:"name"          json:"name"`
	Color        piece.RGB    `yaml:"color"         json:"color"`
	Cells        []int        `yaml:"cells"         json:"cells"`
	SpawnOffsets []piece.Vec2 `yaml:"spawn_offsets" json:"spawn_offsets"`
}

// init 建立方塊目錄並做完整檢查，任何錯誤都會指出欄位。
func (gs *GameSettings) init() error {
	if err := gs.valid(); err != nil {
		return err
	}
	shapes := make([]*piece.Shape, 0, len(gs.Pieces))
	for i, ps := range gs.Pieces {
		s, err := piece.NewShape(ps.Name, ps.Color, ps.Cells, ps.SpawnOffsets)
		if err != nil {
			return errs.Wrap(err, fmt.Sprintf("pieces[%d]", i))
		}
		shapes = append(shapes, s)
	}
	// 匯出時已擋過空旋轉，但手寫的設定檔不一定經過匯出，載入時再查一次。
	if err := piece.ValidateCatalog(shapes, gs.PieceCount); err != nil {
		return err
	}
	gs.shapes = shapes
	return nil
}

// valid 檢查純量欄位與按鍵綁定。
func (gs *GameSettings) valid() error {
	if gs.TimeToStep < MinTimeToStep {
		return errs.Config("time_to_step", "must be >= %v, got %v", MinTimeToStep, gs.TimeToStep)
	}
	if gs.PointsByBreakingLine < 0 {
		return errs.Config("points_by_breaking_line", "must be >= 0, got %d", gs.PointsByBreakingLine)
	}
	for _, b := range gs.bindings() {
		if !b.key.Bound() {
			return errs.Config(b.field, "must be different than None")
		}
	}
	if len(gs.Pieces) == 0 {
		return errs.Config("pieces", "at least one piece is required")
	}
	return nil
}

// Shapes 回傳載入時建好的方塊目錄（不可變，可安全共享）。
func (gs *GameSettings) Shapes() []*piece.Shape {
	return append([]*piece.Shape(nil), gs.shapes...)
}

// Policy 對應出生策略：ControlledRandomMode 為 Bag，否則 Uniform。
func (gs *GameSettings) Policy() spawn.Policy {
	if gs.ControlledRandomMode {
		return spawn.Bag
	}
	return spawn.Uniform
}

// StepInterval 自動下落間隔。
func (gs *GameSettings) StepInterval() time.Duration {
	return time.Duration(gs.TimeToStep * float64(time.Second))
}
