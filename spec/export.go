package spec

import (
	"encoding/json"
	"io"

	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/piece"
)

// DefaultSpawnOffsets 編輯新方塊時的預設出生位置：每個旋轉都是 (-Area/2, -Area/2)。
func DefaultSpawnOffsets() []piece.Vec2 {
	out := make([]piece.Vec2, piece.Rotations)
	for i := range out {
		out[i] = piece.Vec2{X: -piece.Area / 2, Y: -piece.Area / 2}
	}
	return out
}

// NewPieceSetting 建立全空的方塊設定（編輯器「新增方塊」的起點）。
func NewPieceSetting(name string) PieceSetting {
	return PieceSetting{
		Name:         name,
		Color:        piece.RGB{R: 255, G: 255, B: 255},
		Cells:        make([]int, piece.CellCount),
		SpawnOffsets: DefaultSpawnOffsets(),
	}
}

// Normalize 把數值欄位夾回合法範圍。載入流程不呼叫它：載入時超出範圍是錯誤。
func (gs *GameSettings) Normalize() {
	if gs.TimeToStep < MinTimeToStep {
		gs.TimeToStep = MinTimeToStep
	}
	if gs.PointsByBreakingLine < 0 {
		gs.PointsByBreakingLine = 0
	}
}

// Export 正規化後檢查並以縮排 JSON 寫出；gs 本身不會被修改。
//
// 檢查順序：空旋轉 -> 按鍵綁定 -> 其餘完整載入檢查。
func (gs *GameSettings) Export(w io.Writer) error {
	c := *gs
	c.Pieces = append([]PieceSetting(nil), gs.Pieces...)
	c.Normalize()

	for _, ps := range c.Pieces {
		for r := 0; r*piece.MaskSize < len(ps.Cells); r++ {
			end := min((r+1)*piece.MaskSize, len(ps.Cells))
			sum := 0
			for _, v := range ps.Cells[r*piece.MaskSize : end] {
				sum += v
			}
			if sum == 0 {
				return errs.EmptyRotation("export failed: rotation number %d of piece %s was left empty, a piece must have at least one cell", r+1, ps.Name)
			}
		}
	}
	for _, b := range c.bindings() {
		if !b.key.Bound() {
			return errs.Config(b.field, "export failed: key cannot be None")
		}
	}
	if err := c.init(); err != nil {
		return errs.Wrap(err, "export failed")
	}
	if c.PieceCount == 0 {
		c.PieceCount = len(c.Pieces)
	}

	bs, err := json.MarshalIndent(&c, "", "  ")
	if err != nil {
		return errs.Wrap(err, "export failed: marshal json")
	}
	bs = append(bs, '\n')
	if _, err := w.Write(bs); err != nil {
		return errs.Wrap(err, "export failed: write")
	}
	return nil
}
