package spec

import (
	"strings"

	"github.com/zintix-labs/blocklab/errs"
)

// KeyCode 按鍵名稱（例如 "RightArrow"、"A"）。實際的輸入擷取不在本模組範圍內。
type KeyCode string

const KeyNone KeyCode = "None"

// Bound 空字串與 None 都視為未綁定。
func (k KeyCode) Bound() bool {
	return k != "" && k != KeyNone
}

// Action 對一局遊戲的操作。
type Action uint8

const (
	ActNone Action = iota
	ActStep
	ActLeft
	ActRight
	ActDown
	ActRotateRight
	ActRotateLeft
	ActReset
)

var actionNames = [...]string{
	ActNone:        "none",
	ActStep:        "step",
	ActLeft:        "left",
	ActRight:       "right",
	ActDown:        "down",
	ActRotateRight: "rotate_right",
	ActRotateLeft:  "rotate_left",
	ActReset:       "reset",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// ParseAction 解析操作名稱（不分大小寫）。
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range actionNames {
		if i != int(ActNone) && n == s {
			return Action(i), nil
		}
	}
	return ActNone, errs.Warnf("unknown action %q", s)
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	v, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

type binding struct {
	field  string
	key    KeyCode
	action Action
}

func (gs *GameSettings) bindings() [5]binding {
	return [5]binding{
		{"move_right_key", gs.MoveRightKey, ActRight},
		{"move_left_key", gs.MoveLeftKey, ActLeft},
		{"move_down_key", gs.MoveDownKey, ActDown},
		{"rotate_right_key", gs.RotateRightKey, ActRotateRight},
		{"rotate_left_key", gs.RotateLeftKey, ActRotateLeft},
	}
}

// ActionForKey 依按鍵綁定找出對應操作；未綁定的按鍵回傳 ActNone, false。
func (gs *GameSettings) ActionForKey(k KeyCode) (Action, bool) {
	if !k.Bound() {
		return ActNone, false
	}
	for _, b := range gs.bindings() {
		if b.key == k {
			return b.action, true
		}
	}
	return ActNone, false
}
