package spec

import (
	"bytes"
	"encoding/json"

	"github.com/zintix-labs/blocklab/errs"
	"gopkg.in/yaml.v3"
)

// GetGameSettingByYAML
// 會讀取 YAML 設定、建立方塊目錄並執行檢查後回傳。
func GetGameSettingByYAML(data []byte) (*GameSettings, error) {
	gs := &GameSettings{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 嚴格檢查：多寫/拼錯欄位就報錯
	if err := dec.Decode(gs); err != nil {
		return nil, errs.Wrap(err, "failed to unmarshal yaml").WithCode(errs.CodeConfig)
	}

	// 設定檔初始化
	if err := gs.init(); err != nil {
		return nil, errs.Wrap(err, "game settings initialized err")
	}

	return gs, nil
}

// GetGameSettingByJSON
// 會讀取 Json 設定、建立方塊目錄並執行檢查後回傳
func GetGameSettingByJSON(data []byte) (*GameSettings, error) {
	gs := &GameSettings{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(gs); err != nil {
		return nil, errs.Wrap(err, "can not unmarshal json byte").WithCode(errs.CodeConfig)
	}

	// 設定檔初始化
	if err := gs.init(); err != nil {
		return nil, errs.Wrap(err, "game settings initialized err")
	}

	return gs, nil
}
