// export 讀取編輯中的 YAML / JSON 遊戲設定，正規化並檢查後輸出 JSON。
//
//	go run ./cmd/export -in draft.yaml -out configs/draft.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/spec"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var in, out string
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.StringVar(&in, "in", "", "input settings file (.yaml/.yml/.json)")
	fs.StringVar(&out, "out", "", "output json file (empty: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in == "" {
		return errs.Config("in", "input file is required")
	}
	raw, err := os.ReadFile(in)
	if err != nil {
		return errs.Wrap(err, "read input failed")
	}
	gs, err := decodeDraft(filepath.Base(in), raw)
	if err != nil {
		return err
	}

	// 先寫進記憶體，檢查失敗時不留下半個檔案
	var buf bytes.Buffer
	if err := gs.Export(&buf); err != nil {
		return err
	}
	if out == "" {
		_, err := stdout.Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(err, "write output failed")
	}
	return nil
}

// decodeDraft 只解碼不檢查；範圍修正與完整檢查交給 Export。
// 欄位名稱仍然嚴格比對，拼錯的欄位直接報錯。
func decodeDraft(name string, raw []byte) (*spec.GameSettings, error) {
	gs := &spec.GameSettings{}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(gs); err != nil {
			return nil, errs.Wrap(err, "failed to unmarshal yaml").WithCode(errs.CodeConfig)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(gs); err != nil {
			return nil, errs.Wrap(err, "can not unmarshal json byte").WithCode(errs.CodeConfig)
		}
	default:
		return nil, errs.Config("in", "unsupported config format: %q", name)
	}
	return gs, nil
}
