// Package replay 把對局紀錄（seed + 操作序列）編碼成可傳輸、可存檔的格式，並能重播回同一個盤面。
//
// 二進位格式（Marshal）：
//
//	magic "BLT" || version(1 byte) || uvarint(len(game)) || game || varint(seed) || uvarint(n) || n x uvarint(action)
//
// Encode 再以 zstd 壓縮、base64url（無 padding）轉成 JSON/URL 安全的字串；
// WriteFrame 則以長度前綴寫入檔案或串流。
package replay

import (
	"bufio"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/spec"
)

const (
	magic   = "BLT"
	version = 1

	// MaxTapeBytes 解碼上限，避免不受信任的輸入造成無上限配置。
	MaxTapeBytes = 8 << 20
)

var (
	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
)

// EncodeAll / DecodeAll 可併發使用，整個行程共用一組。
func encoder() *zstd.Encoder {
	encOnce.Do(func() {
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
	return enc
}

func decoder() *zstd.Decoder {
	decOnce.Do(func() {
		dec, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxTapeBytes))
	})
	return dec
}

// Marshal 產生未壓縮的二進位紀錄。
func Marshal(t blocklab.Tape) []byte {
	out := make([]byte, 0, len(magic)+1+2*binary.MaxVarintLen64+len(t.Game)+len(t.Actions)+binary.MaxVarintLen64)
	out = append(out, magic...)
	out = append(out, version)
	out = binary.AppendUvarint(out, uint64(len(t.Game)))
	out = append(out, t.Game...)
	out = binary.AppendVarint(out, t.Seed)
	out = binary.AppendUvarint(out, uint64(len(t.Actions)))
	for _, a := range t.Actions {
		out = binary.AppendUvarint(out, uint64(a))
	}
	return out
}

// Unmarshal 解析 Marshal 的輸出；格式錯誤一律為 Warn（輸入問題）。
func Unmarshal(b []byte) (blocklab.Tape, error) {
	var t blocklab.Tape
	if len(b) < len(magic)+1 || string(b[:len(magic)]) != magic {
		return t, errs.NewWarn("decode tape failed: bad magic")
	}
	if b[len(magic)] != version {
		return t, errs.Warnf("decode tape failed: unsupported version %d", b[len(magic)])
	}
	b = b[len(magic)+1:]

	ln, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)-n) < ln {
		return t, errs.NewWarn("decode tape failed: truncated game name")
	}
	t.Game = string(b[n : n+int(ln)])
	b = b[n+int(ln):]

	seed, n := binary.Varint(b)
	if n <= 0 {
		return t, errs.NewWarn("decode tape failed: invalid seed")
	}
	t.Seed = seed
	b = b[n:]

	cnt, n := binary.Uvarint(b)
	if n <= 0 || cnt > uint64(len(b)-n) {
		return t, errs.NewWarn("decode tape failed: invalid action count")
	}
	b = b[n:]
	t.Actions = make([]spec.Action, 0, cnt)
	for i := uint64(0); i < cnt; i++ {
		v, n := binary.Uvarint(b)
		if n <= 0 {
			return t, errs.Warnf("decode tape failed: truncated action %d", i)
		}
		if v == 0 || v > uint64(spec.ActReset) {
			return t, errs.Warnf("decode tape failed: invalid action %d at %d", v, i)
		}
		t.Actions = append(t.Actions, spec.Action(v))
		b = b[n:]
	}
	if len(b) != 0 {
		return t, errs.NewWarn("decode tape failed: trailing bytes")
	}
	return t, nil
}

// Encode 壓縮並轉成 base64url 字串。
func Encode(t blocklab.Tape) string {
	return base64.RawURLEncoding.EncodeToString(encoder().EncodeAll(Marshal(t), nil))
}

// Decode 為 Encode 的反向操作。
func Decode(s string) (blocklab.Tape, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return blocklab.Tape{}, badInput(err, "decode base64url failed")
	}
	return decompress(raw)
}

func decompress(raw []byte) (blocklab.Tape, error) {
	plain, err := decoder().DecodeAll(raw, nil)
	if err != nil {
		return blocklab.Tape{}, badInput(err, "decompress tape failed")
	}
	return Unmarshal(plain)
}

// WriteFrame 以 uvarint(len(payload)) || payload 寫入壓縮後的紀錄。
func WriteFrame(w io.Writer, t blocklab.Tape) error {
	payload := encoder().EncodeAll(Marshal(t), nil)
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(payload)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return errs.Wrap(err, "write tape frame header failed")
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(err, "write tape frame payload failed")
	}
	return nil
}

// FrameReader 依序讀出 WriteFrame 寫入的紀錄。
type FrameReader struct {
	br *bufio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{br: bufio.NewReader(r)}
}

// Next 讀下一筆；讀完時回傳 io.EOF。
func (fr *FrameReader) Next() (blocklab.Tape, error) {
	ln, err := binary.ReadUvarint(fr.br)
	if err == io.EOF {
		return blocklab.Tape{}, io.EOF
	}
	if err != nil {
		return blocklab.Tape{}, errs.Wrap(err, "read tape frame header failed")
	}
	if ln > MaxTapeBytes {
		return blocklab.Tape{}, errs.NewWarn("read tape frame failed: payload exceeds limit")
	}
	buf := make([]byte, ln)
	if _, err := io.ReadFull(fr.br, buf); err != nil {
		return blocklab.Tape{}, badInput(err, "read tape frame payload failed")
	}
	return decompress(buf)
}

// Replay 以紀錄中的遊戲與 seed 建一台新機台，依序套用所有操作後回傳。
// 同一個 Lab 的同一份設定下，重播結果與原本的對局完全相同。
func Replay(lab *blocklab.Lab, t blocklab.Tape) (*blocklab.Machine, error) {
	m, err := lab.NewMachineWithSeed(t.Game, t.Seed)
	if err != nil {
		return nil, err
	}
	if err := run(m, t); err != nil {
		return nil, err
	}
	return m, nil
}

// Final 只求最終盤面：在不記 tape、不記事件的機台上重播，記憶體用量與紀錄長度無關。
func Final(lab *blocklab.Lab, t blocklab.Tape) (blocklab.Snapshot, error) {
	m, err := lab.NewSimMachineWithSeed(t.Game, t.Seed)
	if err != nil {
		return blocklab.Snapshot{}, err
	}
	if err := run(m, t); err != nil {
		return blocklab.Snapshot{}, err
	}
	return m.State(), nil
}

func run(m *blocklab.Machine, t blocklab.Tape) error {
	if err := m.Start(); err != nil {
		return err
	}
	for i, a := range t.Actions {
		if _, err := m.Apply(a); err != nil {
			return errs.Wrap(err, fmt.Sprintf("replay diverged at action %d", i))
		}
	}
	return nil
}

// badInput 解碼失敗屬於輸入問題，分級為 Warn。
func badInput(err error, msg string) *errs.E {
	e := errs.Wrap(err, msg)
	e.ErrLv = errs.Warn
	return e
}
