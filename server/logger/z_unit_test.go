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

package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

type syncBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuf) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuf) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]LogMode{"": ModeDev, "PROD": ModeProd, "silence": ModeSilence} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q)=%s,%v", in, got, err)
		}
	}
	if _, err := ParseMode("loud"); err == nil {
		t.Fatalf("unknown mode should fail")
	}
}

func TestForGameAttrs(t *testing.T) {
	buf := &syncBuf{}
	log := ForGame(NewWriterLogger(buf, ModeProd), "classic", "s-1")
	log.Info("creating block")
	out := buf.String()
	if !strings.Contains(out, `"game":"classic"`) || !strings.Contains(out, `"session":"s-1"`) {
		t.Fatalf("missing attrs: %s", out)
	}
	ForGame(nil, "x", "").Info("dropped")
}

func TestProdFiltersDebug(t *testing.T) {
	buf := &syncBuf{}
	log := NewWriterLogger(buf, ModeProd)
	log.Debug("hidden")
	if buf.String() != "" {
		t.Fatalf("prod should drop debug, got %s", buf.String())
	}
}

func TestAsyncHandlerDrainsOnClose(t *testing.T) {
	buf := &syncBuf{}
	ah := NewAsyncHandler(slog.NewTextHandler(buf, nil), 64)
	log := slog.New(ah)
	for i := 0; i < 10; i++ {
		log.Info("line")
	}
	ah.Close()
	if n := strings.Count(buf.String(), "msg=line"); n+int(ah.Dropped()) != 10 {
		t.Fatalf("written %d + dropped %d != 10", n, ah.Dropped())
	}
	log.Info("after close")
	if ah.Dropped() == 0 {
		t.Fatalf("records after close should count as dropped")
	}
}
