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

package blocklab

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/server/logger"
)

const (
	DefaultMaxSessions = 1024
	DefaultSessionTTL  = 30 * time.Minute
)

// SessionOptions 控制 session store 的容量與閒置回收。
type SessionOptions struct {
	MaxSessions int           // <= 0 使用 DefaultMaxSessions
	IdleTTL     time.Duration // <= 0 使用 DefaultSessionTTL
	Log         *slog.Logger
}

// Sessions 管理 HTTP 對外的所有對局（一個 session 一台 Machine）。
//
//   - 容量有上限；滿了會先回收閒置過久的 session，仍然滿就拒絕建立。
//   - Do 以 recover 包住每次操作：Machine panic 代表狀態不可信，直接丟棄該 session。
//   - Close 之後所有操作直接回 Fatal，原因只會被寫入一次。
type Sessions struct {
	lab *Lab
	opt SessionOptions
	log *slog.Logger

	mu    sync.Mutex
	items map[string]*session

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string

	created atomic.Int64
	evicted atomic.Int64
	deleted atomic.Int64
	panics  atomic.Int64
}

type session struct {
	id       string
	m        *Machine
	lastUsed atomic.Int64 // unix nano
}

func (s *session) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

func newSessions(lab *Lab, opt SessionOptions) *Sessions {
	if opt.MaxSessions <= 0 {
		opt.MaxSessions = DefaultMaxSessions
	}
	if opt.IdleTTL <= 0 {
		opt.IdleTTL = DefaultSessionTTL
	}
	if opt.Log == nil {
		opt.Log = slog.New(slog.DiscardHandler)
	}
	s := &Sessions{
		lab:   lab,
		opt:   opt,
		log:   opt.Log,
		items: make(map[string]*session, 64),
		done:  make(chan struct{}),
	}
	s.reason.Store("")
	return s
}

// Create 建立新對局並讓第一個方塊出生。seed 為 nil 時由 crypto/rand 產生。
func (s *Sessions) Create(game string, seed *int64) (string, *Machine, error) {
	if s.Closed() {
		return "", nil, errs.NewFatal("sessions closed: " + s.ClosedReason())
	}
	var (
		m   *Machine
		err error
	)
	if seed != nil {
		m, err = s.lab.NewMachineWithSeed(game, *seed)
	} else {
		m, err = s.lab.NewMachine(game)
	}
	if err != nil {
		return "", nil, err
	}
	if err := m.Start(); err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.opt.MaxSessions {
		s.sweepLocked(time.Now())
	}
	if len(s.items) >= s.opt.MaxSessions {
		return "", nil, errs.Warnf("too many sessions (max %d)", s.opt.MaxSessions)
	}
	id := uuid.NewString()
	ss := &session{id: id, m: m}
	ss.touch(time.Now())
	s.items[id] = ss
	s.created.Add(1)
	logger.ForGame(s.log, m.Name(), id).Info("session created", slog.Int64("seed", m.Seed()))
	return id, m, nil
}

func (s *Sessions) get(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.items[id]
	if !ok {
		return nil, errs.NotFound("session %q not found", id)
	}
	return ss, nil
}

// Get 取得 session 的 Machine 並更新最後使用時間。
func (s *Sessions) Get(id string) (*Machine, error) {
	if s.Closed() {
		return nil, errs.NewFatal("sessions closed: " + s.ClosedReason())
	}
	ss, err := s.get(id)
	if err != nil {
		return nil, err
	}
	ss.touch(time.Now())
	return ss.m, nil
}

// Do 對 session 的 Machine 執行 fn。
//
// fn 若 panic，session 會被移除並回傳 Fatal；一般錯誤原樣回傳，session 保持可用。
func (s *Sessions) Do(ctx context.Context, id string, fn func(m *Machine) error) (err error) {
	select {
	case <-ctx.Done():
		e := errs.Wrap(ctx.Err(), "session op canceled/timeout")
		e.ErrLv = errs.Warn
		return e
	case <-s.done:
		return errs.NewFatal("sessions closed: " + s.ClosedReason())
	default:
	}
	ss, err := s.get(id)
	if err != nil {
		return err
	}
	ss.touch(time.Now())

	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.drop(id)
			logger.ForGame(s.log, ss.m.Name(), id).Error("session panic", slog.Any("panic", r))
			err = errs.NewFatal(fmt.Sprintf("session %s panic: %v", id, r))
		}
	}()
	return fn(ss.m)
}

// Delete 結束並移除 session。
func (s *Sessions) Delete(id string) error {
	if !s.drop(id) {
		return errs.NotFound("session %q not found", id)
	}
	s.deleted.Add(1)
	return nil
}

func (s *Sessions) drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

// Sweep 回收閒置超過 IdleTTL 的 session，回傳回收數量。
func (s *Sessions) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

func (s *Sessions) sweepLocked(now time.Time) int {
	limit := now.Add(-s.opt.IdleTTL).UnixNano()
	n := 0
	for id, ss := range s.items {
		if ss.lastUsed.Load() <= limit {
			delete(s.items, id)
			n++
		}
	}
	if n > 0 {
		s.evicted.Add(int64(n))
		s.log.Info("sessions evicted", slog.Int("count", n))
	}
	return n
}

// Run 定期回收閒置 session，直到 ctx 結束或 Close。
func (s *Sessions) Run(ctx context.Context) {
	t := time.NewTicker(max(s.opt.IdleTTL/2, time.Second))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}

// IDs 依字典序列出目前的 session id。
func (s *Sessions) IDs() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close 進入關閉狀態，可重複呼叫。
func (s *Sessions) Close() {
	s.closeWithReason("closed")
}

func (s *Sessions) closeWithReason(reason string) {
	s.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		s.reason.Store(reason)
		s.closed.Store(true)
		close(s.done)
	})
}

func (s *Sessions) Closed() bool {
	return s.closed.Load()
}

func (s *Sessions) ClosedReason() string {
	if v := s.reason.Load(); v != nil {
		if r, ok := v.(string); ok {
			return r
		}
	}
	return ""
}

// SessionMetrics 拉取式觀測快照，由上層決定輸出方式（log、/metrics）。
type SessionMetrics struct {
	Active      int    `json:"active"`
	Max         int    `json:"max"`
	Created     int64  `json:"created"`
	Deleted     int64  `json:"deleted"`
	Evicted     int64  `json:"evicted"`
	Panics      int64  `json:"panics"`
	Closed      bool   `json:"closed"`
	CloseReason string `json:"close_reason"`
}

func (s *Sessions) Metrics() SessionMetrics {
	return SessionMetrics{
		Active:      s.Len(),
		Max:         s.opt.MaxSessions,
		Created:     s.created.Load(),
		Deleted:     s.deleted.Load(),
		Evicted:     s.evicted.Load(),
		Panics:      s.panics.Load(),
		Closed:      s.Closed(),
		CloseReason: s.ClosedReason(),
	}
}
