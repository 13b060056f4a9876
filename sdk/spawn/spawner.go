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

package spawn

import (
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/sdk/piece"
)

// Policy 方塊抽選策略
type Policy uint8

const (
	// Uniform 每次從整組方塊獨立均勻抽一個，可任意重複。
	Uniform Policy = iota
	// Bag 每輪每種方塊各出現一次，抽完再補滿一整袋。
	Bag
)

func (p Policy) String() string {
	switch p {
	case Uniform:
		return "uniform"
	case Bag:
		return "bag"
	default:
		return "unknown"
	}
}

// Spawner 依策略產生新的方塊實例。亂數一律從注入的 Core 取，seed 相同則序列相同。
type Spawner struct {
	policy Policy
	shapes []*piece.Shape
	pool   []int // Bag 模式剩餘的 shapes 索引
	c      *core.Core
}

func New(policy Policy, shapes []*piece.Shape, c *core.Core) (*Spawner, error) {
	if len(shapes) == 0 {
		return nil, errs.Config("pieces", "spawner requires at least one piece")
	}
	if c == nil {
		return nil, errs.NewFatal("spawner requires a core")
	}
	if policy != Uniform && policy != Bag {
		return nil, errs.Config("controlled_random_mode", "unknown spawn policy %d", policy)
	}
	return &Spawner{
		policy: policy,
		shapes: append([]*piece.Shape(nil), shapes...),
		pool:   make([]int, 0, len(shapes)),
		c:      c,
	}, nil
}

func (s *Spawner) Policy() Policy { return s.policy }

// Next 每次都回傳新的 Instance，不重用前一次的物件。
func (s *Spawner) Next() *piece.Instance {
	if s.policy == Bag {
		return piece.NewInstance(s.shapes[s.drawFromBag()])
	}
	return piece.NewInstance(s.shapes[s.c.IntN(len(s.shapes))])
}

// Remaining 回傳本袋尚未抽出的數量；Uniform 模式恆為 0。
func (s *Spawner) Remaining() int {
	return len(s.pool)
}

// drawFromBag 袋空時補滿並整袋洗牌，之後從尾端依序取出。
func (s *Spawner) drawFromBag() int {
	if len(s.pool) == 0 {
		for i := range s.shapes {
			s.pool = append(s.pool, i)
		}
		s.c.ShuffleInts(s.pool)
	}
	last := len(s.pool) - 1
	idx := s.pool[last]
	s.pool = s.pool[:last]
	return idx
}
