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

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/demo/demo_configs"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/server"
	"github.com/zintix-labs/blocklab/server/logger"
	"github.com/zintix-labs/blocklab/server/svrcfg"
)

// lab server：內建示範設定，可再以 -configs 掛上外部設定目錄。
func main() {
	cfg, err := loadConfigFromFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	server.Run(cfg)
}

type config struct {
	Addr        string
	LogMode     string
	Configs     string
	MaxSessions int
	SessionTTL  time.Duration
	SimWorkers  int
	NoMetrics   bool
	ReplayMax   int
}

func loadConfigFromFlags(args []string) (*svrcfg.SvrCfg, error) {
	cfg := new(config)
	fs := flag.NewFlagSet("svr", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", svrcfg.DefaultAddr, "listen address")
	fs.StringVar(&cfg.LogMode, "log-mode", "dev", "log mode: dev|prod|silence")
	fs.StringVar(&cfg.Configs, "configs", "", "extra directory of *.yaml / *.json game settings")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", blocklab.DefaultMaxSessions, "max concurrent game sessions")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", blocklab.DefaultSessionTTL, "evict sessions idle longer than this")
	fs.IntVar(&cfg.SimWorkers, "sim-workers", svrcfg.DefaultSimWorkers, "max workers for /v1/sim")
	fs.BoolVar(&cfg.NoMetrics, "no-metrics", false, "disable /metrics")
	fs.IntVar(&cfg.ReplayMax, "replay-max-actions", svrcfg.DefaultReplayMaxActions, "max actions in a /v1/replay tape")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	log, _ := logger.NewAsync(4096, mode)

	srcs := blocklab.Configs(demo_configs.FS)
	if cfg.Configs != "" {
		srcs = blocklab.Configs(demo_configs.FS, os.DirFS(cfg.Configs))
	}
	lab, err := blocklab.NewAuto(core.Default(), srcs)
	if err != nil {
		return nil, err
	}
	lab.SetLogger(log)
	return &svrcfg.SvrCfg{
		Log:         log,
		Lab:         lab,
		Addr:        cfg.Addr,
		MaxSessions: cfg.MaxSessions,
		SessionTTL:  cfg.SessionTTL,
		SimWorkers:  cfg.SimWorkers,
		Metrics:     !cfg.NoMetrics,

		ReplayMaxActions: cfg.ReplayMax,
	}, nil
}
