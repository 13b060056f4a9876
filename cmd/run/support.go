package main

import (
	"crypto/rand"
	"flag"
	"io"
	"math"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/zintix-labs/blocklab"
	"github.com/zintix-labs/blocklab/demo"
	"github.com/zintix-labs/blocklab/demo/demo_configs"
	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/sdk/core"
	"github.com/zintix-labs/blocklab/sdk/perf"
	"github.com/zintix-labs/blocklab/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type config struct {
	game    string
	configs string // 額外的設定檔目錄，與內建示範設定一起註冊
	games   int
	worker  int
	pieces  int
	seed    int64
	out     string
	pprof   perf.Mode
	stdout  io.Writer
}

func bindVar(args []string) (*config, error) {
	cfg := &config{stdout: os.Stdout}
	var pmode string
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&cfg.game, "game", demo.DefaultGame, "target game name")
	fs.StringVar(&cfg.configs, "configs", "", "extra directory of *.yaml / *.json game settings")
	fs.IntVar(&cfg.games, "games", 1000, "number of games to simulate")
	fs.IntVar(&cfg.worker, "worker", 1, "number of workers")
	fs.IntVar(&cfg.pieces, "pieces", blocklab.DefaultMaxPieces, "piece cap per game")
	fs.Int64Var(&cfg.seed, "seed", -1, "int64 seed for random number generator (<0: random)")
	fs.StringVar(&cfg.out, "out", "table", "output: table|json|yaml")
	fs.StringVar(&pmode, "p", "", "pprof: '', cpu, heap, allocs")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	m, err := perf.ParseMode(pmode)
	if err != nil {
		return nil, err
	}
	cfg.pprof = m
	if err := cfg.valid(); err != nil {
		return nil, err
	}

	// given seed illegal -> random seed
	if cfg.seed < 0 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			return nil, errs.Wrap(err, "new crypto seed failed")
		}
		cfg.seed = seed.Int64()
	}
	return cfg, nil
}

func (cfg *config) valid() error {
	if cfg.worker < 1 {
		return errs.Config("worker", "workers must > 0")
	}
	if cfg.games < 1 {
		return errs.Config("games", "games must > 0")
	}
	if cfg.pieces < 1 {
		return errs.Config("pieces", "pieces must > 0")
	}
	cfg.out = strings.ToLower(strings.TrimSpace(cfg.out))
	if cfg.out != "table" && stats.RenderFor(cfg.out) == nil {
		return errs.Config("out", "unknown output %q (want table|json|yaml)", cfg.out)
	}
	return nil
}

func (cfg *config) newLab() (*blocklab.Lab, error) {
	if cfg.configs == "" {
		return demo.NewLab(nil)
	}
	return blocklab.NewAuto(core.Default(), blocklab.Configs(demo_configs.FS, os.DirFS(cfg.configs)))
}

// executeSimulator 建立模擬器並依 -out 輸出報告
func (cfg *config) executeSimulator() error {
	lab, err := cfg.newLab()
	if err != nil {
		return err
	}
	s, err := lab.NewSimulatorWithSeed(cfg.game, cfg.seed)
	if err != nil {
		return err
	}
	s.SetMaxPieces(cfg.pieces)

	table := cfg.out == "table"
	if table {
		green := "\033[1;32m"
		reset := "\033[0m"
		p := message.NewPrinter(language.English)
		p.Fprintf(cfg.stdout, "%s[WORKERS:%d] [GAME:%s] [GAMES:%d] [PIECES<=%d] [SEED:%d]%s\n",
			green, cfg.worker, s.GameName, cfg.games, cfg.pieces, cfg.seed, reset)
	}

	var (
		rep  *stats.GameReport
		used time.Duration
	)
	if cfg.worker == 1 {
		rep, used, err = s.Sim(cfg.games, table)
	} else {
		rep, used, err = s.SimMP(cfg.games, cfg.worker, table)
	}
	if err != nil {
		return err
	}

	if table {
		rep.Done()
		_, err := io.WriteString(cfg.stdout, rep.Table(used))
		return err
	}
	return rep.WriteWith(cfg.stdout, stats.RenderFor(cfg.out))
}
