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

// ops 是取代 Makefile 的開發任務入口：
//
//	go run ./scripts test        # 精簡輸出（只留 ok / FAIL）
//	go run ./scripts test-detail # 完整輸出，略過 [no test files]
//	go run ./scripts sim         # 以示範設定跑一萬局模擬
//	go run ./scripts pgo         # 跑 cpu profile 並複製成 default.pgo
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type task struct {
	help string
	run  func() error
}

var tasks = map[string]task{
	"test":        {"go test ./... -cover -count=1 (ok/FAIL only)", func() error { return goTest(false, "./...", "-cover", "-count=1") }},
	"test-detail": {"go test ./... -v -count=1", func() error { return goTest(true, "./...", "-v", "-count=1") }},
	"vet":         {"go vet ./...", func() error { return goRun("vet", "./...") }},
	"sim":         {"simulate 10k classic games on 4 workers", func() error { return goRun("run", "./cmd/run", "-games", "10000", "-worker", "4") }},
	"svr":         {"start the lab server on :5808", func() error { return goRun("run", "./cmd/svr") }},
	"pgo":         {"cpu profile a simulation and install it as default.pgo", pgo},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	t, ok := tasks[os.Args[1]]
	if !ok {
		printColor(colorYellow, fmt.Sprintf("Unknown task: %s", os.Args[1]))
		usage()
		os.Exit(1)
	}
	if err := t.run(); err != nil {
		printColor(colorRed, err.Error())
		os.Exit(1) // 告訴呼叫端失敗了
	}
}

func usage() {
	names := make([]string, 0, len(tasks))
	for n := range tasks {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Println("Usage: go run ./scripts [task]")
	for _, n := range names {
		fmt.Printf("  %-12s %s\n", n, tasks[n].help)
	}
}

func goRun(args ...string) error {
	cmd := exec.Command("go", args...)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

// goTest 先清 test cache，再逐行著色輸出；verbose=false 時只留 ok / FAIL 與建置錯誤。
func goTest(verbose bool, args ...string) error {
	printColor(colorGreen, "running tests")
	if err := exec.Command("go", "clean", "-testcache").Run(); err != nil {
		printColor(colorRed, err.Error())
	}
	cmd := exec.Command("go", append([]string{"test"}, args...)...)
	pr, pw := io.Pipe()
	cmd.Stdout, cmd.Stderr = pw, pw // 2>&1，編譯錯誤也讀得到
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start go test: %w", err)
	}
	go func() { pw.CloseWithError(cmd.Wait()) }()

	sc := bufio.NewScanner(pr)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "ok"):
			printColor(colorGreen, line)
		case strings.HasPrefix(line, "FAIL"):
			printColor(colorRed, line)
		case strings.Contains(line, "build failed") || strings.Contains(line, "setup failed"):
			printColor(colorRed, line)
		case verbose && !strings.Contains(line, "[no test files]"):
			fmt.Println(line)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("tests finished with errors: %w", err)
	}
	return nil
}

func pgo() error {
	if err := goRun("run", "./cmd/run", "-games", "2000", "-worker", "4", "-p", "cpu"); err != nil {
		return err
	}
	raw, err := os.ReadFile("build/profiling/cpu.pprof")
	if err != nil {
		return err
	}
	return os.WriteFile("cmd/run/default.pgo", raw, 0o644)
}

type ansiColor string

const (
	colorYellow ansiColor = "\033[33m"
	colorGreen  ansiColor = "\033[32m"
	colorRed    ansiColor = "\033[31m"
	colorReset            = "\033[0m"
)

func printColor(c ansiColor, msg string) {
	fmt.Printf("%s%s%s\n", c, msg, colorReset)
}
