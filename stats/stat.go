package stats

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// GameReport 多局自動對戰的統計報告
type GameReport struct {
	Summary *SummaryReport `json:"Summary"`
	Lines   *LinesReport   `json:"Lines"`
	Clears  *ClearReport   `json:"Clears"`
	Spawns  *SpawnReport   `json:"Spawns"`
	isDone  bool
}

type SummaryReport struct {
	GameName   string  `json:"GameName"`
	Policy     string  `json:"Policy"`
	Seed       int64   `json:"Seed"`
	Games      int     `json:"Games"`
	Pieces     int64   `json:"Pieces"`
	Lines      int64   `json:"Lines"`
	Score      int64   `json:"Score"`
	GameOvers  int     `json:"GameOvers"`
	Capped     int     `json:"Capped"`     // 到達方塊上限而停止的局數
	CappedRate float64 `json:"CappedRate"` // Capped / Games
	CappedCI   CI      `json:"CappedCI"`
}

// LinesReport 每局消行數分布
//
// 紀錄時只收集原始樣本，Done() 才計算統計量
type LinesReport struct {
	PerGame       []float64 `json:"-" yaml:"-"`
	Mean          float64   `json:"Mean"`
	Std           float64   `json:"Std"`
	MeanCI        CI        `json:"MeanCI"`
	Median        float64   `json:"Median"`
	P90           float64   `json:"P90"`
	Max           float64   `json:"Max"`
	PiecesPerLine float64   `json:"PiecesPerLine"`
}

// ClearReport 單次落地同時消除的列數分布：1、2、3、4+
type ClearReport struct {
	Labels []string  `json:"Labels"`
	Counts []int64   `json:"Counts"`
	Dist   []float64 `json:"Dist"`
}

// SpawnReport 各方塊出生次數，並對「均勻」做卡方適合度檢定
type SpawnReport struct {
	Shapes    []string `json:"Shapes"`
	Counts    []int64  `json:"Counts"`
	Expected  float64  `json:"Expected"`
	ChiSquare float64  `json:"ChiSquare"`
	PValue    float64  `json:"PValue"`
}

// ClearLabels 對應 ClearReport.Counts 的索引
var ClearLabels = []string{"1", "2", "3", "4+"}

// ============================================================
// ** 公開方法 **
// ============================================================

// Done 將原始樣本轉換為最終統計結果並鎖定 isDone 標記，重複呼叫無作用。
func (g *GameReport) Done() {
	if g.isDone {
		return
	}
	s := g.Summary
	if s.Games > 0 {
		s.CappedRate, s.CappedCI = proportionCICP(s.Capped, s.Games, 0.95)
	}
	g.doneLines()
	g.doneClears()
	g.doneSpawns()
	g.isDone = true
}

func (g *GameReport) doneLines() {
	l := g.Lines
	data := slices.Clone(l.PerGame)
	slices.Sort(data)
	n := len(data)
	if n == 0 {
		return
	}
	l.Mean, l.Std = stat.MeanStdDev(data, nil)
	if math.IsNaN(l.Std) {
		l.Std = 0
	}
	l.MeanCI = CI{Lo: l.Mean, Hi: l.Mean}
	if n > 1 {
		t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}.Quantile(0.975)
		se := l.Std / math.Sqrt(float64(n))
		l.MeanCI = CI{Lo: max(l.Mean-t*se, 0), Hi: l.Mean + t*se}
	}
	l.Median = stat.Quantile(0.5, stat.Empirical, data, nil)
	l.P90 = stat.Quantile(0.9, stat.Empirical, data, nil)
	l.Max = data[n-1]
	if g.Summary.Lines > 0 {
		l.PiecesPerLine = float64(g.Summary.Pieces) / float64(g.Summary.Lines)
	}
}

func (g *GameReport) doneClears() {
	c := g.Clears
	c.Labels = ClearLabels
	c.Dist = make([]float64, len(c.Counts))
	var total int64
	for _, v := range c.Counts {
		total += v
	}
	if total == 0 {
		return
	}
	for i, v := range c.Counts {
		c.Dist[i] = float64(v) / float64(total)
	}
}

func (g *GameReport) doneSpawns() {
	sp := g.Spawns
	k := len(sp.Counts)
	var total int64
	for _, v := range sp.Counts {
		total += v
	}
	if k < 2 || total == 0 {
		sp.PValue = 1
		return
	}
	sp.ChiSquare, sp.PValue = ChiSquareUniform(sp.Counts)
	sp.Expected = float64(total) / float64(k)
}

// ChiSquareUniform 對「各類別機率相同」做卡方適合度檢定，回傳 (統計量, p-value)。
func ChiSquareUniform(counts []int64) (float64, float64) {
	k := len(counts)
	var total int64
	for _, v := range counts {
		total += v
	}
	if k < 2 || total == 0 {
		return 0, 1
	}
	exp := float64(total) / float64(k)
	chi := 0.0
	for _, v := range counts {
		d := float64(v) - exp
		chi += d * d / exp
	}
	return chi, distuv.ChiSquared{K: float64(k - 1)}.Survival(chi)
}

func (g *GameReport) WriteWith(w io.Writer, rep GameReportRender) error {
	g.Done()
	return rep.Write(w, g)
}

// StdOut 以表格輸出到 stdout；ut 為模擬用時。
func (g *GameReport) StdOut(ut time.Duration) {
	g.Done()
	fmt.Print(g.Table(ut))
}

// Table 回傳所有表格的文字內容。
func (g *GameReport) Table(ut time.Duration) string {
	var sb strings.Builder
	sb.WriteString(formatDuration(ut, g.Summary.Games))
	sk, sm := g.fmtBasic()
	sb.WriteString(fmtTable(g.Summary.GameName, sk, sm))
	ck, cm := g.fmtClears()
	sb.WriteString(fmtTable("Line Clears", ck, cm))
	pk, pm := g.fmtSpawns()
	sb.WriteString(fmtTable("Spawns", pk, pm))
	return sb.String()
}

// ============================================================
// ** 內部方法 **
// ============================================================

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	// Beta PPF 映射，處理邊界
	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

func formatDuration(d time.Duration, games int) string {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	gps := int(float64(games) / sec)
	if sec < 60.0 {
		return p.Sprintf("used: %.2f seconds\ngps : %d games/sec\n", sec, gps)
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		return p.Sprintf("used: %dm %ds\ngps : %d games/sec\n", m, s, gps)
	}
	return p.Sprintf("used: %dh:%dm:%ds\ngps : %d games/sec\n", h, m, s, gps)
}

func (g *GameReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	s, l := g.Summary, g.Lines
	basic := map[string]string{
		"Game Name":       s.GameName,
		"Policy":          s.Policy,
		"Seed":            fmt.Sprintf("%d", s.Seed),
		"Games":           p.Sprintf("%d", s.Games),
		"Pieces":          p.Sprintf("%d", s.Pieces),
		"Lines":           p.Sprintf("%d", s.Lines),
		"Score":           p.Sprintf("%d", s.Score),
		"Game Overs":      p.Sprintf("%d", s.GameOvers),
		"Capped":          p.Sprintf("%.2f%% [%.2f%%,%.2f%%]", 100*s.CappedRate, 100*s.CappedCI.Lo, 100*s.CappedCI.Hi),
		"Lines/Game":      p.Sprintf("%.3f", l.Mean),
		"Lines 95% CI":    p.Sprintf("[%.3f,%.3f]", l.MeanCI.Lo, l.MeanCI.Hi),
		"Lines STD":       p.Sprintf("%.3f", l.Std),
		"Lines P50 / P90": p.Sprintf("%.0f / %.0f", l.Median, l.P90),
		"Pieces/Line":     p.Sprintf("%.3f", l.PiecesPerLine),
	}
	keys := []string{"Game Name", "Policy", "Seed", "Games", "Pieces", "Lines", "Score", "Game Overs", "Capped", "Lines/Game", "Lines 95% CI", "Lines STD", "Lines P50 / P90", "Pieces/Line"}
	return keys, basic
}

func (g *GameReport) fmtClears() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	keys := make([]string, 0, len(g.Clears.Counts))
	msg := make(map[string]string, len(g.Clears.Counts))
	for i, v := range g.Clears.Counts {
		k := ClearLabels[i] + " line(s)"
		keys = append(keys, k)
		msg[k] = p.Sprintf("%d (%.2f%%)", v, 100*g.Clears.Dist[i])
	}
	return keys, msg
}

func (g *GameReport) fmtSpawns() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	sp := g.Spawns
	keys := make([]string, 0, len(sp.Shapes)+1)
	msg := make(map[string]string, len(sp.Shapes)+1)
	for i, name := range sp.Shapes {
		keys = append(keys, name)
		msg[name] = p.Sprintf("%d", sp.Counts[i])
	}
	keys = append(keys, "χ² / p-value")
	msg["χ² / p-value"] = p.Sprintf("%.3f / %.4f", sp.ChiSquare, sp.PValue)
	return keys, msg
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := runewidth.StringWidth(title)
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
