package analytics

import (
	"sync"
	"time"

	"github.com/vitaly-z/Nayuki-web-published-code/internal/model"
	"github.com/vitaly-z/Nayuki-web-published-code/internal/windowstats"
)

type Snapshot struct {
	TimeUnix   int64   `json:"timestamp"`
	AvgCPU     float64 `json:"rolling_avg_cpu"`
	AvgRPS     float64 `json:"rolling_avg_rps"`
	MinCPU     float64 `json:"rolling_min_cpu"`
	MaxCPU     float64 `json:"rolling_max_cpu"`
	MinRPS     float64 `json:"rolling_min_rps"`
	MaxRPS     float64 `json:"rolling_max_rps"`
	ZCPU       float64 `json:"zscore_cpu"`
	ZRPS       float64 `json:"zscore_rps"`
	CPUAnomaly bool    `json:"anomaly_cpu"`
	RPSAnomaly bool    `json:"anomaly_rps"`
	Samples    int     `json:"window_count"`
}

// Analyzer keeps rolling windows for every metric of incoming samples. Process
// calls are serialized; Latest may be called from any goroutine.
type Analyzer struct {
	cpuWindow *windowstats.WindowStats
	rpsWindow *windowstats.WindowStats
	threshold float64

	mu     sync.RWMutex
	latest Snapshot
}

func NewAnalyzer(window int, threshold float64) *Analyzer {
	return &Analyzer{
		cpuWindow: windowstats.NewWindowStats(window),
		rpsWindow: windowstats.NewWindowStats(window),
		threshold: threshold,
	}
}

func (a *Analyzer) Process(m model.Sample) Snapshot {
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().Unix()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.cpuWindow.Push(m.CPU)
	a.rpsWindow.Push(m.RPS)

	zCPU := a.cpuWindow.ZScore(m.CPU)
	zRPS := a.rpsWindow.ZScore(m.RPS)

	// both windows hold at least the sample just pushed
	minCPU, _ := a.cpuWindow.Min()
	maxCPU, _ := a.cpuWindow.Max()
	minRPS, _ := a.rpsWindow.Min()
	maxRPS, _ := a.rpsWindow.Max()

	res := Snapshot{
		TimeUnix:   m.Timestamp,
		AvgCPU:     a.cpuWindow.Average(),
		AvgRPS:     a.rpsWindow.Average(),
		MinCPU:     minCPU,
		MaxCPU:     maxCPU,
		MinRPS:     minRPS,
		MaxRPS:     maxRPS,
		ZCPU:       zCPU,
		ZRPS:       zRPS,
		CPUAnomaly: absFloat(zCPU) >= a.threshold,
		RPSAnomaly: absFloat(zRPS) >= a.threshold,
		Samples:    a.cpuWindow.Size(),
	}

	a.latest = res
	return res
}

func (a *Analyzer) Latest() Snapshot {
	a.mu.RLock()
	res := a.latest
	a.mu.RUnlock()
	return res
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
