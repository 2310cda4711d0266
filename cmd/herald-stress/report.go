package main

import (
	"io"
	"runtime"
	"text/template"
	"time"
)

type Report struct {
	// Configuration
	RunID        string
	Worlds       int
	SeedEntities int
	Generations  int
	Ticks        int

	// Results
	TotalTime     time.Duration
	FinalEntities int
	Despawned     int
	SpawnRound    Stats
	TickRound     Stats
	MemStatsStart runtime.MemStats
	MemStatsEnd   runtime.MemStats
}

type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Avg     time.Duration
	Samples []time.Duration
}

func (s *Stats) Finalize() {
	if len(s.Samples) == 0 {
		return
	}

	var total time.Duration
	s.Min = s.Samples[0]
	s.Max = s.Samples[0]

	for _, sample := range s.Samples {
		if sample < s.Min {
			s.Min = sample
		}
		if sample > s.Max {
			s.Max = sample
		}
		total += sample
	}
	s.Avg = total / time.Duration(len(s.Samples))
}

func (r *Report) Generate(w io.Writer) error {
	const reportTemplate = `
# Herald Stress Test Report

## Run Configuration
- **Run ID:** {{.RunID}}
- **Parallel Worlds:** {{.Worlds}}
- **Seed Entities per World:** {{.SeedEntities}}
- **Reproduction Generations:** {{.Generations}}
- **Tick Rounds:** {{.Ticks}}

## Population Results
- **Final Entities (all worlds):** {{.FinalEntities}}
- **Entities Despawned:** {{.Despawned}}
- **Total Test Time:** {{.TotalTime}}
- **Reproduction Round:**
  - **Avg:** {{.SpawnRound.Avg}}
  - **Min:** {{.SpawnRound.Min}}
  - **Max:** {{.SpawnRound.Max}}
- **Tick Round:**
  - **Avg:** {{.TickRound.Avg}}
  - **Min:** {{.TickRound.Min}}
  - **Max:** {{.TickRound.Max}}

## Memory Usage (Raw Bytes)
- Heap Alloc:     {{.MemStatsStart.HeapAlloc}} (start) -> {{.MemStatsEnd.HeapAlloc}} (end) -> delta: {{bsub .MemStatsEnd.HeapAlloc .MemStatsStart.HeapAlloc}}
- Total Alloc:    {{.MemStatsStart.TotalAlloc}} (start) -> {{.MemStatsEnd.TotalAlloc}} (end) -> delta: {{bsub .MemStatsEnd.TotalAlloc .MemStatsStart.TotalAlloc}}
- Sys Memory:     {{.MemStatsStart.Sys}} (start) -> {{.MemStatsEnd.Sys}} (end) -> delta: {{bsub .MemStatsEnd.Sys .MemStatsStart.Sys}}
- Num GC:         {{.MemStatsStart.NumGC}} (start) -> {{.MemStatsEnd.NumGC}} (end) -> delta: {{usub .MemStatsEnd.NumGC .MemStatsStart.NumGC}}
- Total GC Pause: {{.MemStatsEnd.PauseTotalNs | ns}}
`

	fm := template.FuncMap{
		"bsub": func(a, b uint64) int64 {
			return int64(a) - int64(b)
		},
		"usub": func(a, b uint32) uint32 {
			return a - b
		},
		"ns": func(ns uint64) string {
			return time.Duration(ns).String()
		},
	}

	tmpl, err := template.New("report").Funcs(fm).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, r)
}
