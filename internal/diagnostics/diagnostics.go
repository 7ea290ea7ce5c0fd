// Package diagnostics captures host resource usage for lag reports. When the
// pipeline falls behind real time the first question is whether the host was
// saturated, so the snapshot focuses on CPU, memory and this process.
package diagnostics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/speechscope/internal/logger"
)

// HostSnapshot is a point-in-time view of host and process resource usage.
// Fields that could not be read are left at zero and listed in Missing.
type HostSnapshot struct {
	Timestamp time.Time `json:"timestamp"`

	CPUPercent    float64 `json:"cpu_percent"`
	Load1         float64 `json:"load1"`
	MemoryPercent float64 `json:"memory_percent"`
	SwapPercent   float64 `json:"swap_percent"`

	ProcessCPUPercent float64 `json:"process_cpu_percent"`
	ProcessRSSBytes   uint64  `json:"process_rss_bytes"`
	Goroutines        int     `json:"goroutines"`
	HeapAllocBytes    uint64  `json:"heap_alloc_bytes"`

	Missing []string `json:"missing,omitempty"`
}

// Collect reads a host snapshot. It never blocks to sample CPU usage: the
// CPU figure is the utilisation since the previous call, zero on the first.
func Collect(ctx context.Context) HostSnapshot {
	s := HostSnapshot{
		Timestamp:  time.Now(),
		Goroutines: runtime.NumGoroutine(),
	}

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else {
		s.Missing = append(s.Missing, "cpu")
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
	} else {
		s.Missing = append(s.Missing, "load")
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemoryPercent = vm.UsedPercent
	} else {
		s.Missing = append(s.Missing, "memory")
	}

	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		s.SwapPercent = swap.UsedPercent
	} else {
		s.Missing = append(s.Missing, "swap")
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
			s.ProcessCPUPercent = pct
		}
		if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
			s.ProcessRSSBytes = info.RSS
		}
	} else {
		s.Missing = append(s.Missing, "process")
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.HeapAllocBytes = m.HeapAlloc

	return s
}

// Fields renders the snapshot as structured log fields.
func (s HostSnapshot) Fields() []logger.Field {
	fields := []logger.Field{
		logger.Float64("cpu_percent", s.CPUPercent),
		logger.Float64("load1", s.Load1),
		logger.Float64("memory_percent", s.MemoryPercent),
		logger.Float64("swap_percent", s.SwapPercent),
		logger.Float64("process_cpu_percent", s.ProcessCPUPercent),
		logger.Uint64("process_rss_bytes", s.ProcessRSSBytes),
		logger.Int("goroutines", s.Goroutines),
		logger.Uint64("heap_alloc_bytes", s.HeapAllocBytes),
	}
	if len(s.Missing) > 0 {
		fields = append(fields, logger.Any("missing", s.Missing))
	}
	return fields
}

// Saturated reports whether the host looks CPU or memory bound.
func (s HostSnapshot) Saturated() bool {
	const cpuLimit, memLimit = 90.0, 95.0
	return s.CPUPercent >= cpuLimit || s.MemoryPercent >= memLimit ||
		(s.Load1 > 0 && s.Load1 >= float64(runtime.NumCPU()))
}
