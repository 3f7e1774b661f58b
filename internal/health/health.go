// Package health reports resource usage of the running server process.
package health

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type Report struct {
	Status         string  `json:"status"`
	PID            int32   `json:"pid"`
	Uptime         string  `json:"uptime"`
	Goroutines     int     `json:"goroutines"`
	Threads        int32   `json:"threads"`
	RSSBytes       uint64  `json:"rssBytes"`
	CPUPercent     float64 `json:"cpuPercent"`
	SystemMemUsed  float64 `json:"systemMemUsedPercent"`
	ActiveSessions int     `json:"activeSessions"`
}

// Reporter samples the current process.
type Reporter struct {
	proc    *process.Process
	started time.Time
}

func NewReporter() (*Reporter, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("inspect own process: %w", err)
	}
	return &Reporter{proc: p, started: time.Now()}, nil
}

// Collect takes one sample. Individual probes that fail leave their field
// zeroed and mark the report degraded.
func (r *Reporter) Collect() Report {
	rep := Report{
		Status:     "ok",
		PID:        r.proc.Pid,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}

	if mi, err := r.proc.MemoryInfo(); err == nil {
		rep.RSSBytes = mi.RSS
	} else {
		rep.Status = "degraded"
	}
	if cpu, err := r.proc.CPUPercent(); err == nil {
		rep.CPUPercent = cpu
	} else {
		rep.Status = "degraded"
	}
	if n, err := r.proc.NumThreads(); err == nil {
		rep.Threads = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		rep.SystemMemUsed = vm.UsedPercent
	}

	return rep
}
