package httpapi

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
)

// systemMetrics samples process/host resource usage for /stats, adapted
// from the teacher's internal/metrics/system.go down to what the
// introspection endpoint actually reports: host CPU percent (via
// gopsutil, non-blocking against the previous sample) and Go heap/GC
// stats (via runtime, which gopsutil does not cover).
type systemMetrics struct {
	mu sync.Mutex
}

func newSystemMetrics() *systemMetrics { return &systemMetrics{} }

// cpuPercent returns host-wide CPU usage since the previous call. The
// first call in a process always returns 0, since gopsutil has no prior
// sample to compare against; pass interval=0 to avoid blocking the
// request for a full sampling window.
func (m *systemMetrics) cpuPercent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}

type memoryStats struct {
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	HeapSysMB   float64 `json:"heap_sys_mb"`
	GCCount     uint32  `json:"gc_count"`
	Goroutines  int     `json:"goroutines"`
}

func readMemoryStats() memoryStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return memoryStats{
		HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
		HeapSysMB:   float64(mem.HeapSys) / 1024 / 1024,
		GCCount:     mem.NumGC,
		Goroutines:  runtime.NumGoroutine(),
	}
}
