package status

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is the payload served by the status endpoint.
type Snapshot struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	Goroutines      int     `json:"goroutines"`
	CPUPercent      float64 `json:"cpu_percent"`
	MemoryUsedBytes uint64  `json:"memory_used_bytes"`
	MemoryPercent   float64 `json:"memory_percent"`
	DiskUsedBytes   uint64  `json:"disk_used_bytes"`
	DiskFreeBytes   uint64  `json:"disk_free_bytes"`
	DiskPercent     float64 `json:"disk_percent"`
	CollectedAt     string  `json:"collected_at"`
}

// Collector gathers host and process stats for the status endpoint.
// Gathering runs in parallel; individual probe failures leave zeroes
// rather than failing the whole snapshot.
type Collector struct {
	contentPath string
	startedAt   time.Time
}

// NewCollector reports disk usage for the filesystem holding
// contentPath.
func NewCollector(contentPath string) *Collector {
	return &Collector{
		contentPath: contentPath,
		startedAt:   time.Now(),
	}
}

func (c *Collector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{
		UptimeSeconds: time.Since(c.startedAt).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		CollectedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		// interval 0 compares against the previous call instead of
		// blocking the request for a sampling window
		percentages, err := cpu.PercentWithContext(ctx, 0, false)
		if err == nil && len(percentages) > 0 {
			snap.CPUPercent = percentages[0]
		}
	}()

	go func() {
		defer wg.Done()
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err == nil {
			snap.MemoryUsedBytes = vm.Used
			snap.MemoryPercent = vm.UsedPercent
		}
	}()

	go func() {
		defer wg.Done()
		if c.contentPath == "" {
			return
		}
		usage, err := disk.UsageWithContext(ctx, c.contentPath)
		if err == nil {
			snap.DiskUsedBytes = usage.Used
			snap.DiskFreeBytes = usage.Free
			snap.DiskPercent = usage.UsedPercent
		}
	}()

	wg.Wait()
	return snap
}
