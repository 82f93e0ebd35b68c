package supervisor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// sampleResources polls pid's resource counters every interval until ctx is
// cancelled, appending each sample via record. Sampling failures (process
// gone, permission denied) are silently tolerated and stop sampling for
// this task (spec.md §4.4).
func sampleResources(ctx context.Context, pid int32, interval time.Duration, record func(ResourceSample)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			proc, err := process.NewProcessWithContext(ctx, pid)
			if err != nil {
				return
			}
			cpuPct, err := proc.CPUPercentWithContext(ctx)
			if err != nil {
				return
			}
			memInfo, err := proc.MemoryInfoWithContext(ctx)
			if err != nil {
				return
			}
			sample := ResourceSample{Timestamp: time.Now().UTC(), CPUPercent: cpuPct}
			if memInfo != nil {
				sample.MemoryRSS = memInfo.RSS
			}
			if ioCounters, err := proc.IOCountersWithContext(ctx); err == nil && ioCounters != nil {
				sample.IOOpCount = ioCounters.ReadCount + ioCounters.WriteCount
			}
			if conns, err := proc.ConnectionsWithContext(ctx); err == nil {
				sample.NetworkConnCount = len(conns)
			}
			record(sample)
		}
	}
}
