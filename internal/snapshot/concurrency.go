// internal/snapshot/concurrency.go
package snapshot

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// OptimalWorkers sizes the capture worker pool from host resources. Page
// rendering is browser-bound, so the pool stays near the physical core count
// and backs off when available memory cannot hold that many tabs.
func OptimalWorkers() int {
	workers := runtime.NumCPU()
	if counts, err := cpu.Counts(false); err == nil && counts > 0 {
		workers = counts
	}

	// A rendering tab holds a full DOM plus its snapshot, budget ~300MB each
	if vm, err := mem.VirtualMemory(); err == nil {
		maxByMemory := int(vm.Available / (300 * 1024 * 1024))
		if maxByMemory < 1 {
			maxByMemory = 1
		}
		if maxByMemory < workers {
			workers = maxByMemory
		}
	}

	if workers < 1 {
		workers = 1
	}
	if workers > 16 {
		workers = 16
	}
	return workers
}
