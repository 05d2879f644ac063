package batch

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/catalogix/errors"
)

// SystemMetrics is a snapshot of host memory next to the configured cap.
type SystemMetrics struct {
	Workers       int     `json:"workers"`
	Recommended   int     `json:"recommended_workers"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// getMemoryStats returns total and available memory in bytes.
func getMemoryStats() (total uint64, available uint64, err error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Total, v.Available, nil
}

// calculateSafeWorkerCount recommends a cap from available memory. A decoded
// full-size image plus its resized copy needs roughly a quarter GB.
func calculateSafeWorkerCount(availableGB float64) int {
	const memoryPerImageWorker = 0.25 // GB per in-flight decode/resize
	const memoryBuffer = 1.0          // GB left for everything else

	if availableGB < memoryBuffer {
		return 1
	}

	recommended := int((availableGB - memoryBuffer) / memoryPerImageWorker)
	if recommended < 1 {
		return 1
	}
	if recommended > 64 {
		return 64
	}
	return recommended
}

// GetSystemMetrics reports current memory usage for a given cap.
func GetSystemMetrics(workers int) SystemMetrics {
	m := SystemMetrics{Workers: workers}
	total, available, err := getMemoryStats()
	if err != nil || total == 0 {
		return m
	}
	m.MemoryTotalGB = float64(total) / 1024 / 1024 / 1024
	m.MemoryUsedGB = float64(total-available) / 1024 / 1024 / 1024
	m.MemoryPercent = (m.MemoryUsedGB / m.MemoryTotalGB) * 100
	m.Recommended = calculateSafeWorkerCount(float64(available) / 1024 / 1024 / 1024)
	return m
}

// checkMemoryPressure returns a warning when workers exceeds what available
// memory supports, or "" when it looks fine or cannot be measured.
func checkMemoryPressure(workers int) string {
	total, available, err := getMemoryStats()
	if err != nil {
		return ""
	}

	availableGB := float64(available) / 1024 / 1024 / 1024
	totalGB := float64(total) / 1024 / 1024 / 1024
	recommended := calculateSafeWorkerCount(availableGB)

	if workers > recommended {
		return fmt.Sprintf(
			"Worker count (%d) exceeds recommended (%d) for available memory (%.1f/%.1fGB). "+
				"Consider lowering ingest.workers to avoid memory pressure while decoding images.",
			workers, recommended, totalGB-availableGB, totalGB)
	}
	return ""
}
