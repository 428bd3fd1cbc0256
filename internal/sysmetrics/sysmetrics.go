// Package sysmetrics tracks process-level CPU and memory usage, and probes
// total device memory for components that size themselves to the host.
package sysmetrics

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// defaultTotalMemory is the conservative estimate used when the host's
// total memory cannot be determined (unreadable /proc/meminfo, or a
// platform other than Linux). It intentionally lands in the lowest
// tier of any memory-based sizing table a caller might consult.
const defaultTotalMemory = 512 * 1024 * 1024 // 512 MB

var (
	mu       sync.Mutex
	lastWall time.Time
	lastUser time.Duration
	lastSys  time.Duration
	lastCPU  float64
)

func init() {
	now := time.Now()
	utime, stime := getrusageTimes()
	mu.Lock()
	lastWall = now
	lastUser = utime
	lastSys = stime
	mu.Unlock()
}

// CPUPercent returns the process CPU usage as a percentage (0–100+)
// since the last call. Multi-core processes can exceed 100%.
func CPUPercent() float64 {
	now := time.Now()
	utime, stime := getrusageTimes()

	mu.Lock()
	defer mu.Unlock()

	wall := now.Sub(lastWall)
	if wall <= 0 {
		return lastCPU
	}

	cpuDelta := (utime - lastUser) + (stime - lastSys)
	pct := float64(cpuDelta) / float64(wall) * 100.0

	lastWall = now
	lastUser = utime
	lastSys = stime
	lastCPU = pct

	return pct
}

// MemoryInuse returns the memory actively in use by the Go runtime, in
// bytes. This is HeapInuse (live heap spans) plus StackInuse (goroutine
// stacks), excluding virtual address space reserved but not committed.
func MemoryInuse() int64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int64(m.HeapInuse + m.StackInuse)
}

// TotalMemory returns the total physical memory of the host, in bytes.
// On Linux it reads MemTotal from /proc/meminfo; on any other platform,
// or if /proc/meminfo cannot be read or parsed, it falls back to a
// conservative 512 MB estimate so memory-tiered callers degrade to
// their smallest configuration rather than failing.
func TotalMemory() int64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return defaultTotalMemory
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		// Expected shape: "MemTotal:", "<kB value>", "kB"
		if len(fields) < 2 {
			return defaultTotalMemory
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return defaultTotalMemory
		}
		return kb * 1024
	}
	return defaultTotalMemory
}

func getrusageTimes() (user, sys time.Duration) {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0, 0
	}
	user = time.Duration(rusage.Utime.Nano())
	sys = time.Duration(rusage.Stime.Nano())
	return user, sys
}
