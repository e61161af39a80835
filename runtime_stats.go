package statsnet

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// GaugeRecorder receives sampled values
type GaugeRecorder interface {
	Gauge(name string, value float64)
}

// RecordRuntimeStats samples Go runtime and process figures as gauges
func RecordRuntimeStats(g GaugeRecorder) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	g.Gauge("runtime.memory_alloc_bytes", float64(ms.Alloc))
	g.Gauge("runtime.memory_sys_bytes", float64(ms.Sys))
	g.Gauge("runtime.memory_heap_alloc_bytes", float64(ms.HeapAlloc))
	g.Gauge("runtime.memory_heap_inuse_bytes", float64(ms.HeapInuse))
	g.Gauge("runtime.memory_stack_inuse_bytes", float64(ms.StackInuse))
	g.Gauge("runtime.goroutines_num", float64(runtime.NumGoroutine()))
	g.Gauge("runtime.gc_runs_total", float64(ms.NumGC))
	g.Gauge("runtime.gc_pause_total_ns", float64(ms.PauseTotalNs))

	if rss := getProcessRSS(); rss > 0 {
		g.Gauge("runtime.memory_rss_bytes", float64(rss))
	}
	if fdCount := getOpenFileDescriptors(); fdCount > 0 {
		g.Gauge("runtime.file_descriptors_num", float64(fdCount))
	}
}

// getProcessRSS returns the resident set size in bytes, 0 when unknown
func getProcessRSS() uint64 {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0
	}
	for line := range strings.SplitSeq(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if kb, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
				return kb * 1024
			}
		}
	}
	return 0
}

// getOpenFileDescriptors counts /proc/self/fd entries, 0 when unknown
func getOpenFileDescriptors() uint64 {
	if entries, err := os.ReadDir("/proc/self/fd"); err == nil {
		return uint64(len(entries))
	}
	return 0
}
