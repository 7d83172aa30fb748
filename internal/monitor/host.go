package monitor

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostLoad is the load on the machine generating traffic. A saturated
// generator skews every latency it reports.
type HostLoad struct {
	CPUPercent float64
	MemPercent float64
}

// SampleHost reads CPU and memory usage. Unavailable figures are left at zero.
func SampleHost() HostLoad {
	var h HostLoad
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		h.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		h.MemPercent = vm.UsedPercent
	}
	return h
}
