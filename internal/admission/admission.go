// Package admission gates new connection acceptance on current system
// load. It generalizes the container-aware CPU/memory thresholds in
// ws/config.go's CPURejectThreshold from a cgroup-only implementation
// to gopsutil's cross-platform readings, so the relay behaves the
// same on bare metal as it does in a container.
package admission

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// statReader abstracts the system readings Gate depends on, so tests
// can supply deterministic values instead of sampling the real host.
type statReader interface {
	cpuPercent() (float64, error)
	memPercent() (float64, error)
}

type gopsutilReader struct{}

func (gopsutilReader) cpuPercent() (float64, error) {
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0, err
	}
	return percents[0], nil
}

func (gopsutilReader) memPercent() (float64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

// Gate decides whether the relay should accept a new connection based
// on current CPU and memory utilization.
type Gate struct {
	cpuRejectPercent float64
	memRejectPercent float64
	reader           statReader
}

// New builds a Gate that rejects new connections once CPU or memory
// utilization crosses the given percentage thresholds. A threshold of
// 0 or less disables that check.
func New(cpuRejectPercent, memRejectPercent float64) *Gate {
	return &Gate{cpuRejectPercent: cpuRejectPercent, memRejectPercent: memRejectPercent, reader: gopsutilReader{}}
}

// Admit reports whether a new connection should be accepted, and if
// not, why.
func (g *Gate) Admit() (ok bool, reason string) {
	if g.cpuRejectPercent > 0 {
		pct, err := g.reader.cpuPercent()
		if err == nil && pct >= g.cpuRejectPercent {
			return false, "cpu utilization above threshold"
		}
	}
	if g.memRejectPercent > 0 {
		pct, err := g.reader.memPercent()
		if err == nil && pct >= g.memRejectPercent {
			return false, "memory utilization above threshold"
		}
	}
	return true, ""
}
