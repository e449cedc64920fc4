package agent

import (
	"context"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// ActionBinary reports where an action's binary resolves on this node
type ActionBinary struct {
	Action string `json:"action" yaml:"action"`
	Binary string `json:"binary" yaml:"binary"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Found  bool   `json:"found" yaml:"found"`
}

// HostReport describes the node a helper runs on
type HostReport struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	Hostname        string `json:"hostname" yaml:"hostname"`
	OS              string `json:"os" yaml:"os"`
	Platform        string `json:"platform" yaml:"platform"`
	PlatformVersion string `json:"platform_version" yaml:"platform_version"`
	KernelVersion   string `json:"kernel_version" yaml:"kernel_version"`
	Virtualization  string `json:"virtualization,omitempty" yaml:"virtualization,omitempty"`

	CPUCores          int     `json:"cpu_cores" yaml:"cpu_cores"`
	MemoryTotal       uint64  `json:"memory_total" yaml:"memory_total"`
	MemoryUsedPercent float64 `json:"memory_used_percent" yaml:"memory_used_percent"`

	Actions []ActionBinary `json:"actions" yaml:"actions"`
}

// Inspect gathers a host report and checks every action binary is
// resolvable. Host facts that cannot be read are left empty.
func (e *Executor) Inspect(ctx context.Context) HostReport {
	report := HostReport{Timestamp: time.Now()}

	info, err := host.InfoWithContext(ctx)
	if err == nil {
		report.Hostname = info.Hostname
		report.OS = info.OS
		report.Platform = info.Platform
		report.PlatformVersion = info.PlatformVersion
		report.KernelVersion = info.KernelVersion
		report.Virtualization = info.VirtualizationSystem
	} else {
		e.logger.Debug("Host info unavailable", zap.Error(err))
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		report.CPUCores = cores
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		report.MemoryTotal = memInfo.Total
		report.MemoryUsedPercent = memInfo.UsedPercent
	}

	for _, name := range e.known {
		bin := e.actions[name]
		entry := ActionBinary{Action: name, Binary: bin}
		if path, err := exec.LookPath(bin); err == nil {
			entry.Path = path
			entry.Found = true
		}
		report.Actions = append(report.Actions, entry)
	}

	return report
}
