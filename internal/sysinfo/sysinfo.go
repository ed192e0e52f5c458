// Package sysinfo collects a point-in-time inventory of the machine a
// protected application runs on.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sentinel values for probes that fail. Each probe degrades independently;
// one failure never aborts collection of the other fields.
const (
	UnknownOS     = "UNKNOWN_OS"
	UnknownCPU    = "UNKNOWN_CPU"
	UnknownMemory = "UNKNOWN_MEMORY"
	UnknownDisk   = "UNKNOWN_DISK"
)

// Placeholder strings for inventory fields that are intentionally not
// collected. They are reported verbatim rather than silently omitted.
const (
	GPUNotImplemented      = "GPU detection not implemented"
	ProgramsNotImplemented = "Program enumeration not implemented"
	AdaptersNotImplemented = "Network adapter detection not implemented"
)

// maxProcessNames caps the running-process list in a snapshot.
const maxProcessNames = 20

// Snapshot is a single machine inventory record. It is overwritten in full
// on every collection cycle; no history is kept locally.
type Snapshot struct {
	Hostname          string `json:"hostname"`
	HWID              string `json:"hwid"`
	OSVersion         string `json:"os_version"`
	CPUName           string `json:"cpu_name"`
	MemoryAmount      string `json:"memory_amount"`
	GPUInfo           string `json:"gpu_info"`
	DiskSpace         string `json:"disk_space"`
	InstalledPrograms string `json:"installed_programs"`
	NetworkAdapters   string `json:"network_adapters"`
	RunningProcesses  string `json:"running_processes"`
}

// Identity supplies the machine identity fields of a snapshot.
type Identity interface {
	HardwareID() string
	MachineName() string
}

// Collector gathers system inventory snapshots.
type Collector struct {
	ident Identity

	hostInfo      func(context.Context) (*host.InfoStat, error)
	cpuInfo       func(context.Context) ([]cpu.InfoStat, error)
	virtualMemory func(context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(context.Context, string) (*disk.UsageStat, error)
	processNames  func(context.Context) ([]string, error)
}

// NewCollector creates a collector backed by the operating system.
func NewCollector(ident Identity) *Collector {
	return &Collector{
		ident:         ident,
		hostInfo:      host.InfoWithContext,
		cpuInfo:       cpu.InfoWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		processNames:  listProcessNames,
	}
}

// listProcessNames enumerates running processes, skipping any that cannot
// be inspected.
func listProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Collect gathers a complete snapshot. It has no disk or network side
// effects; persisting the result is a separate explicit step.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	return Snapshot{
		Hostname:          c.ident.MachineName(),
		HWID:              c.ident.HardwareID(),
		OSVersion:         c.osVersion(ctx),
		CPUName:           c.cpuName(ctx),
		MemoryAmount:      c.memoryAmount(ctx),
		DiskSpace:         c.diskSpace(ctx),
		RunningProcesses:  c.runningProcesses(ctx),
		GPUInfo:           GPUNotImplemented,
		InstalledPrograms: ProgramsNotImplemented,
		NetworkAdapters:   AdaptersNotImplemented,
	}
}

func (c *Collector) osVersion(ctx context.Context) string {
	info, err := c.hostInfo(ctx)
	if err != nil || info == nil || info.Platform == "" {
		return UnknownOS
	}
	return fmt.Sprintf("%s %s Build %s", info.Platform, info.PlatformVersion, info.KernelVersion)
}

func (c *Collector) cpuName(ctx context.Context) string {
	infos, err := c.cpuInfo(ctx)
	if err != nil || len(infos) == 0 || infos[0].ModelName == "" {
		return UnknownCPU
	}
	return infos[0].ModelName
}

func (c *Collector) memoryAmount(ctx context.Context) string {
	stat, err := c.virtualMemory(ctx)
	if err != nil || stat == nil {
		return UnknownMemory
	}
	return fmt.Sprintf("%d MB", stat.Total/(1024*1024))
}

func (c *Collector) diskSpace(ctx context.Context) string {
	path := "/"
	if runtime.GOOS == "windows" {
		path = `C:\`
	}

	stat, err := c.diskUsage(ctx, path)
	if err != nil || stat == nil {
		return UnknownDisk
	}
	const gb = 1024 * 1024 * 1024
	return fmt.Sprintf("Total: %d GB, Free: %d GB", stat.Total/gb, stat.Free/gb)
}

// runningProcesses returns a comma-joined list of up to maxProcessNames
// process names. Processes that cannot be inspected are skipped, not retried.
func (c *Collector) runningProcesses(ctx context.Context) string {
	names, err := c.processNames(ctx)
	if err != nil {
		return ""
	}
	if len(names) > maxProcessNames {
		names = names[:maxProcessNames]
	}
	return strings.Join(names, ", ")
}
