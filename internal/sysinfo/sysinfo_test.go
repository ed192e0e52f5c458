package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type fakeIdentity struct {
	hwid string
	name string
}

func (f fakeIdentity) HardwareID() string  { return f.hwid }
func (f fakeIdentity) MachineName() string { return f.name }

func healthyCollector() *Collector {
	c := NewCollector(fakeIdentity{hwid: "HWID-1", name: "pc-1"})
	c.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{Platform: "debian", PlatformVersion: "12.5", KernelVersion: "6.1.0"}, nil
	}
	c.cpuInfo = func(context.Context) ([]cpu.InfoStat, error) {
		return []cpu.InfoStat{{ModelName: "Example CPU @ 3.2GHz"}}, nil
	}
	c.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 16 * 1024 * 1024 * 1024}, nil
	}
	c.diskUsage = func(context.Context, string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Total: 500 * 1024 * 1024 * 1024, Free: 120 * 1024 * 1024 * 1024}, nil
	}
	c.processNames = func(context.Context) ([]string, error) {
		return []string{"initd", "agentd"}, nil
	}
	return c
}

func TestCollect(t *testing.T) {
	snap := healthyCollector().Collect(context.Background())

	if snap.Hostname != "pc-1" {
		t.Errorf("Hostname = %q", snap.Hostname)
	}
	if snap.HWID != "HWID-1" {
		t.Errorf("HWID = %q", snap.HWID)
	}
	if snap.OSVersion != "debian 12.5 Build 6.1.0" {
		t.Errorf("OSVersion = %q", snap.OSVersion)
	}
	if snap.CPUName != "Example CPU @ 3.2GHz" {
		t.Errorf("CPUName = %q", snap.CPUName)
	}
	if snap.MemoryAmount != "16384 MB" {
		t.Errorf("MemoryAmount = %q", snap.MemoryAmount)
	}
	if snap.DiskSpace != "Total: 500 GB, Free: 120 GB" {
		t.Errorf("DiskSpace = %q", snap.DiskSpace)
	}
	if snap.RunningProcesses != "initd, agentd" {
		t.Errorf("RunningProcesses = %q", snap.RunningProcesses)
	}
}

func TestCollect_Placeholders(t *testing.T) {
	snap := healthyCollector().Collect(context.Background())

	if snap.GPUInfo != GPUNotImplemented {
		t.Errorf("GPUInfo = %q, want placeholder", snap.GPUInfo)
	}
	if snap.InstalledPrograms != ProgramsNotImplemented {
		t.Errorf("InstalledPrograms = %q, want placeholder", snap.InstalledPrograms)
	}
	if snap.NetworkAdapters != AdaptersNotImplemented {
		t.Errorf("NetworkAdapters = %q, want placeholder", snap.NetworkAdapters)
	}
}

func TestCollect_AllProbesFail(t *testing.T) {
	probeErr := errors.New("probe failed")

	c := NewCollector(fakeIdentity{hwid: "HWID-1", name: "pc-1"})
	c.hostInfo = func(context.Context) (*host.InfoStat, error) { return nil, probeErr }
	c.cpuInfo = func(context.Context) ([]cpu.InfoStat, error) { return nil, probeErr }
	c.virtualMemory = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, probeErr }
	c.diskUsage = func(context.Context, string) (*disk.UsageStat, error) { return nil, probeErr }
	c.processNames = func(context.Context) ([]string, error) { return nil, probeErr }

	snap := c.Collect(context.Background())

	if snap.OSVersion != UnknownOS {
		t.Errorf("OSVersion = %q, want %q", snap.OSVersion, UnknownOS)
	}
	if snap.CPUName != UnknownCPU {
		t.Errorf("CPUName = %q, want %q", snap.CPUName, UnknownCPU)
	}
	if snap.MemoryAmount != UnknownMemory {
		t.Errorf("MemoryAmount = %q, want %q", snap.MemoryAmount, UnknownMemory)
	}
	if snap.DiskSpace != UnknownDisk {
		t.Errorf("DiskSpace = %q, want %q", snap.DiskSpace, UnknownDisk)
	}
	if snap.RunningProcesses != "" {
		t.Errorf("RunningProcesses = %q, want empty", snap.RunningProcesses)
	}

	// Identity fields are still populated when probes fail.
	if snap.Hostname != "pc-1" || snap.HWID != "HWID-1" {
		t.Errorf("identity fields lost: %+v", snap)
	}
}

func TestCollect_OneProbeFailureDoesNotAbortOthers(t *testing.T) {
	c := healthyCollector()
	c.cpuInfo = func(context.Context) ([]cpu.InfoStat, error) { return nil, errors.New("cpu unreadable") }

	snap := c.Collect(context.Background())

	if snap.CPUName != UnknownCPU {
		t.Errorf("CPUName = %q, want %q", snap.CPUName, UnknownCPU)
	}
	if snap.MemoryAmount != "16384 MB" {
		t.Errorf("MemoryAmount = %q, other probes should be unaffected", snap.MemoryAmount)
	}
}

func TestRunningProcesses_Capped(t *testing.T) {
	c := healthyCollector()
	c.processNames = func(context.Context) ([]string, error) {
		names := make([]string, 0, 50)
		for i := 0; i < 50; i++ {
			names = append(names, fmt.Sprintf("proc%d", i))
		}
		return names, nil
	}

	snap := c.Collect(context.Background())

	got := strings.Split(snap.RunningProcesses, ", ")
	if len(got) != maxProcessNames {
		t.Errorf("process list length = %d, want %d", len(got), maxProcessNames)
	}
	if got[0] != "proc0" || got[len(got)-1] != fmt.Sprintf("proc%d", maxProcessNames-1) {
		t.Errorf("process list order changed: %v", got)
	}
}
