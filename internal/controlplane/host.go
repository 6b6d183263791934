package controlplane

import (
	"log/slog"

	"github.com/shirou/gopsutil/v4/host"
)

// HostInfo identifies the machine the agent monitors
type HostInfo struct {
	Hostname        string `json:"hostname"`
	OS              string `json:"os"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platformVersion,omitempty"`
	KernelVersion   string `json:"kernelVersion,omitempty"`
	Arch            string `json:"arch,omitempty"`
	BootTime        uint64 `json:"bootTime,omitempty"`
}

// hostInfo is best effort. nil when the platform cannot be queried.
func hostInfo() *HostInfo {
	info, err := host.Info()
	if err != nil {
		slog.Warn("host info", "error", err)
		return nil
	}
	return &HostInfo{
		Hostname:        info.Hostname,
		OS:              info.OS,
		Platform:        info.Platform,
		PlatformVersion: info.PlatformVersion,
		KernelVersion:   info.KernelVersion,
		Arch:            info.KernelArch,
		BootTime:        info.BootTime,
	}
}
