package sysstat

import (
	"codeberg.org/mutker/rpimonitor/internal/metric"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Category names, in publication order.
const (
	CategoryCPU  = "CPU"
	CategoryRAM  = "RAM"
	CategoryDisk = "DISK"
)

// NewRegistry builds the standard CPU, RAM and DISK layout on top of s.
// All values start at zero until the first sample.
func NewRegistry(s *Sources) (*metric.Registry, error) {
	cpuCategory, err := metric.NewCategory(CategoryCPU,
		metric.New("Temperature", "CPU Temperature", "'C", s.Temperature()),
		metric.New("Usage", "CPU Usage", "%", s.CPUUsage()),
		metric.New("Count", "CPU Count", "", s.CPUCount(), metric.WithPrecision(0)),
		metric.New("Frequency Current", "CPU Frequency Current", "MHz", s.CPUFrequency(FrequencyCurrent)),
		metric.New("Frequency Min", "CPU Frequency Min", "MHz", s.CPUFrequency(FrequencyMin)),
		metric.New("Frequency Max", "CPU Frequency Max", "MHz", s.CPUFrequency(FrequencyMax)),
	)
	if err != nil {
		return nil, err
	}

	ramCategory, err := metric.NewCategory(CategoryRAM,
		metric.New("Total", "RAM Total", "MiB",
			s.Memory(func(vm *mem.VirtualMemoryStat) float64 { return float64(vm.Total) }),
			metric.WithDivisor(metric.MiB)),
		metric.New("Used", "RAM Used", "MiB",
			s.Memory(func(vm *mem.VirtualMemoryStat) float64 { return float64(vm.Used) }),
			metric.WithDivisor(metric.MiB)),
		metric.New("Free", "RAM Free", "MiB",
			s.Memory(func(vm *mem.VirtualMemoryStat) float64 { return float64(vm.Free) }),
			metric.WithDivisor(metric.MiB)),
		metric.New("Available", "RAM Available", "MiB",
			s.Memory(func(vm *mem.VirtualMemoryStat) float64 { return float64(vm.Available) }),
			metric.WithDivisor(metric.MiB)),
		metric.New("Percent Used", "RAM Percent Used", "%",
			s.Memory(func(vm *mem.VirtualMemoryStat) float64 { return vm.UsedPercent })),
	)
	if err != nil {
		return nil, err
	}

	diskCategory, err := metric.NewCategory(CategoryDisk,
		metric.New("Total", "Disk Total", "GiB",
			s.Disk(func(u *disk.UsageStat) float64 { return float64(u.Total) }),
			metric.WithDivisor(metric.GiB)),
		metric.New("Used", "Disk Used", "GiB",
			s.Disk(func(u *disk.UsageStat) float64 { return float64(u.Used) }),
			metric.WithDivisor(metric.GiB)),
		metric.New("Free", "Disk Free", "GiB",
			s.Disk(func(u *disk.UsageStat) float64 { return float64(u.Free) }),
			metric.WithDivisor(metric.GiB)),
		metric.New("Percent Used", "Disk Percent Used", "%",
			s.Disk(func(u *disk.UsageStat) float64 { return u.UsedPercent })),
	)
	if err != nil {
		return nil, err
	}

	return metric.NewRegistry(cpuCategory, ramCategory, diskCategory)
}
