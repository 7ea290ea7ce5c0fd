package diagnostics

import (
	"context"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/tphakala/speechscope/internal/logger"
)

// SystemInfo describes the machine a session runs on. It is logged once at
// startup so lag reports can be read against the hardware.
type SystemInfo struct {
	OS              string   `json:"os"`
	Platform        string   `json:"platform"`
	PlatformVersion string   `json:"platform_version"`
	Arch            string   `json:"arch"`
	CPUBrand        string   `json:"cpu_brand"`
	PhysicalCores   int      `json:"physical_cores"`
	LogicalCores    int      `json:"logical_cores"`
	Features        []string `json:"features,omitempty"`
}

// vectorFeatures are the CPU extensions that matter for the DSP hot loops.
var vectorFeatures = []cpuid.FeatureID{cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD}

// DescribeSystem reads static host and CPU information.
func DescribeSystem(ctx context.Context) SystemInfo {
	info := SystemInfo{
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		CPUBrand:      cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
	}
	if info.LogicalCores == 0 {
		info.LogicalCores = runtime.NumCPU()
	}
	if info.CPUBrand == "" {
		info.CPUBrand = "unknown"
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.OS = h.OS
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		if h.KernelArch != "" {
			info.Arch = h.KernelArch
		}
	}

	for _, f := range vectorFeatures {
		if cpuid.CPU.Supports(f) {
			info.Features = append(info.Features, f.String())
		}
	}
	return info
}

// Fields renders the system description as structured log fields.
func (s SystemInfo) Fields() []logger.Field {
	return []logger.Field{
		logger.String("os", s.OS),
		logger.String("platform", s.Platform),
		logger.String("platform_version", s.PlatformVersion),
		logger.String("arch", s.Arch),
		logger.String("cpu", s.CPUBrand),
		logger.Int("physical_cores", s.PhysicalCores),
		logger.Int("logical_cores", s.LogicalCores),
		logger.Any("cpu_features", s.Features),
	}
}
