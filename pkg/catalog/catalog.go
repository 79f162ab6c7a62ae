// Copyright (c) 2025, PXELab Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/pxelab/bootprobe/pkg/probe"
)

// Stage names in declaration order. The report's stage_status map only
// ever grows: new stages add entries, existing names are never removed.
const (
	StageHardware = "hardware"
	StageCPU      = "cpu"
	StageMemory   = "memory"
	StageDisk     = "disk"
	StageNetwork  = "network"
	StagePower    = "power"
)

// Config controls probe battery construction. Devices and interfaces
// are discovered once; the resulting catalog is immutable for the run.
type Config struct {
	// Disks are block device names (e.g. "sda", "nvme0n1").
	Disks []string
	// Interfaces are non-loopback network interface names. Empty means
	// the network stage is declared with no probes and the report marks
	// it skipped.
	Interfaces []string
	// StressDuration bounds the CPU/memory stress probes' own workload
	// timers. Probe deadlines are set slightly above it.
	StressDuration time.Duration
	// FioSize is the working set for disk benchmark probes.
	FioSize string
	// IperfPort is the loopback throughput test port.
	IperfPort int
}

// DefaultConfig returns a Config with discovered devices and the stock
// workload sizes.
func DefaultConfig() Config {
	return Config{
		Disks:          DiscoverDisks(),
		Interfaces:     DiscoverInterfaces(),
		StressDuration: 30 * time.Second,
		FioSize:        "256M",
		IperfPort:      5201,
	}
}

// Stages declares the full diagnostic battery in fixed order. The
// declaration order is the execution order and the report order.
func Stages(cfg Config) []probe.Stage {
	if cfg.StressDuration <= 0 {
		cfg.StressDuration = 30 * time.Second
	}
	if cfg.FioSize == "" {
		cfg.FioSize = "256M"
	}
	if cfg.IperfPort == 0 {
		cfg.IperfPort = 5201
	}
	stressArg := fmt.Sprintf("%ds", int(cfg.StressDuration.Seconds()))
	stressDeadline := cfg.StressDuration + 30*time.Second

	return []probe.Stage{
		{
			Name: StageHardware,
			Dir:  "hardware",
			Probes: []probe.Probe{
				{Name: "dmidecode", Tool: "dmidecode", OutputFile: "dmidecode.txt"},
				{Name: "lshw", Tool: "lshw", Args: []string{"-short"}, OutputFile: "lshw.txt"},
				{Name: "lscpu", Tool: "lscpu", OutputFile: "lscpu.txt"},
				{Name: "lsblk", Tool: "lsblk", Args: []string{"-O"}, OutputFile: "lsblk.txt"},
				{Name: "lspci", Tool: "lspci", Args: []string{"-vv"}, OutputFile: "lspci.txt"},
				{Name: "free", Tool: "free", Args: []string{"-m"}, OutputFile: "free.txt"},
			},
		},
		{
			Name: StageCPU,
			Dir:  filepath.Join("performance", "cpu"),
			Probes: []probe.Probe{
				{
					Name:       "sysbench_cpu",
					Tool:       "sysbench",
					Args:       []string{"cpu", "--cpu-max-prime=20000", "--time=" + fmt.Sprint(int(cfg.StressDuration.Seconds())), "run"},
					Timeout:    stressDeadline,
					OutputFile: "sysbench_cpu.txt",
				},
				{
					Name:       "stress_ng",
					Tool:       "stress-ng",
					Args:       []string{"--cpu", fmt.Sprint(runtime.NumCPU()), "--timeout", stressArg, "--metrics-brief"},
					Timeout:    stressDeadline,
					OutputFile: "stress_ng.txt",
				},
			},
		},
		{
			Name: StageMemory,
			Dir:  filepath.Join("performance", "memory"),
			Probes: []probe.Probe{
				{
					Name:       "memtester",
					Tool:       "memtester",
					Args:       []string{"64M", "1"},
					Timeout:    5 * time.Minute,
					OutputFile: "memtester.txt",
				},
				{
					Name:       "stress_ng_memory",
					Tool:       "stress-ng",
					Args:       []string{"--vm", "2", "--vm-bytes", "256M", "--timeout", stressArg, "--metrics-brief"},
					Timeout:    stressDeadline,
					OutputFile: "stress_ng_memory.txt",
				},
			},
		},
		{
			Name:   StageDisk,
			Dir:    filepath.Join("performance", "disk"),
			Probes: diskProbes(cfg),
		},
		{
			Name:   StageNetwork,
			Dir:    filepath.Join("performance", "network"),
			Probes: networkProbes(cfg),
		},
		{
			Name: StagePower,
			Dir:  filepath.Join("performance", "power"),
			Probes: []probe.Probe{
				{Name: "sensors", Tool: "sensors", OutputFile: "sensors.txt"},
				{Name: "ipmitool_sdr", Tool: "ipmitool", Args: []string{"sdr", "list"}, OutputFile: "ipmitool_sdr.txt"},
			},
		},
	}
}

// diskProbes declares SMART, fio, and hdparm probes per discovered disk.
func diskProbes(cfg Config) []probe.Probe {
	var probes []probe.Probe
	for _, disk := range cfg.Disks {
		dev := "/dev/" + disk
		probes = append(probes,
			probe.Probe{
				Name:       "smart_" + disk,
				Tool:       "smartctl",
				Args:       []string{"-a", dev},
				OutputFile: filepath.Join(disk, "smart.txt"),
			},
			probe.Probe{
				Name: "fio_randread_" + disk,
				Tool: "fio",
				Args: []string{
					"--name=randread", "--filename=" + dev, "--rw=randread",
					"--bs=4k", "--size=" + cfg.FioSize, "--runtime=30",
					"--readonly", "--direct=1", "--group_reporting",
				},
				Timeout:    3 * time.Minute,
				OutputFile: filepath.Join(disk, "fio_randread.txt"),
			},
			probe.Probe{
				Name:       "hdparm_" + disk,
				Tool:       "hdparm",
				Args:       []string{"-tT", dev},
				Timeout:    90 * time.Second,
				OutputFile: filepath.Join(disk, "hdparm.txt"),
			},
		)
	}
	return probes
}

// networkProbes declares interface inspection plus a loopback
// throughput test. With zero non-loopback interfaces the stage has no
// probes and the report records it skipped rather than failing.
func networkProbes(cfg Config) []probe.Probe {
	if len(cfg.Interfaces) == 0 {
		return nil
	}

	probes := []probe.Probe{
		{Name: "ip_addr", Tool: "ip", Args: []string{"addr", "show"}, OutputFile: "ip_addr.txt"},
		{
			Name: "iperf3_localhost",
			Tool: "iperf3",
			Args: []string{"-c", "127.0.0.1", "-p", fmt.Sprint(cfg.IperfPort), "-t", "10"},
			Helper: &probe.Helper{
				Tool:   "iperf3",
				Args:   []string{"-s", "-p", fmt.Sprint(cfg.IperfPort), "-1"},
				WarmUp: time.Second,
			},
			Timeout:    45 * time.Second,
			OutputFile: "iperf3_localhost.txt",
		},
	}
	for _, iface := range cfg.Interfaces {
		probes = append(probes, probe.Probe{
			Name:       "ethtool_" + iface,
			Tool:       "ethtool",
			Args:       []string{iface},
			OutputFile: filepath.Join(iface, "ethtool.txt"),
		})
	}
	return probes
}
