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
	"net"
	"os"
	"sort"
	"strings"
)

var sysBlockDir = "/sys/block"

// DiscoverDisks enumerates physical block devices from /sys/block,
// excluding loopback, ram, and device-mapper entries. Results are
// sorted for stable probe declaration order.
func DiscoverDisks() []string {
	entries, err := os.ReadDir(sysBlockDir)
	if err != nil {
		return nil
	}

	var disks []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "loop") ||
			strings.HasPrefix(name, "ram") ||
			strings.HasPrefix(name, "dm-") ||
			strings.HasPrefix(name, "zram") ||
			strings.HasPrefix(name, "sr") {
			continue
		}
		disks = append(disks, name)
	}
	sort.Strings(disks)
	return disks
}

// DiscoverInterfaces enumerates non-loopback network interfaces,
// sorted for stable probe declaration order. A machine with only
// loopback yields an empty slice, which the catalog turns into a
// skipped network stage.
func DiscoverInterfaces() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var names []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		names = append(names, iface.Name)
	}
	sort.Strings(names)
	return names
}
