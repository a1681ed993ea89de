package systeminfo

import (
	"fmt"

	gcpu "github.com/shirou/gopsutil/v4/cpu"
	gmem "github.com/shirou/gopsutil/v4/mem"

	"github.com/ticpu/memtester/utils"
)

// SystemInfo holds information about the memory resources available
// for testing.
type SystemInfo struct {
	CPUInfo    string
	MemoryInfo string
	HugePages  string
	Suggestion string
}

// GetSystemInfo retrieves system resource information for memory testing.
func GetSystemInfo() SystemInfo {
	var info SystemInfo

	// CPU information
	cpuInfo, err := gcpu.Info()
	if err != nil || len(cpuInfo) == 0 {
		info.CPUInfo = "CPU Info: Unable to retrieve CPU information"
	} else {
		totalCores, _ := gcpu.Counts(true)
		info.CPUInfo = fmt.Sprintf("CPU Info: Model: %s, Cores: %d, Frequency: %.2f MHz",
			cpuInfo[0].ModelName, totalCores, cpuInfo[0].Mhz)
	}

	// Memory information
	vm, err := gmem.VirtualMemory()
	if err != nil {
		info.MemoryInfo = "Memory Info: Unable to retrieve memory information"
		info.HugePages = "Huge Pages: unknown"
		info.Suggestion = "Testable Memory: unknown"
		return info
	}

	info.MemoryInfo = fmt.Sprintf("Memory Info: Total: %s, Available: %s, Free: %s",
		utils.FormatSize(int64(vm.Total)),
		utils.FormatSize(int64(vm.Available)),
		utils.FormatSize(int64(vm.Free)))
	info.HugePages = fmt.Sprintf("Huge Pages: Total: %d, Free: %d, Size: %s",
		vm.HugePagesTotal, vm.HugePagesFree, utils.FormatSize(int64(vm.HugePageSize)))

	// Leave a margin so the run does not push the system into swap,
	// which would defeat an unlocked test anyway.
	testable := vm.Available / 10 * 9
	info.Suggestion = fmt.Sprintf("Testable Memory: up to %s without exhausting available RAM",
		utils.FormatSize(int64(testable)))

	return info
}

// Print writes the report to the console and log.
func (info SystemInfo) Print() {
	utils.LogMessage(info.CPUInfo, false)
	utils.LogMessage(info.MemoryInfo, false)
	utils.LogMessage(info.HugePages, false)
	utils.LogMessage(info.Suggestion, false)
}
