package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	cfg "github.com/ticpu/memtester/config"
	"github.com/ticpu/memtester/memory"
	"github.com/ticpu/memtester/patterns"
	"github.com/ticpu/memtester/runner"
	"github.com/ticpu/memtester/systeminfo"
	"github.com/ticpu/memtester/utils"
)

const version = "4.5.1"

func usage() int {
	fmt.Fprintf(os.Stderr, "\nUsage: %s [-H] [-p physaddrbase [-d device] [-u]] [-n] [-mask bitmask] <mem>[B|K|M|G] [loops]\n",
		os.Args[0])
	return runner.StatusNonStarter
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		useHugePages    bool
		physAddr        string
		deviceName      string
		noSync          bool
		noLock          bool
		maskStr         string
		debugFlag       bool
		printSystemInfo bool
	)

	flag.BoolVar(&useHugePages, "H", false, "Allocate the test region with anonymous huge pages")
	flag.StringVar(&physAddr, "p", "", "Physical address base to test (hex, page aligned)")
	flag.StringVar(&deviceName, "d", "", "Memory device to mmap for -p (default /dev/mem)")
	flag.BoolVar(&noSync, "u", false, "Open the memory device without O_SYNC")
	flag.BoolVar(&noLock, "n", false, "Do not attempt to mlock the test region")
	flag.StringVar(&maskStr, "mask", "", "Selection bitmask of battery tests to run (0 = all)")
	flag.BoolVar(&debugFlag, "debug", false, "Enable debug mode")
	flag.BoolVar(&printSystemInfo, "print", false, "Print memory resources available for testing (alias: -list)")
	flag.BoolVar(&printSystemInfo, "list", false, "Alias for -print")
	flag.Parse()

	defaults, err := cfg.LoadConfig()
	if err != nil && debugFlag {
		fmt.Printf("Failed to load config.json, using default settings: %v\n", err)
	}
	utils.Debug = debugFlag || defaults.Debug

	utils.LogMessage(fmt.Sprintf("memtester version %s (%d-bit)", version, patterns.WordBits), false)

	if printSystemInfo {
		systeminfo.GetSystemInfo().Print()
		return 0
	}

	run := cfg.RunConfig{
		Loops:      defaults.Loops,
		HugePages:  useHugePages || defaults.HugePages,
		Lock:       defaults.Lock && !noLock,
		Device:     defaults.Device,
		SyncDevice: !noSync,
		Debug:      utils.Debug,
	}
	if run.Device == "" {
		run.Device = "/dev/mem"
	}

	pageSize, pageMask := memory.ResolvePageSize(run.HugePages)
	utils.LogMessage(fmt.Sprintf("pagesize is %d", pageSize), false)
	utils.LogMessage(fmt.Sprintf("pagesizemask is 0x%x", pageMask), true)

	if physAddr != "" {
		base, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(physAddr), "0x"), 16, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to parse physaddrbase arg; should be hex address (0x123...)")
			return usage()
		}
		if uintptr(base)&(pageSize-1) != 0 {
			fmt.Fprintln(os.Stderr, "bad physaddrbase arg; does not start on page boundary")
			return usage()
		}
		run.UsePhys = true
		run.PhysAddr = uintptr(base)
	}

	if deviceName != "" {
		if !run.UsePhys {
			fmt.Fprintln(os.Stderr, "for mem device, physaddrbase (-p) must be specified")
			return usage()
		}
		st, err := os.Stat(deviceName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "can not use %s as device: %v\n", deviceName, err)
			return usage()
		}
		if st.Mode()&os.ModeCharDevice == 0 {
			fmt.Fprintf(os.Stderr, "can not mmap non-char device %s\n", deviceName)
			return usage()
		}
		run.Device = deviceName
	}

	if maskStr == "" {
		maskStr = os.Getenv("MEMTESTER_TEST_MASK")
		if maskStr == "" {
			maskStr = defaults.Mask
		}
	}
	if maskStr != "" {
		mask, err := strconv.ParseUint(maskStr, 0, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error parsing test mask %s: %v\n", maskStr, err)
			return usage()
		}
		run.Mask = mask
		utils.LogMessage(fmt.Sprintf("using testmask 0x%x", mask), false)
	}

	args := flag.Args()
	sizeArg := defaults.Size
	if len(args) >= 1 {
		sizeArg = args[0]
	}
	if sizeArg == "" {
		fmt.Fprintln(os.Stderr, "need memory argument, in MB")
		return usage()
	}
	wantBytes, err := utils.ParseMemSize(sizeArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse memory argument: %v\n", err)
		return usage()
	}
	run.WantBytes = uintptr(wantBytes)
	if run.WantBytes < pageSize {
		fmt.Fprintf(os.Stderr, "bytes %d < pagesize %d -- memory argument too large?\n", run.WantBytes, pageSize)
		return runner.StatusNonStarter
	}

	if len(args) >= 2 {
		loops, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to parse number of loops")
			return usage()
		}
		run.Loops = uint(loops)
	}

	utils.LogMessage(fmt.Sprintf("want %dMB (%d bytes)", wantBytes>>20, wantBytes), false)

	allocator := memory.NewAllocator(pageSize, run.Debug)
	region, err := allocator.Acquire(&run)
	if err != nil {
		utils.LogMessage(fmt.Sprintf("memory acquisition failed: %v", err), false)
		return runner.StatusNonStarter
	}
	defer region.Release()

	if !region.Locked {
		utils.LogMessage("Continuing with unlocked memory; testing will be slower and less reliable.", false)
	}

	status := runner.New(&run, region).Run()
	utils.LogMessage("Done.", false)
	return status
}
