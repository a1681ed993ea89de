package runner

import (
	"fmt"

	"github.com/ticpu/memtester/config"
	"github.com/ticpu/memtester/memory"
	"github.com/ticpu/memtester/patterns"
	"github.com/ticpu/memtester/utils"
)

// Process status bits. They combine.
const (
	StatusNonStarter   = 0x01
	StatusAddressLines = 0x02
	StatusOtherTest    = 0x04
)

// Runner drives repeated passes of the address test and the pattern
// battery over one acquired region. Failures are sticky across the
// whole run; the run always continues to completion so the full defect
// picture is captured.
type Runner struct {
	cfg     *config.RunConfig
	region  *memory.MemoryRegion
	battery []patterns.Test

	addressFailed bool
	otherFailed   bool
}

// New returns a runner over region with the standard battery.
func New(cfg *config.RunConfig, region *memory.MemoryRegion) *Runner {
	return &Runner{
		cfg:     cfg,
		region:  region,
		battery: patterns.Battery(),
	}
}

// Run executes the configured number of loops, or runs until the
// process is interrupted when cfg.Loops is 0, and returns the
// aggregate status bits.
func (r *Runner) Run() int {
	pair := r.region.Split()
	for loop := uint(1); r.cfg.Loops == 0 || loop <= r.cfg.Loops; loop++ {
		if r.cfg.Loops != 0 {
			utils.LogMessage(fmt.Sprintf("Loop %d/%d:", loop, r.cfg.Loops), false)
		} else {
			utils.LogMessage(fmt.Sprintf("Loop %d:", loop), false)
		}
		r.runLoop(pair)
	}
	return r.Status()
}

func (r *Runner) runLoop(pair memory.BufferPair) {
	out := patterns.StuckAddress(r.region.Words())
	r.report("Stuck Address", out)
	if !out.Passed() {
		r.addressFailed = true
	}

	for i, test := range r.battery {
		if r.cfg.Mask != 0 && r.cfg.Mask&(1<<uint(i)) == 0 {
			continue
		}
		out := test.Run(pair.A, pair.B)
		r.report(test.Name(), out)
		if !out.Passed() {
			r.otherFailed = true
		}
		// Clear so one pattern cannot leak into the next test.
		r.region.Fill(0xFF)
	}
}

func (r *Runner) report(name string, out patterns.Outcome) {
	if out.Passed() {
		utils.LogMessage(fmt.Sprintf("  %-20s: ok", name), false)
		return
	}
	utils.LogMessage(fmt.Sprintf("  %-20s: FAILURE: 0x%08x != 0x%08x at offset 0x%08x (%d mismatched words)",
		name, out.Expected, out.Actual, out.FirstOffset, out.Errors), false)
}

// Status returns the sticky failure bits accumulated so far.
func (r *Runner) Status() int {
	status := 0
	if r.addressFailed {
		status |= StatusAddressLines
	}
	if r.otherFailed {
		status |= StatusOtherTest
	}
	return status
}
