// config/types.go
package config

// Config holds optional defaults loaded from config.json
type Config struct {
	Debug     bool   `json:"debug"`
	Size      string `json:"Size"`
	Loops     uint   `json:"Loops"`
	HugePages bool   `json:"HugePages"`
	Lock      bool   `json:"Lock"`
	Device    string `json:"Device"`
	Mask      string `json:"Mask"`
}

// RunConfig is the run configuration, fixed at startup and shared
// read-only with the allocator and the test runner.
type RunConfig struct {
	WantBytes  uintptr // requested region size in bytes
	Loops      uint    // 0 = run until interrupted
	Mask       uint64  // selection bitmask over the battery, 0 = all
	HugePages  bool
	Lock       bool    // try to pin the region in physical RAM
	UsePhys    bool    // map a fixed physical address through a device
	PhysAddr   uintptr // physical base, page aligned
	Device     string  // memory device for UsePhys
	SyncDevice bool    // open the device with O_SYNC
	Debug      bool
}
