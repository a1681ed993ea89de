package memory

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"github.com/ticpu/memtester/config"
	"github.com/ticpu/memtester/utils"

	gmem "github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sys/unix"
)

const (
	// HugePageSize is assumed fixed at 2 MiB; the actual pool geometry
	// is never queried.
	HugePageSize = 2 * 1024 * 1024

	fallbackPageSize = 8192
)

var (
	// ErrInsufficientMemory means a shrink ladder ran out of room.
	ErrInsufficientMemory = errors.New("insufficient memory")
	// ErrMapping means a device or huge-page mapping failed for a
	// reason other than memory pressure. Not recoverable.
	ErrMapping = errors.New("mapping failed")
)

// ResolvePageSize returns the page size and the mask that rounds an
// address down to a page boundary. With huge pages the size is fixed;
// otherwise the platform is queried, with a fallback when the query
// reports nonsense.
func ResolvePageSize(useHugePages bool) (uintptr, uintptr) {
	if useHugePages {
		return HugePageSize, ^uintptr(HugePageSize - 1)
	}
	pageSize := unix.Getpagesize()
	if pageSize <= 0 {
		utils.LogMessage(fmt.Sprintf("page size query returned %d; using pagesize of %d", pageSize, fallbackPageSize), false)
		pageSize = fallbackPageSize
	}
	return uintptr(pageSize), ^(uintptr(pageSize) - 1)
}

// Allocator acquires memory regions using one of three strategies and
// tries to pin them in physical RAM. The primitives are fields so the
// ladders can be driven against simulated failures.
type Allocator struct {
	pageSize uintptr
	debug    bool

	grab          func(size uintptr) ([]byte, error)
	lock          func(buf []byte) error
	mapHuge       func(size uintptr) ([]byte, error)
	freeHugePages func() int64
}

// NewAllocator returns an allocator for the given page size.
func NewAllocator(pageSize uintptr, debug bool) *Allocator {
	return &Allocator{
		pageSize:      pageSize,
		debug:         debug,
		grab:          heapAlloc,
		lock:          unix.Mlock,
		mapHuge:       mapHugePages,
		freeHugePages: freeHugePages,
	}
}

// Acquire picks the acquisition strategy for cfg.
func (a *Allocator) Acquire(cfg *config.RunConfig) (*MemoryRegion, error) {
	switch {
	case cfg.UsePhys:
		return a.AllocatePhysical(cfg)
	case cfg.HugePages:
		return a.AllocateHuge(cfg)
	default:
		return a.AllocateStandard(cfg)
	}
}

// AllocateStandard requests heap memory, shrinking by one page after
// each failed attempt, then tries to pin the result when cfg.Lock is
// set. Pin failures never abort the run: a permission error retries
// the original size unlocked, lock-limit errors shrink and retry the
// whole cycle, anything else just gives up on pinning.
func (a *Allocator) AllocateStandard(cfg *config.RunConfig) (*MemoryRegion, error) {
	want := cfg.WantBytes
	doLock := cfg.Lock

	for {
		var buf []byte
		for want >= a.pageSize {
			b, err := a.grab(want)
			if err == nil {
				buf = b
				break
			}
			want -= a.pageSize
		}
		if buf == nil {
			return nil, fmt.Errorf("%w: request shrank below one page (%d bytes)", ErrInsufficientMemory, a.pageSize)
		}

		region := NewRegion(buf, a.pageSize)
		utils.LogMessage(fmt.Sprintf("got  %dMB (%d bytes)", want>>20, want), false)
		if !doLock {
			return region, nil
		}

		err := a.lock(region.Aligned)
		if err == nil {
			region.Locked = true
			utils.LogMessage("locked.", false)
			return region, nil
		}
		switch {
		case errors.Is(err, unix.EPERM):
			// A privilege problem, not memory pressure: retry the
			// original request, unlocked.
			utils.LogMessage("mlock: insufficient permission, trying again unlocked", false)
			doLock = false
			want = cfg.WantBytes
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.ENOMEM):
			utils.LogMessage("mlock: over lock limit, reducing...", true)
			want -= a.pageSize
		default:
			utils.LogMessage(fmt.Sprintf("mlock failed: %v, continuing unlocked", err), false)
			return region, nil
		}
	}
}

// AllocateHuge maps anonymous huge pages with the shrink ladder. On
// out-of-memory the next request is clamped to the free-hugepage count
// when that is known and smaller; otherwise the request drops by one
// page. Any other mmap error is a configuration problem, not pressure.
func (a *Allocator) AllocateHuge(cfg *config.RunConfig) (*MemoryRegion, error) {
	want := cfg.WantBytes
	if want%a.pageSize != 0 {
		want = (want/a.pageSize + 1) * a.pageSize
	}
	free := a.freeHugePages()

	for want >= a.pageSize {
		buf, err := a.mapHuge(want)
		if err == nil {
			utils.LogMessage(fmt.Sprintf("got  %dMB (%d bytes) of huge pages", want>>20, want), false)
			region := NewRegion(buf, a.pageSize)
			region.mapped = true
			region.Locked = true // hugetlb pages are never swapped
			return region, nil
		}
		if !errors.Is(err, unix.ENOMEM) {
			return nil, fmt.Errorf("%w: huge page mmap: %v", ErrMapping, err)
		}
		if free > 0 && want > uintptr(free)*a.pageSize {
			want = uintptr(free) * a.pageSize
		} else {
			want -= a.pageSize
		}
	}
	return nil, fmt.Errorf("%w: no huge pages available", ErrInsufficientMemory)
}

// AllocatePhysical maps cfg.WantBytes of the memory device at the
// configured physical base. A fixed physical window is exact size or
// nothing: there is no shrink ladder here. The device handle lives
// only for the duration of this call.
func (a *Allocator) AllocatePhysical(cfg *config.RunConfig) (*MemoryRegion, error) {
	flags := os.O_RDWR
	if cfg.SyncDevice {
		flags |= unix.O_SYNC
	}
	device, err := os.OpenFile(cfg.Device, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMapping, cfg.Device, err)
	}
	defer device.Close()

	buf, err := unix.Mmap(int(device.Fd()), int64(cfg.PhysAddr), int(cfg.WantBytes),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_LOCKED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s at 0x%x: %v", ErrMapping, cfg.Device, cfg.PhysAddr, err)
	}

	region := NewRegion(buf, a.pageSize)
	region.mapped = true
	if err := a.lock(region.Aligned); err != nil {
		utils.LogMessage("failed to mlock mmap'ed space, continuing unlocked", false)
	} else {
		region.Locked = true
	}
	return region, nil
}

// heapAlloc requests size bytes from the heap. Oversized requests make
// the runtime panic instead of returning an error, so the probe runs
// inside a recover guard.
func heapAlloc(size uintptr) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("allocation of %d bytes failed: %v", size, r)
		}
	}()
	buf = make([]byte, size)
	return buf, nil
}

func mapHugePages(size uintptr) ([]byte, error) {
	return unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
}

// freeHugePages reads the free 2 MiB hugepage count. Negative means
// the reading is unavailable and the ladder must fall back to one-page
// decrements only.
func freeHugePages() int64 {
	vm, err := gmem.VirtualMemory()
	if err != nil {
		return -1
	}
	return int64(vm.HugePagesFree)
}

// NewRegion wraps a granted block and advances its usable view to the
// next page boundary when the base is misaligned. The skipped bytes
// stay owned by Raw.
func NewRegion(buf []byte, pageSize uintptr) *MemoryRegion {
	r := &MemoryRegion{Raw: buf, PageSize: pageSize}
	base := uintptr(unsafe.Pointer(&buf[0]))
	var loss uintptr
	if base%pageSize != 0 {
		mask := ^(pageSize - 1)
		loss = (base&mask + pageSize) - base
	}
	r.Aligned = buf[loss:]
	return r
}

// UsableSize is the byte count left after alignment loss.
func (r *MemoryRegion) UsableSize() uintptr {
	return uintptr(len(r.Aligned))
}

// Split halves the aligned span into two adjacent word-indexed views
// of equal count. The half point is rounded down to a whole word so
// both views stay word aligned; a residual fraction is unused.
func (r *MemoryRegion) Split() BufferPair {
	half := (len(r.Aligned) / 2) &^ (WordSize - 1)
	count := half / WordSize
	if count == 0 {
		return BufferPair{}
	}
	a := unsafe.Slice((*uintptr)(unsafe.Pointer(&r.Aligned[0])), count)
	b := unsafe.Slice((*uintptr)(unsafe.Pointer(&r.Aligned[half])), count)
	return BufferPair{A: a, B: b, Count: count}
}

// Words exposes the whole aligned span as machine words.
func (r *MemoryRegion) Words() []uintptr {
	count := len(r.Aligned) / WordSize
	if count == 0 {
		return nil
	}
	return unsafe.Slice((*uintptr)(unsafe.Pointer(&r.Aligned[0])), count)
}

// Fill resets every granted byte, including alignment slack, to b.
func (r *MemoryRegion) Fill(b byte) {
	for i := range r.Raw {
		r.Raw[i] = b
	}
}

// Release unpins and unmaps the region. Heap-backed regions are simply
// dropped for the collector.
func (r *MemoryRegion) Release() {
	if r.Locked {
		unix.Munlock(r.Aligned)
		r.Locked = false
	}
	if r.mapped {
		unix.Munmap(r.Raw)
		r.mapped = false
	}
	r.Raw, r.Aligned = nil, nil
}
