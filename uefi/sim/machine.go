// Package sim is a simulated UEFI machine: boot services over an arena of
// physical memory, a protocol database with a file system, a text console
// and a framebuffer, and a CPU that runs Go kernels registered at entry
// addresses.
//
// The machine is driven by one goroutine at a time. Run executes a boot on
// its own goroutine so that Halt can end it.
package sim

import (
	"fmt"
	"runtime"

	"github.com/spf13/afero"

	"mazefi/bootinfo"
	"mazefi/uefi"
)

// Region is a range of the physical memory map.
type Region struct {
	Type      uefi.MemoryType
	Start     uint64
	Pages     uint64
	Attribute uint64
}

// Display describes the graphics output mode.
type Display struct {
	Width  uint32
	Height uint32
	// Stride in pixels, defaults to Width.
	Stride uint32
	Format uefi.PixelFormat
	Base   uint64
}

// Config describes the machine.
type Config struct {
	// Regions is the initial memory map, DefaultRegions when empty. The
	// framebuffer region is added from Display.
	Regions []Region
	// DescriptorSize is the memory map stride reported by GetMemoryMap.
	DescriptorSize uint64
	// Scribble fills newly allocated memory.
	Scribble byte
	// BackgroundAllocations makes the firmware allocate a page before
	// checking the map key on the first N ExitBootServices calls.
	BackgroundAllocations int
	// FS backs the boot volume, an empty afero.MemMapFs when nil.
	FS afero.Fs
	// Display is the graphics mode. Graphics output is not installed when
	// Width or Height is zero.
	Display Display
	// IgnoreExitKey accepts any map key on ExitBootServices.
	IgnoreExitKey bool
}

const ramAttributes = uefi.MemoryUC | uefi.MemoryWC | uefi.MemoryWT | uefi.MemoryWB

// DefaultRegions is a small PC: 64 MiB of RAM above 1 MiB followed by
// firmware owned memory.
func DefaultRegions() []Region {
	return []Region{
		{uefi.ReservedMemoryType, 0x0, 1, ramAttributes},
		{uefi.ConventionalMemory, 0x1000, 0x9f, ramAttributes},
		{uefi.ConventionalMemory, 0x100000, 0x3f00, ramAttributes},
		{uefi.BootServicesData, 0x4000000, 0x800, ramAttributes},
		{uefi.BootServicesCode, 0x4800000, 0x100, ramAttributes},
		{uefi.ACPIReclaimMemory, 0x4900000, 0x40, ramAttributes},
		{uefi.ACPIMemoryNVS, 0x4940000, 0x20, ramAttributes},
		{uefi.RuntimeServicesCode, 0x4960000, 0x80, ramAttributes | uefi.MemoryRuntime},
		{uefi.RuntimeServicesData, 0x49e0000, 0x80, ramAttributes | uefi.MemoryRuntime | uefi.MemoryXP},
	}
}

// DefaultDisplay is an 800x600 BGR mode whose scan lines are 1024 pixels.
func DefaultDisplay() Display {
	return Display{
		Width:  800,
		Height: 600,
		Stride: 1024,
		Format: uefi.PixelBlueGreenRedReserved8BitPerColor,
		Base:   0x80000000,
	}
}

// DefaultConfig returns a machine with DefaultRegions, DefaultDisplay, a
// descriptor stride of 48 bytes and an empty file system.
func DefaultConfig() Config {
	return Config{
		Regions:        DefaultRegions(),
		DescriptorSize: 48,
		Display:        DefaultDisplay(),
	}
}

// Handles of the protocol database.
const (
	ImageHandle   uefi.Handle = 0x1000
	DeviceHandle  uefi.Handle = 0x2000
	DisplayHandle uefi.Handle = 0x3000
	ConsoleHandle uefi.Handle = 0x4000
)

// Jump is one control transfer.
type Jump struct {
	Entry       uint64
	FrameBuffer bootinfo.FrameBuffer
}

// Kernel is a Go function standing in for the code at an entry address.
type Kernel func(mem uefi.Memory, fb bootinfo.FrameBuffer)

// Machine implements uefi.System, uefi.BootServices, uefi.Memory and the
// loader CPU.
type Machine struct {
	cfg Config

	descriptors []uefi.MemoryDescriptor
	backing     map[uint64][]byte
	pool        map[uint64]uint64
	key         uint64

	protocols map[uefi.Handle]map[uefi.GUID]any
	console   *console
	display   *display
	volume    *volume

	exited       bool
	rejected     bool
	exitAttempts int
	background   int

	kernels map[uint64]Kernel

	calls      []string
	violations []string
	faults     []string
	jumps      []Jump
	halts      int
	returned   bool
}

// New builds a machine, it fails on overlapping regions.
func New(cfg Config) (*Machine, error) {
	if len(cfg.Regions) == 0 {
		cfg.Regions = DefaultRegions()
	}

	if cfg.DescriptorSize == 0 {
		cfg.DescriptorSize = 48
	}

	if cfg.DescriptorSize < uefi.MemoryDescriptorSize {
		return nil, fmt.Errorf("descriptor size %d below %d", cfg.DescriptorSize, uefi.MemoryDescriptorSize)
	}

	if cfg.FS == nil {
		cfg.FS = afero.NewMemMapFs()
	}

	m := &Machine{
		cfg:        cfg,
		backing:    make(map[uint64][]byte),
		pool:       make(map[uint64]uint64),
		protocols:  make(map[uefi.Handle]map[uefi.GUID]any),
		kernels:    make(map[uint64]Kernel),
		background: cfg.BackgroundAllocations,
		key:        1,
	}

	for _, r := range cfg.Regions {
		m.descriptors = append(m.descriptors, uefi.MemoryDescriptor{
			Type:          r.Type,
			PhysicalStart: r.Start,
			NumberOfPages: r.Pages,
			Attribute:     r.Attribute,
		})
	}

	m.console = &console{m: m}
	m.volume = &volume{m: m, fs: cfg.FS}

	m.install(ImageHandle, uefi.LoadedImageProtocolGUID, &loadedImage{device: DeviceHandle})
	m.install(DeviceHandle, uefi.SimpleFileSystemProtocolGUID, m.volume)
	m.install(ConsoleHandle, uefi.SimpleTextOutputProtocolGUID, m.console)

	if d := cfg.Display; d.Width > 0 && d.Height > 0 {
		if err := m.addDisplay(d); err != nil {
			return nil, err
		}
	}

	if err := m.sortDescriptors(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Machine) install(h uefi.Handle, g uefi.GUID, p any) {
	if m.protocols[h] == nil {
		m.protocols[h] = make(map[uefi.GUID]any)
	}

	m.protocols[h][g] = p
}

// Uninstall removes a protocol from a handle.
func (m *Machine) Uninstall(h uefi.Handle, g uefi.GUID) {
	delete(m.protocols[h], g)
}

func (m *Machine) ImageHandle() uefi.Handle          { return ImageHandle }
func (m *Machine) BootServices() uefi.BootServices   { return m }
func (m *Machine) ConsoleOut() uefi.SimpleTextOutput { return m.console }
func (m *Machine) Memory() uefi.Memory               { return m }

// FS returns the boot volume file system.
func (m *Machine) FS() afero.Fs {
	return m.cfg.FS
}

// Key returns the current memory map key.
func (m *Machine) Key() uint64 {
	return m.key
}

// Exited reports whether ExitBootServices succeeded.
func (m *Machine) Exited() bool {
	return m.exited
}

// ExitAttempts returns the number of ExitBootServices calls.
func (m *Machine) ExitAttempts() int {
	return m.exitAttempts
}

// Calls returns the boot service calls made, in order.
func (m *Machine) Calls() []string {
	return m.calls
}

// Violations returns the calls the firmware would not have allowed: any
// service but GetMemoryMap and ExitBootServices after a rejected exit,
// anything after a successful one.
func (m *Machine) Violations() []string {
	return m.violations
}

// Console returns the text written to the console.
func (m *Machine) Console() string {
	return m.console.String()
}

// OpenFiles returns the number of file handles not closed yet.
func (m *Machine) OpenFiles() int {
	return m.volume.open
}

// RegisterKernel makes Jump to entry run k.
func (m *Machine) RegisterKernel(entry uint64, k Kernel) {
	m.kernels[entry] = k
}

// enter records a boot service call and checks it is allowed.
func (m *Machine) enter(name string) error {
	m.calls = append(m.calls, name)

	switch {
	case m.exited:
		m.violations = append(m.violations, name+" after ExitBootServices")
		return uefi.Unsupported
	case m.rejected && name != "GetMemoryMap" && name != "ExitBootServices":
		m.violations = append(m.violations, name+" between rejected ExitBootServices and retry")
	}

	return nil
}

// protocolCall checks protocol use, which does not go through the call log.
func (m *Machine) protocolCall(name string) error {
	if m.exited {
		m.violations = append(m.violations, name+" after ExitBootServices")
		return uefi.Unsupported
	}

	if m.rejected {
		m.violations = append(m.violations, name+" between rejected ExitBootServices and retry")
	}

	return nil
}

func (m *Machine) fault(format string, args ...any) {
	m.faults = append(m.faults, fmt.Sprintf(format, args...))
}

// Jump implements the loader CPU. The entry must lie in loaded code and
// boot services must have been exited.
func (m *Machine) Jump(entry uint64, fb bootinfo.FrameBuffer) {
	m.jumps = append(m.jumps, Jump{Entry: entry, FrameBuffer: fb})

	if !m.exited {
		m.fault("jump to %#x with boot services active", entry)
	}

	if d, ok := m.descriptorAt(entry); !ok || d.Type != uefi.LoaderCode {
		m.fault("jump to %#x outside loaded code", entry)
		return
	}

	k, ok := m.kernels[entry]

	if !ok {
		m.fault("no kernel registered at %#x", entry)
		return
	}

	k(m, fb)
	m.returned = true
}

// Halt implements the loader CPU, it ends the goroutine started by Run.
func (m *Machine) Halt() {
	m.halts++
	runtime.Goexit()
}

// Outcome is the result of Run.
type Outcome struct {
	// Halted is true when the run ended in Halt.
	Halted bool
	Jumps  []Jump
	// KernelReturned is true when a kernel returned to the loader.
	KernelReturned bool
	Faults         []string
	Violations     []string
	Panic          any
}

// Run executes fn, typically a boot, on a new goroutine and waits for it
// to return or halt.
func (m *Machine) Run(fn func()) Outcome {
	done := make(chan any)
	halts := m.halts

	go func() {
		var p any

		defer func() { done <- p }()
		defer func() { p = recover() }()

		fn()
	}()

	p := <-done

	return Outcome{
		Halted:         m.halts > halts,
		Jumps:          m.jumps,
		KernelReturned: m.returned,
		Faults:         m.faults,
		Violations:     m.violations,
		Panic:          p,
	}
}
