package boot

import (
	"bytes"
	"debug/elf"
	"strings"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mazefi/bootinfo"
	"mazefi/elfload/elfbuild"
	"mazefi/uefi"
	"mazefi/uefi/sim"
)

var (
	code = bytes.Repeat([]byte{0x90}, 0x1800)
	data = []byte("kernel data")
)

func testKernel() []byte {
	return elfbuild.Build(0x100000,
		elfbuild.Segment{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Vaddr: 0x100000, Data: code},
		elfbuild.Segment{Type: elf.PT_NOTE, Flags: elf.PF_R, Vaddr: 0x180000, Data: []byte("note")},
		elfbuild.Segment{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W, Vaddr: 0x200000, Memsz: 0x3000, Data: data},
	)
}

type bench struct {
	m       *sim.Machine
	loader  *Loader
	entries *memory.Handler
	fs      afero.Fs
	// kernel records what the kernel saw
	kernel struct {
		ran  bool
		fb   bootinfo.FrameBuffer
		code []byte
		data []byte
	}
}

func newBench(t *testing.T, kernel []byte, mutate ...func(*sim.Config)) *bench {
	t.Helper()

	b := &bench{fs: afero.NewMemMapFs(), entries: memory.New()}

	if kernel != nil {
		require.NoError(t, afero.WriteFile(b.fs, "/kernel.elf", kernel, 0o644))
	}

	cfg := sim.DefaultConfig()
	cfg.FS = b.fs
	cfg.Scribble = 0xaa

	for _, f := range mutate {
		f(&cfg)
	}

	m, err := sim.New(cfg)
	require.NoError(t, err)

	m.RegisterKernel(0x100000, func(mem uefi.Memory, fb bootinfo.FrameBuffer) {
		b.kernel.ran = true
		b.kernel.fb = fb

		// runs on the machine goroutine, where FailNow does not work
		if c, err := mem.Slice(0x100000, 0x2000); assert.NoError(t, err) {
			b.kernel.code = bytes.Clone(c)
		}

		if d, err := mem.Slice(0x200000, 0x3000); assert.NoError(t, err) {
			b.kernel.data = bytes.Clone(d)
		}
	})

	b.m = m
	b.loader = New(m, m, DefaultConfig(), WithHandler(b.entries))

	return b
}

func (b *bench) messages(level log.Level) (out []string) {
	for _, e := range b.entries.Entries {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}

	return
}

func TestBoot(t *testing.T) {
	b := newBench(t, testKernel(), func(c *sim.Config) {
		c.Display.Format = uefi.PixelRedGreenBlueReserved8BitPerColor
	})

	out := b.m.Run(b.loader.Boot)

	require.Nil(t, out.Panic)
	assert.Empty(t, out.Faults)
	assert.Empty(t, out.Violations)
	assert.True(t, out.Halted)
	assert.True(t, out.KernelReturned)
	assert.NoError(t, b.loader.Fault())

	fb := bootinfo.FrameBuffer{
		Base:                 0x80000000,
		PixelsPerScanLine:    1024,
		HorizontalResolution: 800,
		VerticalResolution:   600,
		PixelFormat:          0,
	}

	require.Len(t, out.Jumps, 1)
	assert.Equal(t, sim.Jump{Entry: 0x100000, FrameBuffer: fb}, out.Jumps[0])
	assert.True(t, b.kernel.ran)
	assert.Equal(t, fb, b.kernel.fb)

	// file bytes, then whatever the allocator left
	require.Len(t, b.kernel.code, 0x2000)
	require.Len(t, b.kernel.data, 0x3000)
	assert.Equal(t, code, b.kernel.code[:len(code)])
	assert.Equal(t, byte(0xaa), b.kernel.code[len(code)])
	assert.Equal(t, data, b.kernel.data[:len(data)])
	assert.Equal(t, byte(0xaa), b.kernel.data[0x2fff])

	assert.Equal(t, Terminated, b.loader.Terminator().State())
	assert.Equal(t, 1, b.loader.Terminator().Attempts())
	assert.Zero(t, b.m.PoolAllocations())
	assert.Zero(t, b.m.OpenFiles())

	dump, err := afero.ReadFile(b.fs, "/memmap.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(dump), "Index, Type, Type(name), PhysicalStart, NumberOfPages, Attribute\n"))

	console := b.m.Console()
	assert.Contains(t, console, "INFO  graphics 800x600")
	assert.Contains(t, console, "INFO  read \\kernel.elf")
	assert.Contains(t, console, "INFO  kernel loaded entry=0x100000 segments=2\n")
	assert.Contains(t, console, "exiting boot services")
	assert.NotContains(t, console, "DEBUG")

	assert.Equal(t, b.messages(log.InfoLevel)[len(b.messages(log.InfoLevel))-1], "exiting boot services")
	assert.Empty(t, b.messages(log.WarnLevel))
}

func TestBootPrepareSegments(t *testing.T) {
	b := newBench(t, testKernel())

	h, err := b.loader.Prepare()
	require.NoError(t, err)

	assert.Equal(t, uint64(0x100000), h.Image.Entry)
	require.Len(t, h.Image.Segments, 2)
	assert.Equal(t, uefi.LoaderCode, h.Image.Segments[0].MemoryType)
	assert.Equal(t, uint64(2), h.Image.Segments[0].Pages)
	assert.Equal(t, uefi.LoaderData, h.Image.Segments[1].MemoryType)
	assert.Equal(t, uint64(3), h.Image.Segments[1].Pages)
	assert.Equal(t, uint64(len(testKernel())), h.KernelSize)
	assert.Equal(t, uefi.PixelBlueGreenRedReserved8BitPerColor, h.Mode.PixelFormat)

	var types []uefi.MemoryType

	for _, d := range b.m.Descriptors() {
		if d.PhysicalStart == 0x100000 || d.PhysicalStart == 0x200000 {
			types = append(types, d.Type)
		}
	}

	assert.Equal(t, []uefi.MemoryType{uefi.LoaderCode, uefi.LoaderData}, types)
	assert.False(t, b.m.Exited())
}

func TestBootStaleKeyRetried(t *testing.T) {
	b := newBench(t, testKernel(), func(c *sim.Config) { c.BackgroundAllocations = 1 })

	out := b.m.Run(b.loader.Boot)

	assert.Empty(t, out.Violations)
	assert.Empty(t, out.Faults)
	require.Len(t, out.Jumps, 1)

	term := b.loader.Terminator()
	assert.Equal(t, Terminated, term.State())
	assert.Equal(t, 2, term.Attempts())
	assert.ErrorIs(t, term.Stale(), uefi.ErrTerminationStale)
	assert.Equal(t, b.m.Key(), term.Snapshot().Key)
}

func TestBootTerminationFails(t *testing.T) {
	b := newBench(t, testKernel(), func(c *sim.Config) { c.BackgroundAllocations = 2 })

	out := b.m.Run(b.loader.Boot)

	assert.True(t, out.Halted)
	assert.Empty(t, out.Jumps)
	assert.Empty(t, out.Violations)
	assert.ErrorIs(t, b.loader.Fault(), uefi.ErrTerminationFailed)
	assert.Equal(t, 2, b.m.ExitAttempts())

	// the console is gone, other handlers still see the failure
	assert.NotContains(t, b.m.Console(), "boot failed")
	assert.Equal(t, []string{"boot failed"}, b.messages(log.ErrorLevel))
}

func TestBootFailures(t *testing.T) {
	tests := []struct {
		name   string
		kernel []byte
		mutate func(*sim.Config)
		setup  func(*sim.Machine)
		kind   error
	}{
		{
			name: "missing kernel",
			kind: uefi.ErrFileNotFound,
		},
		{
			name:   "empty kernel",
			kernel: []byte{},
			kind:   uefi.ErrMalformedImage,
		},
		{
			name:   "truncated header",
			kernel: []byte("\x7fELF\x02\x01"),
			kind:   uefi.ErrMalformedImage,
		},
		{
			name: "segment in firmware memory",
			kernel: elfbuild.Build(0x4000000,
				elfbuild.Segment{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Vaddr: 0x4000000, Data: code}),
			kind: uefi.ErrAllocationFailed,
		},
		{
			name:   "no graphics",
			kernel: testKernel(),
			mutate: func(c *sim.Config) { c.Display = sim.Display{} },
			kind:   uefi.ErrProtocolUnavailable,
		},
		{
			name:   "no file system",
			kernel: testKernel(),
			setup: func(m *sim.Machine) {
				m.Uninstall(sim.DeviceHandle, uefi.SimpleFileSystemProtocolGUID)
			},
			kind: uefi.ErrProtocolUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mutate []func(*sim.Config)

			if tt.mutate != nil {
				mutate = append(mutate, tt.mutate)
			}

			b := newBench(t, tt.kernel, mutate...)

			if tt.setup != nil {
				tt.setup(b.m)
			}

			out := b.m.Run(b.loader.Boot)

			assert.True(t, out.Halted)
			assert.Empty(t, out.Jumps)
			assert.False(t, b.m.Exited())
			assert.ErrorIs(t, b.loader.Fault(), tt.kind)
			assert.Contains(t, b.m.Console(), "ERROR boot failed")
			assert.Zero(t, b.m.OpenFiles())
		})
	}
}

func TestBootReadOnlyVolume(t *testing.T) {
	b := newBench(t, testKernel(), func(c *sim.Config) { c.FS = afero.NewReadOnlyFs(c.FS) })

	out := b.m.Run(b.loader.Boot)

	require.Len(t, out.Jumps, 1)
	assert.Empty(t, out.Violations)

	var warned bool

	for _, e := range b.entries.Entries {
		if e.Level == log.WarnLevel && e.Message == "memory map dump skipped" {
			warned = true
			assert.Contains(t, e.Fields.Get("error"), "access denied")
		}
	}

	assert.True(t, warned)
}

func TestBootReplacesOldDump(t *testing.T) {
	b := newBench(t, testKernel())

	old := strings.Repeat("OLD LINE FROM PREVIOUS BOOT\n", 200)
	require.NoError(t, afero.WriteFile(b.fs, "/memmap.txt", []byte(old), 0o644))

	out := b.m.Run(b.loader.Boot)
	require.Len(t, out.Jumps, 1)

	dump, err := afero.ReadFile(b.fs, "/memmap.txt")
	require.NoError(t, err)
	assert.NotContains(t, string(dump), "OLD LINE")
	assert.Less(t, len(dump), len(old))
	assert.True(t, strings.HasPrefix(string(dump), "Index, Type, Type(name), PhysicalStart, NumberOfPages, Attribute\n"))
	assert.True(t, strings.HasSuffix(string(dump), "\n"))
	assert.Empty(t, b.messages(log.WarnLevel))
}

func TestBootNoDump(t *testing.T) {
	b := newBench(t, testKernel())

	cfg := DefaultConfig()
	cfg.MemoryMapPath = ""
	cfg.Level = log.DebugLevel

	loader := New(b.m, b.m, cfg)
	out := b.m.Run(loader.Boot)

	require.Len(t, out.Jumps, 1)

	ok, err := afero.Exists(b.fs, "/memmap.txt")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, b.m.Console(), "DEBUG segment 0 address=0x100000 pages=2 type=EfiLoaderCode")
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.MapBufferSize = 0
	assert.NoError(t, cfg.Validate())

	cfg.MapBufferSize = 16
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.KernelPath = ""
	assert.Error(t, cfg.Validate())
}
