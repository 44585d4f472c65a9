package cmd

import (
	"bytes"
	"debug/elf"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/fogleman/gg"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mazefi/elfload/elfbuild"
	"mazefi/kernel"
	"mazefi/uefi"
)

// execute runs the root command with flags reset to their defaults and
// returns stdout and the log entries.
func execute(t *testing.T, args ...string) (string, *memory.Handler, error) {
	t.Helper()

	// keep a config file in the real home out of the run
	t.Setenv("HOME", t.TempDir())

	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}

	reset(rootCmd.PersistentFlags())

	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}

	entries := memory.New()
	log.SetHandler(entries)
	log.SetLevel(log.InfoLevel)

	var out bytes.Buffer

	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()

	return out.String(), entries, err
}

func writeKernel(t *testing.T, dir string) string {
	t.Helper()

	file := elfbuild.Build(0x100000,
		elfbuild.Segment{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Vaddr: 0x100000, Data: bytes.Repeat([]byte{0x90}, 0x1800)},
		elfbuild.Segment{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_W, Vaddr: 0x200000, Memsz: 0x3000, Data: []byte("data")},
	)

	path := filepath.Join(dir, "kernel.elf")
	require.NoError(t, os.WriteFile(path, file, 0o644))

	return path
}

func entry(entries *memory.Handler, msg string) *log.Entry {
	for _, e := range entries.Entries {
		if e.Message == msg {
			return e
		}
	}

	return nil
}

func TestBootCommand(t *testing.T) {
	esp := t.TempDir()
	writeKernel(t, esp)
	png := filepath.Join(t.TempDir(), "fb.png")

	_, entries, err := execute(t, "boot", "--esp", esp, "--png", png, "--width", "320", "--height", "200", "--stride", "384")
	require.NoError(t, err)

	e := entry(entries, "kernel entered")
	require.NotNil(t, e)
	assert.Equal(t, "0x100000", e.Fields.Get("entry"))
	assert.Equal(t, 1, e.Fields.Get("exits"))
	assert.Equal(t, true, e.Fields.Get("returned"))

	im, err := gg.LoadPNG(png)
	require.NoError(t, err)
	assert.Equal(t, 320, im.Bounds().Dx())
	assert.Equal(t, 200, im.Bounds().Dy())
	assert.Equal(t, kernel.DefaultScheme.Background, color.RGBAModel.Convert(im.At(319, 199)))

	dump, err := os.ReadFile(filepath.Join(esp, "memmap.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(dump), "EfiConventionalMemory")
}

func TestBootCommandConsole(t *testing.T) {
	esp := t.TempDir()
	writeKernel(t, esp)

	out, _, err := execute(t, "boot", "--esp", esp, "--console", "--memmap", "", "--background-allocs", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "INFO  kernel loaded entry=0x100000 segments=2\n")
	assert.Contains(t, out, "exiting boot services")

	_, err = os.Stat(filepath.Join(esp, "memmap.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestBootCommandMissingKernel(t *testing.T) {
	_, entries, err := execute(t, "boot", "--esp", t.TempDir())

	assert.ErrorIs(t, err, uefi.ErrFileNotFound)
	assert.Contains(t, err.Error(), "boot halted")
	assert.Nil(t, entry(entries, "kernel entered"))
}

func TestBootCommandBadFormat(t *testing.T) {
	_, _, err := execute(t, "boot", "--esp", t.TempDir(), "--format", "cmyk")
	assert.ErrorContains(t, err, `unknown pixel format "cmyk"`)
}

func TestMemmapCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"table", nil, []string{"PHYSICAL START", "EfiConventionalMemory", "0x00100000", "UC|WC|WT|WB|RUNTIME"}},
		{"e820", []string{"--e820"}, []string{"ADDRESS", "0x00100000"}},
		{"raw", []string{"--raw"}, []string{"Index, Type, Type(name), PhysicalStart, NumberOfPages, Attribute\n", "EfiMemoryMappedIO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, entries, err := execute(t, append([]string{"memmap"}, tt.args...)...)
			require.NoError(t, err)

			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}

			require.NotEmpty(t, entries.Entries)
			assert.Equal(t, 48, int(entries.Entries[0].Fields.Get("descriptor_size").(uint64)))
		})
	}
}

func TestElfCommand(t *testing.T) {
	path := writeKernel(t, t.TempDir())

	out, entries, err := execute(t, "elf", path)
	require.NoError(t, err)

	assert.Contains(t, out, "EfiLoaderCode")
	assert.Contains(t, out, "EfiLoaderData")
	assert.Contains(t, out, "0x200000")

	e := entry(entries, path)
	require.NotNil(t, e)
	assert.Equal(t, 2, e.Fields.Get("segments"))

	_, _, err = execute(t, "elf", filepath.Join(t.TempDir(), "missing.elf"))
	assert.Error(t, err)
}
