package boot

import (
	"github.com/apex/log"
	"github.com/pkg/errors"

	"mazefi/memmap"
	"mazefi/uefi"
)

// Config holds the loader settings. Paths are EFI file paths relative to
// the root of the volume the loader was booted from.
type Config struct {
	// KernelPath is the ELF kernel image.
	KernelPath string
	// MemoryMapPath receives a text dump of the memory map before the
	// kernel is loaded, empty disables the dump.
	MemoryMapPath string
	// MapBufferSize is the memory map snapshot capacity in bytes, zero
	// selects memmap.BufferSize.
	MapBufferSize int
	// Level is the minimum log level written to the console.
	Level log.Level
}

// DefaultConfig returns the settings of a stock boot.
func DefaultConfig() Config {
	return Config{
		KernelPath:    `\kernel.elf`,
		MemoryMapPath: `\memmap.txt`,
		MapBufferSize: memmap.BufferSize,
		Level:         log.InfoLevel,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.KernelPath == "" {
		return errors.New("kernel path is empty")
	}

	if c.MapBufferSize != 0 && c.MapBufferSize < uefi.MemoryDescriptorSize {
		return errors.Errorf("memory map buffer of %d bytes cannot hold a descriptor", c.MapBufferSize)
	}

	return nil
}
