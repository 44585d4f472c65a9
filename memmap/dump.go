package memmap

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/u-root/u-root/pkg/boot/bzimage"

	"mazefi/uefi"
)

// Summary aggregates a snapshot for diagnostics.
type Summary struct {
	Entries int
	// Usable counts bytes the OS may use after ExitBootServices.
	Usable uint64
	Total  uint64
}

func (s Summary) String() string {
	return fmt.Sprintf("%d entries, %s usable of %s", s.Entries, humanize.IBytes(s.Usable), humanize.IBytes(s.Total))
}

// Summary walks the snapshot once.
func (s *Snapshot) Summary() (sum Summary) {
	for _, d := range s.All() {
		sum.Entries++
		sum.Total += d.Size()

		if d.Type().Usable() {
			sum.Usable += d.Size()
		}
	}

	return
}

// dumpAttributeMask keeps the caching and protection attributes, dropping
// EFI_MEMORY_RUNTIME and reserved high bits.
const dumpAttributeMask = 0xfffff

// WriteTo writes the snapshot as a CSV-like text table, one descriptor per
// line.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	bw := bufio.NewWriter(cw)

	fmt.Fprintf(bw, "Index, Type, Type(name), PhysicalStart, NumberOfPages, Attribute\n")
	fmt.Fprintf(bw, "map->map_size = %08X, map->descriptor_size = %X\n", s.Size, s.DescriptorSize)

	for i, d := range s.All() {
		fmt.Fprintf(bw, "%d, %X, %v, %08X, %X, %X\n",
			i,
			uint32(d.Type()),
			d.Type(),
			d.PhysicalStart(),
			d.NumberOfPages(),
			d.Attribute()&dumpAttributeMask,
		)
	}

	err := bw.Flush()

	return cw.n, err
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// ACPI 6.x E820 type 7 has no bzimage constant, and the bzimage type is
// unexported, so it is derived from RAM (1).
const addressRangePersistentMemory = bzimage.RAM + 6

// E820 converts the descriptor to an x86 E820 entry, typed as described in
// UEFI Specification Table 7.10 (memory type usage after
// ExitBootServices()).
func (d Descriptor) E820() bzimage.E820Entry {
	e := bzimage.E820Entry{
		Addr: d.PhysicalStart(),
		Size: d.Size(),
	}

	switch d.Type() {
	case uefi.LoaderCode, uefi.LoaderData, uefi.BootServicesCode, uefi.BootServicesData, uefi.ConventionalMemory:
		e.MemType = bzimage.RAM
	case uefi.PersistentMemory:
		e.MemType = addressRangePersistentMemory
	case uefi.ACPIReclaimMemory:
		e.MemType = bzimage.ACPI
	case uefi.ACPIMemoryNVS:
		e.MemType = bzimage.NVS
	default:
		e.MemType = bzimage.Reserved
	}

	return e
}

// E820 converts the snapshot to an x86 E820 map, merging contiguous
// entries of the same resulting type.
func (s *Snapshot) E820() (entries []bzimage.E820Entry) {
	for _, d := range s.All() {
		e := d.E820()

		if n := len(entries); n > 0 {
			last := &entries[n-1]

			if last.MemType == e.MemType && last.Addr+last.Size == e.Addr {
				last.Size += e.Size
				continue
			}
		}

		entries = append(entries, e)
	}

	return
}
