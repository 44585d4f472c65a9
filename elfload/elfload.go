// Package elfload maps the loadable segments of an ELF64 kernel at their
// link addresses.
//
// Only the load address equals link address case is supported: no
// relocation and no paging, so each segment's virtual address is the
// physical address it is allocated at.
package elfload

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"mazefi/uefi"
)

// Header is the ELF64 file header.
type Header = elf.Header64

// ProgramHeader is an ELF64 program header table entry.
type ProgramHeader = elf.Prog64

const (
	headerSize = 64
	progSize   = 56
)

// PageAllocator is satisfied by uefi.BootServices.
type PageAllocator interface {
	AllocatePages(allocType uefi.AllocateType, memType uefi.MemoryType, pages uint64, address uint64) (uint64, error)
}

// Segment is a loadable segment. After Load it is owned by the kernel.
type Segment struct {
	// Index in the program header table
	Index      int
	Address    uint64
	Pages      uint64
	Offset     uint64
	FileSize   uint64
	MemorySize uint64
	MemoryType uefi.MemoryType
}

func (s *Segment) String() string {
	return fmt.Sprintf("#%d %v %#x+%d pages (file %#x+%#x, mem %#x)",
		s.Index, s.MemoryType, s.Address, s.Pages, s.Offset, s.FileSize, s.MemorySize)
}

// Image is the result of loading.
type Image struct {
	Entry    uint64
	Segments []Segment
}

// ParseHeader decodes the file header. The identification bytes are not
// validated.
func ParseHeader(file []byte) (hdr Header, err error) {
	if len(file) < headerSize {
		return hdr, uefi.Fail(uefi.ErrMalformedImage, "read header", fmt.Errorf("%d bytes", len(file)))
	}

	err = binary.Read(bytes.NewReader(file[:headerSize]), binary.LittleEndian, &hdr)

	return
}

// ProgramHeaders decodes hdr.Phnum entries starting at hdr.Phoff, spaced
// by hdr.Phentsize (56 bytes when zero).
func ProgramHeaders(file []byte, hdr *Header) ([]ProgramHeader, error) {
	stride := uint64(hdr.Phentsize)

	if stride == 0 {
		stride = progSize
	}

	progs := make([]ProgramHeader, hdr.Phnum)

	for i := range progs {
		off := hdr.Phoff + uint64(i)*stride

		if off < hdr.Phoff || off > uint64(len(file)) || uint64(len(file))-off < progSize {
			return nil, uefi.Fail(uefi.ErrMalformedImage, fmt.Sprintf("program header %d at %#x", i, off), nil)
		}

		if err := binary.Read(bytes.NewReader(file[off:off+progSize]), binary.LittleEndian, &progs[i]); err != nil {
			return nil, err
		}
	}

	return progs, nil
}

func memoryType(flags uint32) uefi.MemoryType {
	if elf.ProgFlag(flags)&elf.PF_X != 0 {
		return uefi.LoaderCode
	}

	return uefi.LoaderData
}

// Plan returns the image Load would produce, without allocating.
func Plan(file []byte) (*Image, error) {
	hdr, err := ParseHeader(file)

	if err != nil {
		return nil, err
	}

	progs, err := ProgramHeaders(file, &hdr)

	if err != nil {
		return nil, err
	}

	img := &Image{Entry: hdr.Entry}

	for i, p := range progs {
		if elf.ProgType(p.Type) != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}

		img.Segments = append(img.Segments, Segment{
			Index:      i,
			Address:    p.Vaddr,
			Pages:      uefi.Pages(p.Memsz),
			Offset:     p.Off,
			FileSize:   p.Filesz,
			MemorySize: p.Memsz,
			MemoryType: memoryType(p.Flags),
		})
	}

	return img, nil
}

// Load allocates the pages of every PT_LOAD segment at its virtual address
// and copies its file contents there. The memsz - filesz tail is left as
// handed out by the allocator.
func Load(pages PageAllocator, mem uefi.Memory, file []byte) (*Image, error) {
	img, err := Plan(file)

	if err != nil {
		return nil, err
	}

	for _, s := range img.Segments {
		if err = load(pages, mem, file, &s); err != nil {
			return nil, errors.Wrapf(err, "segment %d", s.Index)
		}
	}

	return img, nil
}

func load(pages PageAllocator, mem uefi.Memory, file []byte, s *Segment) error {
	op := fmt.Sprintf("allocate %d pages at %#x", s.Pages, s.Address)
	addr, err := pages.AllocatePages(uefi.AllocateAddress, s.MemoryType, s.Pages, s.Address)

	if err != nil {
		return uefi.Fail(uefi.ErrAllocationFailed, op, err)
	}

	if addr != s.Address {
		return uefi.Fail(uefi.ErrAllocationFailed, op, fmt.Errorf("got %#x", addr))
	}

	end := s.Offset + s.FileSize

	if end < s.Offset || end > uint64(len(file)) || s.FileSize > s.Pages*uefi.PageSize {
		return uefi.Fail(uefi.ErrMalformedImage, fmt.Sprintf("copy %#x bytes from offset %#x", s.FileSize, s.Offset), nil)
	}

	if s.FileSize == 0 {
		return nil
	}

	dst, err := mem.Slice(s.Address, s.FileSize)

	if err != nil {
		return uefi.Fail(uefi.ErrAllocationFailed, fmt.Sprintf("map %#x", s.Address), err)
	}

	copy(dst, file[s.Offset:end])

	return nil
}
