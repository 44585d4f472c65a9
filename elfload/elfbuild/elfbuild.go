// Package elfbuild writes minimal little-endian ELF64 executables made of
// program headers and their segment data, without sections.
package elfbuild

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const (
	headerSize = 64
	progSize   = 56
	align      = 0x1000
)

// Segment is one program header and its file contents.
type Segment struct {
	Type  elf.ProgType
	Flags elf.ProgFlag
	Vaddr uint64
	// Memsz defaults to len(Data) when smaller.
	Memsz uint64
	Data  []byte
	// Offset places Data in the file, zero picks the next page aligned
	// offset.
	Offset uint64
}

// File describes an executable.
type File struct {
	Entry    uint64
	Machine  elf.Machine
	Segments []Segment
	// Phentsize is the program header stride, zero means the standard 56
	// bytes. Larger strides pad every entry.
	Phentsize uint16
}

// Build returns an x86-64 executable with the given entry point and
// segments.
func Build(entry uint64, segs ...Segment) []byte {
	f := &File{Entry: entry, Machine: elf.EM_X86_64, Segments: segs}
	return f.Bytes()
}

func alignUp(v uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

// Bytes encodes the file.
func (f *File) Bytes() []byte {
	phentsize := uint64(f.Phentsize)

	if phentsize == 0 {
		phentsize = progSize
	}

	end := uint64(headerSize) + phentsize*uint64(len(f.Segments))
	offsets := make([]uint64, len(f.Segments))

	for i, s := range f.Segments {
		off := s.Offset

		if off == 0 && len(s.Data) > 0 {
			off = alignUp(end)
		}

		offsets[i] = off
		end = max(end, off+uint64(len(s.Data)))
	}

	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(f.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     f.Entry,
		Phoff:     headerSize,
		Ehsize:    headerSize,
		Phentsize: f.Phentsize,
		Phnum:     uint16(len(f.Segments)),
	}

	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	if hdr.Phentsize == 0 {
		hdr.Phentsize = progSize
	}

	out := make([]byte, end)
	buf := new(bytes.Buffer)

	_ = binary.Write(buf, binary.LittleEndian, &hdr)
	copy(out, buf.Bytes())

	for i, s := range f.Segments {
		prog := elf.Prog64{
			Type:   uint32(s.Type),
			Flags:  uint32(s.Flags),
			Off:    offsets[i],
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  max(s.Memsz, uint64(len(s.Data))),
			Align:  align,
		}

		buf.Reset()
		_ = binary.Write(buf, binary.LittleEndian, &prog)
		copy(out[headerSize+uint64(i)*phentsize:], buf.Bytes())
		copy(out[offsets[i]:], s.Data)
	}

	return out
}
