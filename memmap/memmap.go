// Package memmap captures the EFI memory map into a fixed-capacity buffer
// and exposes its descriptors as a stride-based view.
package memmap

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/pkg/errors"

	"mazefi/bitfield"
	"mazefi/uefi"
)

// BufferSize is the default snapshot capacity.
const BufferSize = 4 * uefi.PageSize

// SizeError is returned by Refresh when the snapshot buffer cannot hold
// the current map.
type SizeError struct {
	Capacity uint64
	Required uint64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%v (capacity %d, required %d)", uefi.ErrMapBufferTooSmall, e.Capacity, e.Required)
}

func (e *SizeError) Unwrap() []error {
	return []error{uefi.ErrMapBufferTooSmall, uefi.BufferTooSmall}
}

// Snapshot is one GetMemoryMap result. Valid descriptors occupy
// buf[0:Size] in steps of DescriptorSize, which firmware may report larger
// than the declared descriptor record.
type Snapshot struct {
	buf []byte

	Size              uint64
	Key               uint64
	DescriptorSize    uint64
	DescriptorVersion uint32
}

// New returns an empty snapshot with a BufferSize buffer.
func New() *Snapshot {
	return NewWithBuffer(make([]byte, BufferSize))
}

// NewWithBuffer returns an empty snapshot filled into buf.
func NewWithBuffer(buf []byte) *Snapshot {
	return &Snapshot{buf: buf}
}

// Capacity returns the buffer size in bytes.
func (s *Snapshot) Capacity() int {
	return len(s.buf)
}

// Refresh replaces the snapshot with the current firmware memory map. On
// failure the previous key and size are kept.
func (s *Snapshot) Refresh(bs uefi.BootServices) error {
	info, err := bs.GetMemoryMap(s.buf)

	if uefi.StatusOf(err) == uefi.BufferTooSmall {
		return &SizeError{Capacity: uint64(len(s.buf)), Required: info.Size}
	}

	if err != nil {
		return errors.Wrap(err, "get memory map")
	}

	if info.DescriptorSize < uefi.MemoryDescriptorSize {
		return errors.Errorf("get memory map: descriptor size %d below %d", info.DescriptorSize, uefi.MemoryDescriptorSize)
	}

	size := min(info.Size, uint64(len(s.buf)))

	s.Size = size - size%info.DescriptorSize
	s.Key = info.Key
	s.DescriptorSize = info.DescriptorSize
	s.DescriptorVersion = info.DescriptorVersion

	return nil
}

// Len returns the number of descriptors.
func (s *Snapshot) Len() int {
	if s.DescriptorSize == 0 {
		return 0
	}

	return int(s.Size / s.DescriptorSize)
}

// At returns descriptor i, it panics when i is out of range.
func (s *Snapshot) At(i int) Descriptor {
	if i < 0 || i >= s.Len() {
		panic(fmt.Sprintf("memmap: index %d out of range [0:%d]", i, s.Len()))
	}

	off := uint64(i) * s.DescriptorSize

	return Descriptor{b: s.buf[off : off+s.DescriptorSize : off+s.DescriptorSize]}
}

// All yields every descriptor with its index. The sequence is a view and
// can be ranged over any number of times.
func (s *Snapshot) All() iter.Seq2[int, Descriptor] {
	return func(yield func(int, Descriptor) bool) {
		for i := range s.Len() {
			if !yield(i, s.At(i)) {
				return
			}
		}
	}
}

// Descriptor is a read-only view of one memory map entry.
type Descriptor struct {
	b []byte
}

func (d Descriptor) Type() uefi.MemoryType {
	return uefi.MemoryType(binary.LittleEndian.Uint32(d.b[0:]))
}

func (d Descriptor) PhysicalStart() uint64 {
	return binary.LittleEndian.Uint64(d.b[8:])
}

func (d Descriptor) VirtualStart() uint64 {
	return binary.LittleEndian.Uint64(d.b[16:])
}

// NumberOfPages is in 4 KiB units.
func (d Descriptor) NumberOfPages() uint64 {
	return binary.LittleEndian.Uint64(d.b[24:])
}

func (d Descriptor) Attribute() uint64 {
	return binary.LittleEndian.Uint64(d.b[32:])
}

// Attributes decodes Attribute.
func (d Descriptor) Attributes() bitfield.MemoryAttributes {
	return bitfield.UnpackMemoryAttributes(d.Attribute())
}

// MemoryDescriptor copies the declared fields out of the view.
func (d Descriptor) MemoryDescriptor() uefi.MemoryDescriptor {
	return uefi.MemoryDescriptor{
		Type:          d.Type(),
		PhysicalStart: d.PhysicalStart(),
		VirtualStart:  d.VirtualStart(),
		NumberOfPages: d.NumberOfPages(),
		Attribute:     d.Attribute(),
	}
}

// Size returns the region size in bytes.
func (d Descriptor) Size() uint64 {
	return d.NumberOfPages() * uefi.PageSize
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%-26v %#012x-%#012x %s", d.Type(), d.PhysicalStart(), d.PhysicalStart()+d.Size(), d.Attributes())
}
