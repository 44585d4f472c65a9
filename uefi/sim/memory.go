package sim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"

	"mazefi/uefi"
)

func end(d *uefi.MemoryDescriptor) uint64 {
	return d.PhysicalStart + d.NumberOfPages*uefi.PageSize
}

func (m *Machine) sortDescriptors() error {
	slices.SortFunc(m.descriptors, func(a, b uefi.MemoryDescriptor) int {
		switch {
		case a.PhysicalStart < b.PhysicalStart:
			return -1
		case a.PhysicalStart > b.PhysicalStart:
			return 1
		}

		return 0
	})

	for i := 1; i < len(m.descriptors); i++ {
		if prev := &m.descriptors[i-1]; end(prev) > m.descriptors[i].PhysicalStart {
			return fmt.Errorf("region at %#x overlaps region at %#x", m.descriptors[i].PhysicalStart, prev.PhysicalStart)
		}
	}

	return nil
}

func (m *Machine) descriptorAt(addr uint64) (uefi.MemoryDescriptor, bool) {
	for _, d := range m.descriptors {
		if addr >= d.PhysicalStart && addr < end(&d) {
			return d, true
		}
	}

	return uefi.MemoryDescriptor{}, false
}

// Descriptors returns a copy of the current memory map.
func (m *Machine) Descriptors() []uefi.MemoryDescriptor {
	return slices.Clone(m.descriptors)
}

// carve turns pages at start, inside one conventional descriptor, into
// memType.
func (m *Machine) carve(start uint64, pages uint64, memType uefi.MemoryType) error {
	size := pages * uefi.PageSize

	for i, d := range m.descriptors {
		if d.Type != uefi.ConventionalMemory || start < d.PhysicalStart || start+size > end(&d) {
			continue
		}

		var parts []uefi.MemoryDescriptor

		if start > d.PhysicalStart {
			before := d
			before.NumberOfPages = (start - d.PhysicalStart) / uefi.PageSize
			parts = append(parts, before)
		}

		used := d
		used.Type = memType
		used.PhysicalStart = start
		used.NumberOfPages = pages
		parts = append(parts, used)

		if start+size < end(&d) {
			after := d
			after.PhysicalStart = start + size
			after.NumberOfPages = (end(&d) - after.PhysicalStart) / uefi.PageSize
			parts = append(parts, after)
		}

		m.descriptors = slices.Replace(m.descriptors, i, i+1, parts...)
		m.backing[start] = bytes.Repeat([]byte{m.cfg.Scribble}, int(size))
		m.key++

		return nil
	}

	return uefi.NotFound
}

// release returns an allocation to conventional memory and merges it with
// its conventional neighbours.
func (m *Machine) release(start uint64, pages uint64) error {
	i := slices.IndexFunc(m.descriptors, func(d uefi.MemoryDescriptor) bool {
		return d.PhysicalStart == start
	})

	if i < 0 || m.backing[start] == nil || m.descriptors[i].NumberOfPages != pages || m.descriptors[i].Type == uefi.MemoryMappedIO {
		return uefi.NotFound
	}

	m.descriptors[i].Type = uefi.ConventionalMemory
	delete(m.backing, start)
	m.key++

	mergeable := func(a, b *uefi.MemoryDescriptor) bool {
		return a.Type == uefi.ConventionalMemory && b.Type == uefi.ConventionalMemory &&
			a.Attribute == b.Attribute && end(a) == b.PhysicalStart
	}

	if i+1 < len(m.descriptors) && mergeable(&m.descriptors[i], &m.descriptors[i+1]) {
		m.descriptors[i].NumberOfPages += m.descriptors[i+1].NumberOfPages
		m.descriptors = slices.Delete(m.descriptors, i+1, i+2)
	}

	if i > 0 && mergeable(&m.descriptors[i-1], &m.descriptors[i]) {
		m.descriptors[i-1].NumberOfPages += m.descriptors[i].NumberOfPages
		m.descriptors = slices.Delete(m.descriptors, i, i+1)
	}

	return nil
}

// highestFit finds the top-most pages below limit in conventional memory.
func (m *Machine) highestFit(pages uint64, limit uint64) (uint64, bool) {
	size := pages * uefi.PageSize

	for i := len(m.descriptors) - 1; i >= 0; i-- {
		d := &m.descriptors[i]

		if d.Type != uefi.ConventionalMemory || d.NumberOfPages < pages {
			continue
		}

		top := min(end(d), limit&^(uefi.PageSize-1))

		if top >= d.PhysicalStart+size {
			return top - size, true
		}
	}

	return 0, false
}

func (m *Machine) allocate(allocType uefi.AllocateType, memType uefi.MemoryType, pages uint64, address uint64) (uint64, error) {
	if pages == 0 || memType >= uefi.MaxMemoryType && memType < 0x70000000 {
		return 0, uefi.InvalidParameter
	}

	switch allocType {
	case uefi.AllocateAddress:
		if address%uefi.PageSize != 0 {
			return 0, uefi.InvalidParameter
		}
	case uefi.AllocateAnyPages, uefi.AllocateMaxAddress:
		limit := ^uint64(0)

		if allocType == uefi.AllocateMaxAddress {
			limit = address + 1
		}

		var ok bool

		if address, ok = m.highestFit(pages, limit); !ok {
			return 0, uefi.OutOfResources
		}
	default:
		return 0, uefi.InvalidParameter
	}

	if err := m.carve(address, pages, memType); err != nil {
		return 0, err
	}

	return address, nil
}

// Slice implements uefi.Memory over allocated pages and the framebuffer.
func (m *Machine) Slice(address uint64, size uint64) ([]byte, error) {
	for base, b := range m.backing {
		if address >= base && address-base <= uint64(len(b)) && size <= uint64(len(b))-(address-base) {
			off := address - base
			return b[off : off+size : off+size], nil
		}
	}

	return nil, fmt.Errorf("%#x+%#x: %w", address, size, uefi.InvalidParameter)
}

func (m *Machine) encodeMap(buf []byte) {
	for i, d := range m.descriptors {
		rec := buf[uint64(i)*m.cfg.DescriptorSize:]

		binary.LittleEndian.PutUint32(rec[0:], uint32(d.Type))
		binary.LittleEndian.PutUint32(rec[4:], 0)
		binary.LittleEndian.PutUint64(rec[8:], d.PhysicalStart)
		binary.LittleEndian.PutUint64(rec[16:], d.VirtualStart)
		binary.LittleEndian.PutUint64(rec[24:], d.NumberOfPages)
		binary.LittleEndian.PutUint64(rec[32:], d.Attribute)

		// firmware private extension of the record
		for j := uint64(uefi.MemoryDescriptorSize); j < m.cfg.DescriptorSize; j++ {
			rec[j] = 0xee
		}
	}
}
