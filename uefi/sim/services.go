package sim

import (
	"encoding/binary"
	"slices"

	"mazefi/uefi"
)

func (m *Machine) AllocatePages(allocType uefi.AllocateType, memType uefi.MemoryType, pages uint64, address uint64) (uint64, error) {
	if err := m.enter("AllocatePages"); err != nil {
		return 0, err
	}

	return m.allocate(allocType, memType, pages, address)
}

func (m *Machine) FreePages(address uint64, pages uint64) error {
	if err := m.enter("FreePages"); err != nil {
		return err
	}

	if _, ok := m.pool[address]; ok {
		return uefi.NotFound
	}

	return m.release(address, pages)
}

// AllocatePool hands out whole pages.
func (m *Machine) AllocatePool(memType uefi.MemoryType, size uint64) (uint64, error) {
	if err := m.enter("AllocatePool"); err != nil {
		return 0, err
	}

	if size == 0 {
		return 0, uefi.InvalidParameter
	}

	addr, err := m.allocate(uefi.AllocateAnyPages, memType, uefi.Pages(size), 0)

	if err != nil {
		return 0, err
	}

	m.pool[addr] = uefi.Pages(size)

	return addr, nil
}

func (m *Machine) FreePool(address uint64) error {
	if err := m.enter("FreePool"); err != nil {
		return err
	}

	pages, ok := m.pool[address]

	if !ok {
		return uefi.InvalidParameter
	}

	delete(m.pool, address)

	return m.release(address, pages)
}

// PoolAllocations returns the number of pool buffers not freed yet.
func (m *Machine) PoolAllocations() int {
	return len(m.pool)
}

func (m *Machine) GetMemoryMap(buf []byte) (uefi.MemoryMapInfo, error) {
	if err := m.enter("GetMemoryMap"); err != nil {
		return uefi.MemoryMapInfo{}, err
	}

	info := uefi.MemoryMapInfo{
		Size:              uint64(len(m.descriptors)) * m.cfg.DescriptorSize,
		Key:               m.key,
		DescriptorSize:    m.cfg.DescriptorSize,
		DescriptorVersion: 1,
	}

	if uint64(len(buf)) < info.Size {
		return info, uefi.BufferTooSmall
	}

	m.encodeMap(buf)

	return info, nil
}

func (m *Machine) ExitBootServices(image uefi.Handle, mapKey uint64) error {
	if err := m.enter("ExitBootServices"); err != nil {
		return err
	}

	m.exitAttempts++

	if image != ImageHandle {
		return uefi.InvalidParameter
	}

	if m.background > 0 {
		m.background--

		// a timer event or driver allocating behind the loader's back
		if _, err := m.allocate(uefi.AllocateAnyPages, uefi.BootServicesData, 1, 0); err != nil {
			return uefi.OutOfResources
		}
	}

	if mapKey != m.key && !m.cfg.IgnoreExitKey {
		m.rejected = true
		return uefi.InvalidParameter
	}

	m.exited = true
	m.rejected = false

	return nil
}

func (m *Machine) OpenProtocol(handle uefi.Handle, protocol uefi.GUID, agent uefi.Handle, attributes uint32) (any, error) {
	if err := m.enter("OpenProtocol"); err != nil {
		return nil, err
	}

	if _, ok := m.protocols[agent]; !ok && attributes != uefi.OpenProtocolTestProtocol {
		return nil, uefi.InvalidParameter
	}

	p, ok := m.protocols[handle][protocol]

	if !ok {
		return nil, uefi.Unsupported
	}

	return p, nil
}

func (m *Machine) handlesFor(protocol uefi.GUID) (handles []uefi.Handle) {
	for h, protocols := range m.protocols {
		if _, ok := protocols[protocol]; ok {
			handles = append(handles, h)
		}
	}

	slices.Sort(handles)

	return
}

// LocateHandleBuffer allocates the handle array from pool, as firmware
// does.
func (m *Machine) LocateHandleBuffer(search uefi.LocateSearchType, protocol uefi.GUID) (hb uefi.HandleBuffer, err error) {
	if err = m.enter("LocateHandleBuffer"); err != nil {
		return
	}

	if search != uefi.ByProtocol {
		return hb, uefi.InvalidParameter
	}

	handles := m.handlesFor(protocol)

	if len(handles) == 0 {
		return hb, uefi.NotFound
	}

	size := uint64(8 * len(handles))

	if hb.Address, err = m.allocate(uefi.AllocateAnyPages, uefi.BootServicesData, uefi.Pages(size), 0); err != nil {
		return hb, err
	}

	m.pool[hb.Address] = uefi.Pages(size)

	array := m.backing[hb.Address]

	for i, h := range handles {
		binary.LittleEndian.PutUint64(array[8*i:], uint64(h))
	}

	hb.Handles = handles

	return
}

func (m *Machine) LocateProtocol(protocol uefi.GUID) (any, error) {
	if err := m.enter("LocateProtocol"); err != nil {
		return nil, err
	}

	handles := m.handlesFor(protocol)

	if len(handles) == 0 {
		return nil, uefi.NotFound
	}

	return m.protocols[handles[0]][protocol], nil
}

type loadedImage struct {
	device uefi.Handle
}

func (li *loadedImage) DeviceHandle() uefi.Handle {
	return li.device
}
