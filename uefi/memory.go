package uefi

import "fmt"

// PageSize represents the EFI page size in bytes
const PageSize = 4096 // 4 KiB

// Pages returns the number of pages needed to hold size bytes.
func Pages(size uint64) uint64 {
	return (size + PageSize - 1) / PageSize
}

// AllocateType is EFI_ALLOCATE_TYPE.
type AllocateType uint32

const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
	MaxAllocateType
)

// MemoryType is EFI_MEMORY_TYPE.
type MemoryType uint32

const (
	ReservedMemoryType MemoryType = iota
	LoaderCode
	LoaderData
	BootServicesCode
	BootServicesData
	RuntimeServicesCode
	RuntimeServicesData
	ConventionalMemory
	UnusableMemory
	ACPIReclaimMemory
	ACPIMemoryNVS
	MemoryMappedIO
	MemoryMappedIOPortSpace
	PalCode
	PersistentMemory
	UnacceptedMemoryType
	MaxMemoryType
)

var memoryTypeNames = [...]string{
	ReservedMemoryType:      "EfiReservedMemoryType",
	LoaderCode:              "EfiLoaderCode",
	LoaderData:              "EfiLoaderData",
	BootServicesCode:        "EfiBootServicesCode",
	BootServicesData:        "EfiBootServicesData",
	RuntimeServicesCode:     "EfiRuntimeServicesCode",
	RuntimeServicesData:     "EfiRuntimeServicesData",
	ConventionalMemory:      "EfiConventionalMemory",
	UnusableMemory:          "EfiUnusableMemory",
	ACPIReclaimMemory:       "EfiACPIReclaimMemory",
	ACPIMemoryNVS:           "EfiACPIMemoryNVS",
	MemoryMappedIO:          "EfiMemoryMappedIO",
	MemoryMappedIOPortSpace: "EfiMemoryMappedIOPortSpace",
	PalCode:                 "EfiPalCode",
	PersistentMemory:        "EfiPersistentMemory",
	UnacceptedMemoryType:    "EfiUnacceptedMemoryType",
}

func (t MemoryType) String() string {
	if int(t) < len(memoryTypeNames) {
		return memoryTypeNames[t]
	}

	return fmt.Sprintf("MemoryType(%#x)", uint32(t))
}

// Usable reports whether memory of this type is free for the OS once boot
// services have been exited (UEFI Specification Table 7.10).
func (t MemoryType) Usable() bool {
	switch t {
	case LoaderCode, LoaderData, BootServicesCode, BootServicesData, ConventionalMemory:
		return true
	}

	return false
}

// EFI memory attribute bits (EFI_MEMORY_*).
const (
	MemoryUC           = 1 << 0
	MemoryWC           = 1 << 1
	MemoryWT           = 1 << 2
	MemoryWB           = 1 << 3
	MemoryUCE          = 1 << 4
	MemoryWP           = 1 << 12
	MemoryRP           = 1 << 13
	MemoryXP           = 1 << 14
	MemoryNV           = 1 << 15
	MemoryMoreReliable = 1 << 16
	MemoryRO           = 1 << 17
	MemorySP           = 1 << 18
	MemoryCPUCrypto    = 1 << 19
	MemoryRuntime      = 1 << 63
)

// MemoryDescriptor represents an EFI Memory Descriptor as laid out by
// firmware. Firmware may report a descriptor stride larger than this
// record; never index a memory map by its size.
type MemoryDescriptor struct {
	Type MemoryType
	// 4 bytes of padding
	PhysicalStart uint64
	VirtualStart  uint64
	NumberOfPages uint64
	Attribute     uint64
}

// MemoryDescriptorSize is the size of the declared descriptor record.
const MemoryDescriptorSize = 40

// PhysicalEnd returns the descriptor physical end address.
func (d *MemoryDescriptor) PhysicalEnd() uint64 {
	return d.PhysicalStart + d.NumberOfPages*PageSize
}

// Size returns the descriptor size in bytes.
func (d *MemoryDescriptor) Size() uint64 {
	return d.NumberOfPages * PageSize
}

// MemoryMapInfo is what GetMemoryMap reports alongside the descriptor
// bytes.
type MemoryMapInfo struct {
	// Size is the number of bytes written, or required when the buffer
	// was too small.
	Size              uint64
	Key               uint64
	DescriptorSize    uint64
	DescriptorVersion uint32
}
