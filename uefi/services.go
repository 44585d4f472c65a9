package uefi

// Handle is an EFI_HANDLE.
type Handle uint64

// LocateSearchType is EFI_LOCATE_SEARCH_TYPE.
type LocateSearchType uint32

const (
	AllHandles LocateSearchType = iota
	ByRegisterNotify
	ByProtocol
)

// OpenProtocol() attributes.
const (
	OpenProtocolByHandleProtocol  = 0x00000001
	OpenProtocolGetProtocol       = 0x00000002
	OpenProtocolTestProtocol      = 0x00000004
	OpenProtocolByChildController = 0x00000008
	OpenProtocolByDriver          = 0x00000010
	OpenProtocolExclusive         = 0x00000020
)

// HandleBuffer is the result of LocateHandleBuffer(). Address is the pool
// allocation holding the array; the caller owns it and must FreePool it.
type HandleBuffer struct {
	Handles []Handle
	Address uint64
}

// BootServices is the part of EFI_BOOT_SERVICES used by the loader. Every
// method returns a Status (via Status.Err) on failure.
type BootServices interface {
	// AllocatePages returns the base address of the allocated range. With
	// AllocateAddress the range is anchored at address.
	AllocatePages(allocType AllocateType, memType MemoryType, pages uint64, address uint64) (uint64, error)
	FreePages(address uint64, pages uint64) error
	AllocatePool(memType MemoryType, size uint64) (uint64, error)
	FreePool(address uint64) error
	// GetMemoryMap fills buf with the current memory map. When buf is
	// too small it returns BufferTooSmall with the required size in
	// MemoryMapInfo.Size.
	GetMemoryMap(buf []byte) (MemoryMapInfo, error)
	ExitBootServices(image Handle, mapKey uint64) error
	// OpenProtocol returns the protocol interface installed on handle,
	// one of the protocol interfaces of this package.
	OpenProtocol(handle Handle, protocol GUID, agent Handle, attributes uint32) (any, error)
	LocateHandleBuffer(search LocateSearchType, protocol GUID) (HandleBuffer, error)
	LocateProtocol(protocol GUID) (any, error)
}

// Memory gives byte access to physical memory. Outside paging, physical
// and virtual addresses coincide.
type Memory interface {
	Slice(address uint64, size uint64) ([]byte, error)
}

// System is the loader's view of EFI_SYSTEM_TABLE plus the image handle
// passed to the application entry point.
type System interface {
	ImageHandle() Handle
	BootServices() BootServices
	ConsoleOut() SimpleTextOutput
	Memory() Memory
}

// SimpleTextOutput is EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.
type SimpleTextOutput interface {
	// OutputString prints a NUL-terminated CHAR16 string.
	OutputString(s []uint16) error
	ClearScreen() error
}

// GraphicsOutput is EFI_GRAPHICS_OUTPUT_PROTOCOL.
type GraphicsOutput interface {
	Mode() (GraphicsMode, error)
}

// LoadedImage is EFI_LOADED_IMAGE_PROTOCOL.
type LoadedImage interface {
	DeviceHandle() Handle
}

// SimpleFileSystem is EFI_SIMPLE_FILE_SYSTEM_PROTOCOL.
type SimpleFileSystem interface {
	OpenVolume() (File, error)
}

// File is EFI_FILE_PROTOCOL.
type File interface {
	// Open resolves a NUL-terminated CHAR16 path relative to the file.
	Open(name []uint16, mode FileMode, attributes uint64) (File, error)
	Close() error
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	// GetInfo fills buf and returns the number of bytes used; with
	// BufferTooSmall it returns the required size.
	GetInfo(infoType GUID, buf []byte) (int, error)
	// SetInfo applies an info buffer, a smaller FileSize truncates.
	SetInfo(infoType GUID, buf []byte) error
}
