package uefi

import "unsafe"

// Firmware table layouts, x64 calling convention, all pointers 64-bit.
// Function pointer fields hold the service address and are invoked through
// callService by the firmware backend. Offsets are part of the firmware
// ABI: each assertion below fails to compile when a field moves.

// tableHeader is EFI_TABLE_HEADER.
type tableHeader struct {
	Signature  uint64
	Revision   uint32
	HeaderSize uint32
	CRC32      uint32
	_          uint32
}

// systemTable is EFI_SYSTEM_TABLE.
type systemTable struct {
	Hdr                  tableHeader
	FirmwareVendor       uint64
	FirmwareRevision     uint32
	_                    uint32
	ConsoleInHandle      uint64
	ConIn                uint64
	ConsoleOutHandle     uint64
	ConOut               uint64
	StandardErrorHandle  uint64
	StdErr               uint64
	RuntimeServices      uint64
	BootServices         uint64
	NumberOfTableEntries uint64
	ConfigurationTable   uint64
}

// bootServicesTable is EFI_BOOT_SERVICES.
type bootServicesTable struct {
	Hdr                                 tableHeader
	RaiseTPL                            uint64
	RestoreTPL                          uint64
	AllocatePages                       uint64
	FreePages                           uint64
	GetMemoryMap                        uint64
	AllocatePool                        uint64
	FreePool                            uint64
	CreateEvent                         uint64
	SetTimer                            uint64
	WaitForEvent                        uint64
	SignalEvent                         uint64
	CloseEvent                          uint64
	CheckEvent                          uint64
	InstallProtocolInterface            uint64
	ReinstallProtocolInterface          uint64
	UninstallProtocolInterface          uint64
	HandleProtocol                      uint64
	_                                   uint64
	RegisterProtocolNotify              uint64
	LocateHandle                        uint64
	LocateDevicePath                    uint64
	InstallConfigurationTable           uint64
	LoadImage                           uint64
	StartImage                          uint64
	Exit                                uint64
	UnloadImage                         uint64
	ExitBootServices                    uint64
	GetNextMonotonicCount               uint64
	Stall                               uint64
	SetWatchdogTimer                    uint64
	ConnectController                   uint64
	DisconnectController                uint64
	OpenProtocol                        uint64
	CloseProtocol                       uint64
	OpenProtocolInformation             uint64
	ProtocolsPerHandle                  uint64
	LocateHandleBuffer                  uint64
	LocateProtocol                      uint64
	InstallMultipleProtocolInterfaces   uint64
	UninstallMultipleProtocolInterfaces uint64
	CalculateCrc32                      uint64
	CopyMem                             uint64
	SetMem                              uint64
	CreateEventEx                       uint64
}

// simpleTextOutputProtocol is EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL.
type simpleTextOutputProtocol struct {
	Reset             uint64
	OutputString      uint64
	TestString        uint64
	QueryMode         uint64
	SetMode           uint64
	SetAttribute      uint64
	ClearScreen       uint64
	SetCursorPosition uint64
	EnableCursor      uint64
	Mode              uint64
}

// loadedImageProtocol is EFI_LOADED_IMAGE_PROTOCOL.
type loadedImageProtocol struct {
	Revision        uint32
	_               uint32
	ParentHandle    uint64
	SystemTable     uint64
	DeviceHandle    uint64
	FilePath        uint64
	_               uint64
	LoadOptionsSize uint32
	_               uint32
	LoadOptions     uint64
	ImageBase       uint64
	ImageSize       uint64
	ImageCodeType   MemoryType
	ImageDataType   MemoryType
	Unload          uint64
}

// simpleFileSystemProtocol is EFI_SIMPLE_FILE_SYSTEM_PROTOCOL.
type simpleFileSystemProtocol struct {
	Revision   uint64
	OpenVolume uint64
}

// fileProtocol is EFI_FILE_PROTOCOL (revision 1 members).
type fileProtocol struct {
	Revision    uint64
	Open        uint64
	Close       uint64
	Delete      uint64
	Read        uint64
	Write       uint64
	GetPosition uint64
	SetPosition uint64
	GetInfo     uint64
	SetInfo     uint64
	Flush       uint64
}

// graphicsOutputProtocol is EFI_GRAPHICS_OUTPUT_PROTOCOL.
type graphicsOutputProtocol struct {
	QueryMode uint64
	SetMode   uint64
	Blt       uint64
	Mode      uint64
}

// graphicsOutputProtocolMode is EFI_GRAPHICS_OUTPUT_PROTOCOL_MODE.
type graphicsOutputProtocolMode struct {
	MaxMode         uint32
	Mode            uint32
	Info            uint64
	SizeOfInfo      uint64
	FrameBufferBase uint64
	FrameBufferSize uint64
}

// graphicsOutputModeInformation is EFI_GRAPHICS_OUTPUT_MODE_INFORMATION.
type graphicsOutputModeInformation struct {
	Version              uint32
	HorizontalResolution uint32
	VerticalResolution   uint32
	PixelFormat          PixelFormat
	RedMask              uint32
	GreenMask            uint32
	BlueMask             uint32
	ReservedMask         uint32
	PixelsPerScanLine    uint32
}

// system table
var (
	_ = [1]struct{}{}[unsafe.Offsetof(systemTable{}.ConOut)-64]
	_ = [1]struct{}{}[unsafe.Offsetof(systemTable{}.BootServices)-96]
	_ = [1]struct{}{}[unsafe.Sizeof(systemTable{})-120]
)

// boot services
var (
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.AllocatePages)-40]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.FreePages)-48]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.GetMemoryMap)-56]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.AllocatePool)-64]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.FreePool)-72]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.LoadImage)-200]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.StartImage)-208]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.Exit)-216]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.ExitBootServices)-232]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.OpenProtocol)-280]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.LocateHandleBuffer)-312]
	_ = [1]struct{}{}[unsafe.Offsetof(bootServicesTable{}.LocateProtocol)-320]
	_ = [1]struct{}{}[unsafe.Sizeof(bootServicesTable{})-376]
)

// protocols
var (
	_ = [1]struct{}{}[unsafe.Offsetof(simpleTextOutputProtocol{}.OutputString)-8]
	_ = [1]struct{}{}[unsafe.Offsetof(simpleTextOutputProtocol{}.ClearScreen)-48]
	_ = [1]struct{}{}[unsafe.Offsetof(loadedImageProtocol{}.DeviceHandle)-24]
	_ = [1]struct{}{}[unsafe.Offsetof(loadedImageProtocol{}.ImageBase)-64]
	_ = [1]struct{}{}[unsafe.Offsetof(simpleFileSystemProtocol{}.OpenVolume)-8]
	_ = [1]struct{}{}[unsafe.Offsetof(fileProtocol{}.Open)-8]
	_ = [1]struct{}{}[unsafe.Offsetof(fileProtocol{}.Close)-16]
	_ = [1]struct{}{}[unsafe.Offsetof(fileProtocol{}.Read)-32]
	_ = [1]struct{}{}[unsafe.Offsetof(fileProtocol{}.Write)-40]
	_ = [1]struct{}{}[unsafe.Offsetof(fileProtocol{}.GetInfo)-64]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputProtocol{}.Mode)-24]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputProtocolMode{}.Info)-8]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputProtocolMode{}.SizeOfInfo)-16]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputProtocolMode{}.FrameBufferBase)-24]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputProtocolMode{}.FrameBufferSize)-32]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputModeInformation{}.HorizontalResolution)-4]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputModeInformation{}.VerticalResolution)-8]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputModeInformation{}.PixelFormat)-12]
	_ = [1]struct{}{}[unsafe.Offsetof(graphicsOutputModeInformation{}.PixelsPerScanLine)-32]
)

// memory descriptor
var (
	_ = [1]struct{}{}[unsafe.Offsetof(MemoryDescriptor{}.PhysicalStart)-8]
	_ = [1]struct{}{}[unsafe.Offsetof(MemoryDescriptor{}.NumberOfPages)-24]
	_ = [1]struct{}{}[unsafe.Sizeof(MemoryDescriptor{})-MemoryDescriptorSize]
	_ = [1]struct{}{}[unsafe.Sizeof(fileInfoHeader{})-FileInfoSize]
	_ = [1]struct{}{}[unsafe.Sizeof(Time{})-16]
)
