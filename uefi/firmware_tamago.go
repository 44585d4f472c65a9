//go:build tamago && amd64

package uefi

import (
	"unsafe"
)

// defined in call_amd64.s
//
// callService calls the EFI service at fn with up to six arguments
// following the Microsoft x64 calling convention and returns RAX.
func callService(fn uint64, args []uint64) uint64

func ptrval[T any](p *T) uint64 {
	return uint64(uintptr(unsafe.Pointer(p)))
}

func at[T any](addr uint64) *T {
	return (*T)(unsafe.Pointer(uintptr(addr)))
}

func call(fn uint64, args ...uint64) error {
	return Status(callService(fn, args)).Err()
}

// Firmware is the System of a running EFI application, built from the
// image handle and system table address passed to its entry point.
type Firmware struct {
	image Handle
	st    *systemTable
	bs    *bootServices
	out   *textOutput
}

// NewFirmware wraps the EFI_SYSTEM_TABLE at systemTableAddress.
func NewFirmware(imageHandle uint64, systemTableAddress uint64) *Firmware {
	st := at[systemTable](systemTableAddress)

	return &Firmware{
		image: Handle(imageHandle),
		st:    st,
		bs:    &bootServices{t: at[bootServicesTable](st.BootServices)},
		out:   &textOutput{addr: st.ConOut, p: at[simpleTextOutputProtocol](st.ConOut)},
	}
}

func (fw *Firmware) ImageHandle() Handle          { return fw.image }
func (fw *Firmware) BootServices() BootServices   { return fw.bs }
func (fw *Firmware) ConsoleOut() SimpleTextOutput { return fw.out }
func (fw *Firmware) Memory() Memory               { return physicalMemory{} }

// physicalMemory is identity mapped.
type physicalMemory struct{}

func (physicalMemory) Slice(address uint64, size uint64) ([]byte, error) {
	if address == 0 || size == 0 {
		return nil, InvalidParameter
	}

	return unsafe.Slice(at[byte](address), size), nil
}

type bootServices struct {
	t *bootServicesTable
}

func (s *bootServices) AllocatePages(allocType AllocateType, memType MemoryType, pages uint64, address uint64) (uint64, error) {
	err := call(s.t.AllocatePages,
		uint64(allocType),
		uint64(memType),
		pages,
		ptrval(&address),
	)

	return address, err
}

func (s *bootServices) FreePages(address uint64, pages uint64) error {
	return call(s.t.FreePages, address, pages)
}

func (s *bootServices) AllocatePool(memType MemoryType, size uint64) (address uint64, err error) {
	err = call(s.t.AllocatePool,
		uint64(memType),
		size,
		ptrval(&address),
	)

	return
}

func (s *bootServices) FreePool(address uint64) error {
	return call(s.t.FreePool, address)
}

func (s *bootServices) GetMemoryMap(buf []byte) (info MemoryMapInfo, err error) {
	var base uint64

	if len(buf) > 0 {
		base = ptrval(&buf[0])
	}

	info.Size = uint64(len(buf))

	err = call(s.t.GetMemoryMap,
		ptrval(&info.Size),
		base,
		ptrval(&info.Key),
		ptrval(&info.DescriptorSize),
		ptrval(&info.DescriptorVersion),
	)

	return
}

func (s *bootServices) ExitBootServices(image Handle, mapKey uint64) error {
	return call(s.t.ExitBootServices, uint64(image), mapKey)
}

func (s *bootServices) OpenProtocol(handle Handle, protocol GUID, agent Handle, attributes uint32) (any, error) {
	var addr uint64

	err := call(s.t.OpenProtocol,
		uint64(handle),
		ptrval(&protocol),
		ptrval(&addr),
		uint64(agent),
		0,
		uint64(attributes),
	)

	if err != nil {
		return nil, err
	}

	return wrapProtocol(protocol, addr), nil
}

func (s *bootServices) LocateHandleBuffer(search LocateSearchType, protocol GUID) (hb HandleBuffer, err error) {
	var count uint64

	err = call(s.t.LocateHandleBuffer,
		uint64(search),
		ptrval(&protocol),
		0,
		ptrval(&count),
		ptrval(&hb.Address),
	)

	if err != nil {
		return
	}

	if count > 0 {
		hb.Handles = append([]Handle(nil), unsafe.Slice(at[Handle](hb.Address), count)...)
	}

	return
}

func (s *bootServices) LocateProtocol(protocol GUID) (any, error) {
	var addr uint64

	err := call(s.t.LocateProtocol,
		ptrval(&protocol),
		0,
		ptrval(&addr),
	)

	if err != nil {
		return nil, err
	}

	return wrapProtocol(protocol, addr), nil
}

func wrapProtocol(protocol GUID, addr uint64) any {
	switch protocol {
	case LoadedImageProtocolGUID:
		return &loadedImage{p: at[loadedImageProtocol](addr)}
	case SimpleFileSystemProtocolGUID:
		return &simpleFileSystem{addr: addr, p: at[simpleFileSystemProtocol](addr)}
	case GraphicsOutputProtocolGUID:
		return &graphicsOutput{p: at[graphicsOutputProtocol](addr)}
	case SimpleTextOutputProtocolGUID:
		return &textOutput{addr: addr, p: at[simpleTextOutputProtocol](addr)}
	}

	return addr
}

type textOutput struct {
	addr uint64
	p    *simpleTextOutputProtocol
}

func (o *textOutput) OutputString(s []uint16) error {
	if len(s) == 0 {
		return nil
	}

	return call(o.p.OutputString, o.addr, ptrval(&s[0]))
}

func (o *textOutput) ClearScreen() error {
	return call(o.p.ClearScreen, o.addr)
}

type loadedImage struct {
	p *loadedImageProtocol
}

func (li *loadedImage) DeviceHandle() Handle {
	return Handle(li.p.DeviceHandle)
}

type graphicsOutput struct {
	p *graphicsOutputProtocol
}

func (g *graphicsOutput) Mode() (GraphicsMode, error) {
	if g.p.Mode == 0 {
		return GraphicsMode{}, NotReady
	}

	mode := at[graphicsOutputProtocolMode](g.p.Mode)

	if mode.Info == 0 {
		return GraphicsMode{}, NotReady
	}

	info := at[graphicsOutputModeInformation](mode.Info)

	return GraphicsMode{
		MaxMode:              mode.MaxMode,
		Mode:                 mode.Mode,
		HorizontalResolution: info.HorizontalResolution,
		VerticalResolution:   info.VerticalResolution,
		PixelFormat:          info.PixelFormat,
		PixelsPerScanLine:    info.PixelsPerScanLine,
		FrameBufferBase:      mode.FrameBufferBase,
		FrameBufferSize:      mode.FrameBufferSize,
	}, nil
}

type simpleFileSystem struct {
	addr uint64
	p    *simpleFileSystemProtocol
}

func (fs *simpleFileSystem) OpenVolume() (File, error) {
	var root uint64

	if err := call(fs.p.OpenVolume, fs.addr, ptrval(&root)); err != nil {
		return nil, err
	}

	return &file{addr: root, p: at[fileProtocol](root)}, nil
}

type file struct {
	addr uint64
	p    *fileProtocol
}

func (f *file) Open(name []uint16, mode FileMode, attributes uint64) (File, error) {
	var h uint64

	if len(name) == 0 {
		return nil, InvalidParameter
	}

	err := call(f.p.Open,
		f.addr,
		ptrval(&h),
		ptrval(&name[0]),
		uint64(mode),
		attributes,
	)

	if err != nil {
		return nil, err
	}

	return &file{addr: h, p: at[fileProtocol](h)}, nil
}

func (f *file) Close() error {
	return call(f.p.Close, f.addr)
}

func (f *file) transfer(fn uint64, buf []byte) (int, error) {
	size := uint64(len(buf))

	if size == 0 {
		return 0, nil
	}

	err := call(fn, f.addr, ptrval(&size), ptrval(&buf[0]))

	return int(size), err
}

func (f *file) Read(buf []byte) (int, error) {
	return f.transfer(f.p.Read, buf)
}

func (f *file) Write(buf []byte) (int, error) {
	return f.transfer(f.p.Write, buf)
}

func (f *file) GetInfo(infoType GUID, buf []byte) (int, error) {
	var base uint64

	size := uint64(len(buf))

	if size > 0 {
		base = ptrval(&buf[0])
	}

	err := call(f.p.GetInfo, f.addr, ptrval(&infoType), ptrval(&size), base)

	return int(size), err
}

func (f *file) SetInfo(infoType GUID, buf []byte) error {
	if len(buf) == 0 {
		return BadBufferSize
	}

	return call(f.p.SetInfo, f.addr, ptrval(&infoType), uint64(len(buf)), ptrval(&buf[0]))
}
