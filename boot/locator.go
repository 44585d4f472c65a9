package boot

import (
	"fmt"

	"github.com/apex/log"

	"mazefi/uefi"
)

// Locator opens the firmware protocols needed by the loader.
type Locator struct {
	sys uefi.System
	log log.Interface
}

// NewLocator returns a locator for sys, logging to l.
func NewLocator(sys uefi.System, l log.Interface) *Locator {
	return &Locator{sys: sys, log: l}
}

// openProtocol opens protocol on handle on behalf of the loader image.
func openProtocol[T any](sys uefi.System, handle uefi.Handle, protocol uefi.GUID, name string) (p T, err error) {
	op := fmt.Sprintf("open %s on handle %#x", name, uint64(handle))

	v, err := sys.BootServices().OpenProtocol(handle, protocol, sys.ImageHandle(), uefi.OpenProtocolByHandleProtocol)

	if err != nil {
		return p, uefi.Fail(uefi.ErrProtocolUnavailable, op, err)
	}

	p, ok := v.(T)

	if !ok {
		return p, uefi.Fail(uefi.ErrProtocolUnavailable, op, uefi.Unsupported)
	}

	return p, nil
}

// LoadedImage returns the loaded image protocol of the running loader.
func (l *Locator) LoadedImage() (uefi.LoadedImage, error) {
	return openProtocol[uefi.LoadedImage](l.sys, l.sys.ImageHandle(), uefi.LoadedImageProtocolGUID, "loaded image")
}

// FileSystem returns the simple file system of the device the loader was
// loaded from.
func (l *Locator) FileSystem() (uefi.SimpleFileSystem, error) {
	img, err := l.LoadedImage()

	if err != nil {
		return nil, err
	}

	return openProtocol[uefi.SimpleFileSystem](l.sys, img.DeviceHandle(), uefi.SimpleFileSystemProtocolGUID, "simple file system")
}

// GraphicsOutput returns the graphics output protocol of the first handle
// supporting it.
func (l *Locator) GraphicsOutput() (uefi.GraphicsOutput, error) {
	bs := l.sys.BootServices()

	hb, err := bs.LocateHandleBuffer(uefi.ByProtocol, uefi.GraphicsOutputProtocolGUID)

	if err != nil {
		return nil, uefi.Fail(uefi.ErrProtocolUnavailable, "locate graphics output handles", err)
	}

	defer func() {
		if err := bs.FreePool(hb.Address); err != nil {
			l.log.WithError(err).Warn("cannot release handle buffer")
		}
	}()

	if len(hb.Handles) == 0 {
		return nil, uefi.Fail(uefi.ErrProtocolUnavailable, "locate graphics output handles", uefi.NotFound)
	}

	return openProtocol[uefi.GraphicsOutput](l.sys, hb.Handles[0], uefi.GraphicsOutputProtocolGUID, "graphics output")
}

// Console returns the system table console output.
func (l *Locator) Console() uefi.SimpleTextOutput {
	return l.sys.ConsoleOut()
}
