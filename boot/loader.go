// Package boot implements the loader stage: it finds the firmware
// protocols, reads the kernel from the boot volume, maps its segments,
// exits boot services and jumps to the kernel entry point.
package boot

import (
	"fmt"

	"github.com/apex/log"
	"github.com/apex/log/handlers/multi"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"mazefi/bootinfo"
	"mazefi/diag"
	"mazefi/elfload"
	"mazefi/memmap"
	"mazefi/uefi"
)

// Option configures a Loader.
type Option func(*Loader)

// WithHandler adds a log handler next to the firmware console, it keeps
// receiving entries after the console is detached.
func WithHandler(h log.Handler) Option {
	return func(l *Loader) {
		l.handlers = append(l.handlers, h)
	}
}

// Handoff is everything the loader hands to the kernel.
type Handoff struct {
	Image       *elfload.Image
	Mode        uefi.GraphicsMode
	FrameBuffer bootinfo.FrameBuffer
	// KernelSize is the kernel file size in bytes.
	KernelSize uint64
}

// Loader runs the boot sequence.
type Loader struct {
	sys uefi.System
	bs  uefi.BootServices
	cpu CPU
	cfg Config

	console  *diag.Handler
	handlers []log.Handler
	log      *log.Logger

	locator *Locator
	snap    *memmap.Snapshot
	term    *Terminator

	fault error
}

// New returns a loader for the firmware sys running on cpu.
func New(sys uefi.System, cpu CPU, cfg Config, opts ...Option) *Loader {
	l := &Loader{
		sys:     sys,
		bs:      sys.BootServices(),
		cpu:     cpu,
		cfg:     cfg,
		console: diag.New(sys.ConsoleOut()),
	}

	for _, opt := range opts {
		opt(l)
	}

	var h log.Handler = l.console

	if len(l.handlers) > 0 {
		h = multi.New(append([]log.Handler{l.console}, l.handlers...)...)
	}

	l.log = &log.Logger{Handler: h, Level: cfg.Level}
	l.locator = NewLocator(sys, l.log)

	size := cfg.MapBufferSize

	if size <= 0 {
		size = memmap.BufferSize
	}

	l.snap = memmap.NewWithBuffer(make([]byte, size))
	l.term = NewTerminator(l.bs, sys.ImageHandle(), l.snap)

	return l
}

// Logger returns the loader logger.
func (l *Loader) Logger() log.Interface {
	return l.log
}

// Snapshot returns the memory map snapshot.
func (l *Loader) Snapshot() *memmap.Snapshot {
	return l.snap
}

// Terminator returns the boot services terminator.
func (l *Loader) Terminator() *Terminator {
	return l.term
}

// Fault returns the error that halted the boot, if any.
func (l *Loader) Fault() error {
	return l.fault
}

// Boot runs the whole sequence and transfers control to the kernel. It
// does not return: failures are logged and halt the CPU.
func (l *Loader) Boot() {
	h, err := l.Prepare()

	if err != nil {
		l.fail(err)
	}

	l.log.WithFields(log.Fields{
		"entry":       fmt.Sprintf("%#x", h.Image.Entry),
		"framebuffer": h.FrameBuffer.String(),
	}).Info("exiting boot services")

	// no allocation and no logging past this point
	if err = l.snap.Refresh(l.bs); err != nil {
		l.fail(errors.Wrap(err, "final memory map"))
	}

	l.console.Detach()

	if err = l.term.Terminate(); err != nil {
		l.fault = err
		l.log.WithError(err).Error("boot failed")
		halt(l.cpu)
	}

	Transfer(l.cpu, h.Image.Entry, h.FrameBuffer)
}

func (l *Loader) fail(err error) {
	l.fault = err
	l.log.WithError(err).Error("boot failed")
	halt(l.cpu)
}

// Prepare runs the sequence up to, not including, the exit from boot
// services: graphics mode, memory map, kernel file and its segments.
func (l *Loader) Prepare() (h *Handoff, err error) {
	if err = l.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config")
	}

	h = &Handoff{}

	if h.Mode, err = l.graphicsMode(); err != nil {
		return nil, err
	}

	h.FrameBuffer = bootinfo.FromMode(h.Mode)

	if err = l.snap.Refresh(l.bs); err != nil {
		return nil, errors.Wrap(err, "memory map")
	}

	l.log.WithField("key", l.snap.Key).Infof("memory map: %v", l.snap.Summary())

	fs, err := l.locator.FileSystem()

	if err != nil {
		return nil, err
	}

	root, err := OpenRoot(fs)

	if err != nil {
		return nil, err
	}

	defer func() {
		if cerr := root.Close(); cerr != nil {
			l.log.WithError(cerr).Warn("cannot close volume")
		}
	}()

	if l.cfg.MemoryMapPath != "" {
		if err := l.dumpMemoryMap(root); err != nil {
			l.log.WithError(err).Warn("memory map dump skipped")
		}
	}

	kernel, err := l.readKernel(root)

	if err != nil {
		return nil, err
	}

	defer func() {
		if ferr := l.bs.FreePool(kernel.address); ferr != nil {
			l.log.WithError(ferr).Warn("cannot release kernel file buffer")
		}
	}()

	h.KernelSize = uint64(len(kernel.data))

	if h.Image, err = elfload.Load(l.bs, l.sys.Memory(), kernel.data); err != nil {
		return nil, errors.Wrap(err, "load kernel")
	}

	for _, s := range h.Image.Segments {
		l.log.WithFields(log.Fields{
			"address": fmt.Sprintf("%#x", s.Address),
			"pages":   s.Pages,
			"type":    s.MemoryType,
		}).Debugf("segment %d", s.Index)
	}

	l.log.WithFields(log.Fields{
		"entry":    fmt.Sprintf("%#x", h.Image.Entry),
		"segments": len(h.Image.Segments),
	}).Info("kernel loaded")

	return h, nil
}

func (l *Loader) graphicsMode() (mode uefi.GraphicsMode, err error) {
	gop, err := l.locator.GraphicsOutput()

	if err != nil {
		return
	}

	if mode, err = gop.Mode(); err != nil {
		return mode, uefi.Fail(uefi.ErrProtocolUnavailable, "query graphics mode", err)
	}

	l.log.WithFields(log.Fields{
		"format":      mode.PixelFormat,
		"stride":      mode.PixelsPerScanLine,
		"framebuffer": fmt.Sprintf("%#x", mode.FrameBufferBase),
		"size":        humanize.IBytes(mode.FrameBufferSize),
	}).Infof("graphics %dx%d", mode.HorizontalResolution, mode.VerticalResolution)

	return
}

func (l *Loader) dumpMemoryMap(root *File) (err error) {
	f, err := root.Open(l.cfg.MemoryMapPath, uefi.FileModeRead|uefi.FileModeWrite|uefi.FileModeCreate)

	if err != nil {
		return
	}

	// an earlier dump may be longer
	var n int64

	if err = f.Truncate(0); err == nil {
		n, err = l.snap.WriteTo(f)
	}

	if cerr := f.Close(); cerr != nil {
		err = multierror.Append(err, cerr)
	}

	if err == nil {
		l.log.WithField("size", humanize.IBytes(uint64(n))).Infof("memory map written to %s", f.Name())
	}

	return
}

// poolBuffer is pool memory holding a file.
type poolBuffer struct {
	address uint64
	data    []byte
}

func (l *Loader) readKernel(root *File) (buf poolBuffer, err error) {
	f, err := root.Open(l.cfg.KernelPath, uefi.FileModeRead)

	if err != nil {
		return
	}

	defer func() {
		if cerr := f.Close(); cerr != nil {
			l.log.WithError(cerr).Warnf("cannot close %s", f.Name())
		}
	}()

	size, err := f.Stat()

	if err != nil {
		return
	}

	if size == 0 {
		return buf, uefi.Fail(uefi.ErrMalformedImage, "read "+f.Name(), errors.New("empty file"))
	}

	if buf.address, err = l.bs.AllocatePool(uefi.LoaderData, size); err != nil {
		return buf, uefi.Fail(uefi.ErrAllocationFailed, fmt.Sprintf("allocate %d bytes of pool", size), err)
	}

	if buf.data, err = l.sys.Memory().Slice(buf.address, size); err == nil {
		err = f.ReadFull(buf.data)
	}

	if err != nil {
		if ferr := l.bs.FreePool(buf.address); ferr != nil {
			err = multierror.Append(err, ferr)
		}

		return poolBuffer{}, errors.Wrapf(err, "read %s", f.Name())
	}

	l.log.WithField("size", humanize.IBytes(size)).Infof("read %s", f.Name())

	return
}
