package uefi

import (
	"errors"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	assert.NoError(t, Success.Err())
	assert.NoError(t, Status(4).Err(), "warnings are not errors")
	assert.Equal(t, "EFI_BUFFER_TOO_SMALL", BufferTooSmall.Error())
	assert.Equal(t, uint64(0x8000000000000005), uint64(BufferTooSmall))
	assert.Equal(t, "EFI_STATUS(error 0x7f)", Status(errorBit|0x7f).String())

	err := InvalidParameter.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, InvalidParameter))
}

func TestFail(t *testing.T) {
	err := Fail(ErrFileNotFound, "open \\kernel.elf", NotFound)

	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.ErrorIs(t, err, NotFound)
	assert.NotErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, NotFound, StatusOf(err))
	assert.Equal(t, "open \\kernel.elf: file not found: EFI_NOT_FOUND", err.Error())

	err = Fail(ErrMalformedImage, "segment 1", nil)
	assert.ErrorIs(t, err, ErrMalformedImage)
	assert.Equal(t, Success, StatusOf(err))
	assert.Equal(t, "segment 1: malformed image", err.Error())
}

func TestGUID(t *testing.T) {
	// EFI_LOADED_IMAGE_PROTOCOL_GUID as laid out in memory
	want := GUID{
		0xa1, 0x31, 0x1b, 0x5b, 0x62, 0x95, 0xd2, 0x11,
		0x8e, 0x3f, 0x00, 0xa0, 0xc9, 0x69, 0x72, 0x3b,
	}

	assert.Equal(t, want, LoadedImageProtocolGUID)
	assert.Equal(t, "5b1b31a1-9562-11d2-8e3f-00a0c969723b", LoadedImageProtocolGUID.String())

	_, err := ParseGUID("not-a-guid")
	assert.Error(t, err)
	assert.Panics(t, func() { MustParseGUID("xyz") })
}

func TestPages(t *testing.T) {
	for size, pages := range map[uint64]uint64{
		0:      0,
		1:      1,
		0x1000: 1,
		0x1001: 2,
		0x3000: 3,
	} {
		assert.Equal(t, pages, Pages(size), "size %#x", size)
	}
}

func TestMemoryType(t *testing.T) {
	assert.Equal(t, "EfiConventionalMemory", ConventionalMemory.String())
	assert.Equal(t, "EfiUnacceptedMemoryType", UnacceptedMemoryType.String())
	assert.Equal(t, "MemoryType(0x70000000)", MemoryType(0x70000000).String())

	assert.True(t, BootServicesData.Usable())
	assert.False(t, RuntimeServicesCode.Usable())
	assert.False(t, ACPIMemoryNVS.Usable())

	d := MemoryDescriptor{PhysicalStart: 0x100000, NumberOfPages: 16}
	assert.Equal(t, uint64(0x110000), d.PhysicalEnd())
	assert.Equal(t, uint64(0x10000), d.Size())
}

func TestLayout(t *testing.T) {
	offsets := map[string][2]uintptr{
		"st.ConOut":                  {unsafe.Offsetof(systemTable{}.ConOut), 64},
		"st.BootServices":            {unsafe.Offsetof(systemTable{}.BootServices), 96},
		"bs.AllocatePages":           {unsafe.Offsetof(bootServicesTable{}.AllocatePages), 40},
		"bs.GetMemoryMap":            {unsafe.Offsetof(bootServicesTable{}.GetMemoryMap), 56},
		"bs.ExitBootServices":        {unsafe.Offsetof(bootServicesTable{}.ExitBootServices), 232},
		"bs.LocateProtocol":          {unsafe.Offsetof(bootServicesTable{}.LocateProtocol), 320},
		"file.GetInfo":               {unsafe.Offsetof(fileProtocol{}.GetInfo), 64},
		"gop.Mode":                   {unsafe.Offsetof(graphicsOutputProtocol{}.Mode), 24},
		"info.PixelsPerScanLine":     {unsafe.Offsetof(graphicsOutputModeInformation{}.PixelsPerScanLine), 32},
		"loadedImage.DeviceHandle":   {unsafe.Offsetof(loadedImageProtocol{}.DeviceHandle), 24},
		"memoryDescriptor.Attribute": {unsafe.Offsetof(MemoryDescriptor{}.Attribute), 32},
	}

	for name, o := range offsets {
		assert.Equal(t, o[1], o[0], name)
	}
}

func TestFileName(t *testing.T) {
	name, err := EncodeName(`\kernel.elf`)
	require.NoError(t, err)

	assert.Len(t, name, 12)
	assert.Equal(t, uint16('\\'), name[0])
	assert.Equal(t, uint16(0), name[11])
	assert.Equal(t, `\kernel.elf`, DecodeName(name))

	// outside the BMP
	name, err = EncodeName("k\U0001F600")
	require.NoError(t, err)
	assert.Equal(t, []uint16{'k', 0xd83d, 0xde00, 0}, name)
	assert.Equal(t, "k\U0001F600", DecodeName(name))
}

func TestFileInfo(t *testing.T) {
	mod := time.Date(2024, 5, 17, 10, 30, 0, 0, time.UTC)

	info := FileInfo{
		FileSize:         0x3000,
		PhysicalSize:     0x4000,
		ModificationTime: TimeOf(mod),
		Attribute:        FileArchive,
		FileName:         "kernel.elf",
	}

	buf, err := info.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, FileInfoSize+2*11)

	got, err := ParseFileInfo(buf)
	require.NoError(t, err)

	assert.Equal(t, info, got)

	// trailing slack past the reported size is ignored
	got, err = ParseFileInfo(append(buf, 'x', 0, 'y', 0))
	require.NoError(t, err)
	assert.Equal(t, "kernel.elf", got.FileName)

	_, err = ParseFileInfo(buf[:FileInfoSize-1])
	assert.Error(t, err)
}

type recorder struct {
	calls [][]uint16
	fail  int
}

func (r *recorder) OutputString(s []uint16) error {
	if r.fail > 0 && len(r.calls) == r.fail {
		return DeviceError
	}

	r.calls = append(r.calls, append([]uint16(nil), s...))

	return nil
}

func (r *recorder) ClearScreen() error { return nil }

func TestConsole(t *testing.T) {
	rec := &recorder{}
	c := NewConsole(rec)

	n, err := c.WriteString("a\nb")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	want := [][]uint16{{'a', 0}, {'\r', 0}, {'\n', 0}, {'b', 0}}
	assert.Equal(t, want, rec.calls)
}

func TestConsoleSurrogates(t *testing.T) {
	rec := &recorder{}

	_, err := NewConsole(rec).WriteString("\U0001F600")
	require.NoError(t, err)

	assert.Equal(t, [][]uint16{{0xd83d, 0}, {0xde00, 0}}, rec.calls)
}

func TestConsoleFailure(t *testing.T) {
	rec := &recorder{fail: 2}

	n, err := NewConsole(rec).WriteString("ab\n")
	assert.ErrorIs(t, err, DeviceError)
	assert.Equal(t, 2, n)
}
