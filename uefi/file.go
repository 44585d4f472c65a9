package uefi

import (
	"bytes"
	"encoding/binary"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// FileMode is the EFI_FILE_PROTOCOL.Open() open mode bitmask.
type FileMode uint64

const (
	FileModeRead   FileMode = 0x0000000000000001
	FileModeWrite  FileMode = 0x0000000000000002
	FileModeCreate FileMode = 0x8000000000000000
)

// EFI_FILE_* attribute bits.
const (
	FileReadOnly  = 0x01
	FileHidden    = 0x02
	FileSystem    = 0x04
	FileReserved  = 0x08
	FileDirectory = 0x10
	FileArchive   = 0x20
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeString converts s to UTF-16LE code units without a terminator.
func EncodeString(s string) ([]uint16, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(s))

	if err != nil {
		return nil, err
	}

	units := make([]uint16, len(b)/2)

	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}

	return units, nil
}

// EncodeName converts a path to the NUL-terminated CHAR16 buffer expected
// by EFI_FILE_PROTOCOL.Open().
func EncodeName(name string) ([]uint16, error) {
	units, err := EncodeString(name)

	if err != nil {
		return nil, err
	}

	return append(units, 0), nil
}

// DecodeName converts CHAR16 code units up to the first NUL back to a
// string.
func DecodeName(units []uint16) string {
	b := make([]byte, 0, 2*len(units))

	for _, u := range units {
		if u == 0 {
			break
		}

		b = binary.LittleEndian.AppendUint16(b, u)
	}

	s, err := utf16le.NewDecoder().Bytes(b)

	if err != nil {
		return ""
	}

	return string(s)
}

// Time is EFI_TIME.
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	_          uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	_          uint8
}

// TimeOf converts t to EFI_TIME in UTC.
func TimeOf(t time.Time) Time {
	t = t.UTC()

	return Time{
		Year:       uint16(t.Year()),
		Month:      uint8(t.Month()),
		Day:        uint8(t.Day()),
		Hour:       uint8(t.Hour()),
		Minute:     uint8(t.Minute()),
		Second:     uint8(t.Second()),
		Nanosecond: uint32(t.Nanosecond()),
	}
}

// fileInfoHeader is the fixed part of EFI_FILE_INFO; FileName follows.
type fileInfoHeader struct {
	Size             uint64
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	Attribute        uint64
}

// FileInfoSize is the size of EFI_FILE_INFO without its file name.
const FileInfoSize = 80

// FileInfo is a decoded EFI_FILE_INFO.
type FileInfo struct {
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	Attribute        uint64
	FileName         string
}

// ParseFileInfo decodes an EFI_FILE_INFO buffer as filled by GetInfo().
func ParseFileInfo(buf []byte) (info FileInfo, err error) {
	var h fileInfoHeader

	if err = binary.Read(bytes.NewReader(buf), binary.LittleEndian, &h); err != nil {
		return
	}

	end := uint64(len(buf))

	if h.Size >= FileInfoSize && h.Size < end {
		end = h.Size
	}

	name := make([]uint16, (end-FileInfoSize)/2)

	for i := range name {
		name[i] = binary.LittleEndian.Uint16(buf[FileInfoSize+2*i:])
	}

	return FileInfo{
		FileSize:         h.FileSize,
		PhysicalSize:     h.PhysicalSize,
		CreateTime:       h.CreateTime,
		LastAccessTime:   h.LastAccessTime,
		ModificationTime: h.ModificationTime,
		Attribute:        h.Attribute,
		FileName:         DecodeName(name),
	}, nil
}

// MarshalBinary encodes info as EFI_FILE_INFO, with a NUL-terminated name.
func (info *FileInfo) MarshalBinary() ([]byte, error) {
	name, err := EncodeName(info.FileName)

	if err != nil {
		return nil, err
	}

	h := fileInfoHeader{
		Size:             uint64(FileInfoSize + 2*len(name)),
		FileSize:         info.FileSize,
		PhysicalSize:     info.PhysicalSize,
		CreateTime:       info.CreateTime,
		LastAccessTime:   info.LastAccessTime,
		ModificationTime: info.ModificationTime,
		Attribute:        info.Attribute,
	}

	buf := new(bytes.Buffer)

	if err = binary.Write(buf, binary.LittleEndian, &h); err != nil {
		return nil, err
	}

	if err = binary.Write(buf, binary.LittleEndian, name); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
