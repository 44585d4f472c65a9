package sim

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"mazefi/uefi"
)

// volume is EFI_SIMPLE_FILE_SYSTEM_PROTOCOL over an afero file system.
// EFI paths use backslashes and are case sensitive here.
type volume struct {
	m    *Machine
	fs   afero.Fs
	open int
}

func (v *volume) OpenVolume() (uefi.File, error) {
	if err := v.m.protocolCall("OpenVolume"); err != nil {
		return nil, err
	}

	return v.openFile("/", os.O_RDONLY, uefi.FileModeRead)
}

func statusOf(err error) uefi.Status {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return uefi.NotFound
	case errors.Is(err, fs.ErrPermission):
		return uefi.WriteProtected
	}

	return uefi.DeviceError
}

func (v *volume) openFile(name string, flag int, mode uefi.FileMode) (*file, error) {
	f, err := v.fs.OpenFile(name, flag, 0o644)

	if err != nil {
		return nil, statusOf(err)
	}

	v.open++

	return &file{v: v, f: f, path: name, mode: mode}, nil
}

// file is EFI_FILE_PROTOCOL.
type file struct {
	v      *volume
	f      afero.File
	path   string
	mode   uefi.FileMode
	closed bool
}

// resolve joins an EFI path to the directory of f.
func (f *file) resolve(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")

	if strings.HasPrefix(name, "/") {
		return path.Clean(name)
	}

	dir := f.path

	if info, err := f.f.Stat(); err == nil && !info.IsDir() {
		dir = path.Dir(f.path)
	}

	return path.Join(dir, name)
}

func (f *file) Open(name []uint16, mode uefi.FileMode, attributes uint64) (uefi.File, error) {
	if err := f.v.m.protocolCall("File.Open"); err != nil {
		return nil, err
	}

	if f.closed || len(name) == 0 || name[len(name)-1] != 0 {
		return nil, uefi.InvalidParameter
	}

	var flag int

	switch mode {
	case uefi.FileModeRead:
		flag = os.O_RDONLY
	case uefi.FileModeRead | uefi.FileModeWrite:
		flag = os.O_RDWR
	case uefi.FileModeRead | uefi.FileModeWrite | uefi.FileModeCreate:
		flag = os.O_RDWR | os.O_CREATE
	default:
		return nil, uefi.InvalidParameter
	}

	p := f.resolve(uefi.DecodeName(name))

	if mode&uefi.FileModeCreate != 0 && attributes&uefi.FileDirectory != 0 {
		if err := f.v.fs.MkdirAll(p, 0o755); err != nil {
			return nil, statusOf(err)
		}

		flag = os.O_RDONLY
	}

	if info, err := f.v.fs.Stat(p); err == nil && info.IsDir() {
		flag = os.O_RDONLY
	}

	return f.v.openFile(p, flag, mode)
}

func (f *file) Close() error {
	if err := f.v.m.protocolCall("File.Close"); err != nil {
		return err
	}

	if f.closed {
		f.v.m.violations = append(f.v.m.violations, "File.Close of closed "+f.path)
		return uefi.InvalidParameter
	}

	f.closed = true
	f.v.open--

	if err := f.f.Close(); err != nil {
		return uefi.DeviceError
	}

	return nil
}

func (f *file) isDir() bool {
	info, err := f.f.Stat()
	return err == nil && info.IsDir()
}

func (f *file) Read(buf []byte) (int, error) {
	if err := f.v.m.protocolCall("File.Read"); err != nil {
		return 0, err
	}

	if f.closed {
		return 0, uefi.InvalidParameter
	}

	if f.isDir() {
		return 0, uefi.Unsupported
	}

	n, err := f.f.Read(buf)

	if err != nil && err != io.EOF {
		return n, uefi.DeviceError
	}

	return n, nil
}

func (f *file) Write(buf []byte) (int, error) {
	if err := f.v.m.protocolCall("File.Write"); err != nil {
		return 0, err
	}

	switch {
	case f.closed:
		return 0, uefi.InvalidParameter
	case f.isDir():
		return 0, uefi.Unsupported
	case f.mode&uefi.FileModeWrite == 0:
		return 0, uefi.AccessDenied
	}

	n, err := f.f.Write(buf)

	if err != nil {
		return n, statusOf(err)
	}

	return n, nil
}

// SetInfo only supports changing the file size.
func (f *file) SetInfo(infoType uefi.GUID, buf []byte) error {
	if err := f.v.m.protocolCall("File.SetInfo"); err != nil {
		return err
	}

	switch {
	case f.closed:
		return uefi.InvalidParameter
	case infoType != uefi.FileInfoGUID:
		return uefi.Unsupported
	case f.mode&uefi.FileModeWrite == 0:
		return uefi.AccessDenied
	}

	info, err := uefi.ParseFileInfo(buf)

	if err != nil {
		return uefi.BadBufferSize
	}

	fi, err := f.f.Stat()

	if err != nil {
		return uefi.DeviceError
	}

	if fi.IsDir() {
		if info.FileSize != 0 {
			return uefi.AccessDenied
		}

		return nil
	}

	if info.FileSize != uint64(fi.Size()) {
		if err := f.f.Truncate(int64(info.FileSize)); err != nil {
			return statusOf(err)
		}
	}

	return nil
}

func (f *file) GetInfo(infoType uefi.GUID, buf []byte) (int, error) {
	if err := f.v.m.protocolCall("File.GetInfo"); err != nil {
		return 0, err
	}

	if infoType != uefi.FileInfoGUID {
		return 0, uefi.Unsupported
	}

	fi, err := f.f.Stat()

	if err != nil {
		return 0, uefi.DeviceError
	}

	info := uefi.FileInfo{
		FileSize:         uint64(fi.Size()),
		PhysicalSize:     uefi.Pages(uint64(fi.Size())) * uefi.PageSize,
		CreateTime:       uefi.TimeOf(fi.ModTime()),
		LastAccessTime:   uefi.TimeOf(fi.ModTime()),
		ModificationTime: uefi.TimeOf(fi.ModTime()),
		FileName:         path.Base(f.path),
	}

	if f.path == "/" {
		info.FileName = ""
	}

	if fi.IsDir() {
		info.FileSize = 0
		info.PhysicalSize = 0
		info.Attribute = uefi.FileDirectory
	}

	b, err := info.MarshalBinary()

	if err != nil {
		return 0, uefi.DeviceError
	}

	if len(buf) < len(b) {
		return len(b), uefi.BufferTooSmall
	}

	return copy(buf, b), nil
}
