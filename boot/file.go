package boot

import (
	"io"

	"github.com/pkg/errors"

	"mazefi/uefi"
)

// infoBufferSize fits EFI_FILE_INFO for names up to 24 characters, longer
// ones take a second GetInfo call.
const infoBufferSize = uefi.FileInfoSize + 2*24

// File is an open EFI_FILE_PROTOCOL handle.
type File struct {
	name   string
	f      uefi.File
	closed bool
}

// OpenRoot opens the root directory of fs.
func OpenRoot(fs uefi.SimpleFileSystem) (*File, error) {
	root, err := fs.OpenVolume()

	if err != nil {
		return nil, uefi.Fail(uefi.ErrVolumeOpenFailed, "open volume", err)
	}

	return &File{name: `\`, f: root}, nil
}

// Name returns the path the file was opened with.
func (f *File) Name() string {
	return f.name
}

func openKind(err error) error {
	switch uefi.StatusOf(err) {
	case uefi.AccessDenied, uefi.WriteProtected, uefi.SecurityViolation:
		return uefi.ErrAccessDenied
	}

	return uefi.ErrFileNotFound
}

// Open opens name relative to f.
func (f *File) Open(name string, mode uefi.FileMode) (*File, error) {
	op := "open " + name

	path, err := uefi.EncodeName(name)

	if err != nil {
		return nil, uefi.Fail(uefi.ErrFileNotFound, op, err)
	}

	h, err := f.f.Open(path, mode, 0)

	if err != nil {
		return nil, uefi.Fail(openKind(err), op, err)
	}

	return &File{name: name, f: h}, nil
}

// Info returns the decoded EFI_FILE_INFO.
func (f *File) Info() (info uefi.FileInfo, err error) {
	op := "get info " + f.name
	buf := make([]byte, infoBufferSize)

	n, err := f.f.GetInfo(uefi.FileInfoGUID, buf)

	if uefi.StatusOf(err) == uefi.BufferTooSmall && n > len(buf) {
		buf = make([]byte, n)
		n, err = f.f.GetInfo(uefi.FileInfoGUID, buf)
	}

	if err != nil {
		return info, uefi.Fail(uefi.ErrInfoUnavailable, op, err)
	}

	if info, err = uefi.ParseFileInfo(buf[:min(n, len(buf))]); err != nil {
		return info, uefi.Fail(uefi.ErrInfoUnavailable, op, err)
	}

	return
}

// Stat returns the file size in bytes.
func (f *File) Stat() (uint64, error) {
	info, err := f.Info()
	return info.FileSize, err
}

// Read implements io.Reader, returning io.EOF at the end of the file.
func (f *File) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := f.f.Read(buf)

	if err != nil {
		return n, errors.Wrapf(err, "read %s", f.name)
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}

// ReadFull fills buf, a file shorter than buf is io.ErrUnexpectedEOF.
func (f *File) ReadFull(buf []byte) error {
	_, err := io.ReadFull(f, buf)

	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}

	return err
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (n int, err error) {
	for n < len(p) {
		var w int

		if w, err = f.f.Write(p[n:]); err != nil {
			return n, errors.Wrapf(err, "write %s", f.name)
		}

		if w == 0 {
			return n, errors.Wrapf(io.ErrShortWrite, "write %s", f.name)
		}

		n += w
	}

	return
}

// Truncate sets the file size through SetInfo.
func (f *File) Truncate(size uint64) error {
	info, err := f.Info()

	if err != nil {
		return err
	}

	info.FileSize = size
	buf, err := info.MarshalBinary()

	if err != nil {
		return errors.Wrapf(err, "truncate %s", f.name)
	}

	if err = f.f.SetInfo(uefi.FileInfoGUID, buf); err != nil {
		return errors.Wrapf(err, "truncate %s", f.name)
	}

	return nil
}

// Close closes the handle, only the first call reaches the firmware.
func (f *File) Close() error {
	if f.closed {
		return nil
	}

	f.closed = true

	if err := f.f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", f.name)
	}

	return nil
}
