package main

import (
	"debug/elf"
	"encoding/binary"
	"image"
	"image/color"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mazefi/elfload"
	"mazefi/elfload/elfbuild"
)

func TestParseSegmentSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    segmentSpec
		wantErr bool
	}{
		{in: "0x100000:code.bin", want: segmentSpec{addr: 0x100000, path: "code.bin"}},
		{in: "0x200000:data.bin:0x3000", want: segmentSpec{addr: 0x200000, path: "data.bin", memsz: 0x3000}},
		{in: "4096:ro.bin::r", want: segmentSpec{addr: 0x1000, path: "ro.bin", perm: "r"}},
		{in: "0x100000", wantErr: true},
		{in: "0x100000:", wantErr: true},
		{in: "zz:code.bin", wantErr: true},
		{in: "0x1000:code.bin:big", wantErr: true},
		{in: "0x1000:code.bin:0:rwq", wantErr: true},
		{in: "0x1000:a:b:c:d", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSegmentSpec(tt.in)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSegmentPermissions(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "code.bin", make([]byte, 0x1800), 0o644))
	require.NoError(t, afero.WriteFile(fs, "data.bin", []byte("data"), 0o644))

	code, err := segmentSpec{addr: 0x100000, path: "code.bin"}.segment(fs, 0x100400)
	require.NoError(t, err)
	assert.Equal(t, elf.PF_R|elf.PF_X, code.Flags)

	data, err := segmentSpec{addr: 0x200000, path: "data.bin", memsz: 0x3000}.segment(fs, 0x100400)
	require.NoError(t, err)
	assert.Equal(t, elf.PF_R|elf.PF_W, data.Flags)

	ro, err := segmentSpec{addr: 0x300000, path: "data.bin", perm: "r"}.segment(fs, 0x300000)
	require.NoError(t, err)
	assert.Equal(t, elf.PF_R, ro.Flags)

	_, err = segmentSpec{addr: 0x300000, path: "missing.bin"}.segment(fs, 0)
	assert.Error(t, err)

	img, err := elfload.Plan(elfbuild.Build(0x100400, code, data))
	require.NoError(t, err)
	require.Len(t, img.Segments, 2)
	assert.Equal(t, uint64(0x100400), img.Entry)
	assert.Equal(t, uint64(3), img.Segments[1].Pages)
}

func TestEncodeImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{0x11, 0x22, 0x33, 0xff})
	img.Set(1, 0, color.RGBA{0, 0, 0, 0})

	b := encodeImage(img)
	require.Len(t, b, 8+2*4)

	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(b[0:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(b[4:]))
	assert.Equal(t, uint32(0xff112233), binary.LittleEndian.Uint32(b[8:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(b[12:]))
}
