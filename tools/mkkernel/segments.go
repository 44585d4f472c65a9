package main

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"image"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"mazefi/elfload/elfbuild"
)

// segmentSpec is ADDR:FILE[:MEMSZ[:PERM]] from the command line.
type segmentSpec struct {
	addr  uint64
	path  string
	memsz uint64
	perm  string
}

func parseSegmentSpec(s string) (spec segmentSpec, err error) {
	parts := strings.Split(s, ":")

	if len(parts) < 2 || len(parts) > 4 || parts[1] == "" {
		return spec, errors.Errorf("segment %q: want ADDR:FILE[:MEMSZ[:PERM]]", s)
	}

	if spec.addr, err = strconv.ParseUint(parts[0], 0, 64); err != nil {
		return spec, errors.Wrapf(err, "segment %q: address", s)
	}

	spec.path = parts[1]

	if len(parts) > 2 && parts[2] != "" {
		if spec.memsz, err = strconv.ParseUint(parts[2], 0, 64); err != nil {
			return spec, errors.Wrapf(err, "segment %q: memory size", s)
		}
	}

	if len(parts) > 3 {
		spec.perm = parts[3]

		if strings.Trim(spec.perm, "rwx") != "" {
			return spec, errors.Errorf("segment %q: permissions %q are not made of r, w and x", s, spec.perm)
		}
	}

	return spec, nil
}

func progFlags(perm string) (flags elf.ProgFlag) {
	for _, c := range perm {
		switch c {
		case 'r':
			flags |= elf.PF_R
		case 'w':
			flags |= elf.PF_W
		case 'x':
			flags |= elf.PF_X
		}
	}

	return
}

// segment reads the segment contents from fs. Without explicit
// permissions the segment holding the entry point is r-x, others rw-.
func (spec segmentSpec) segment(fs afero.Fs, entry uint64) (elfbuild.Segment, error) {
	data, err := afero.ReadFile(fs, spec.path)

	if err != nil {
		return elfbuild.Segment{}, err
	}

	perm := spec.perm

	if perm == "" {
		perm = "rw"

		if end := spec.addr + max(spec.memsz, uint64(len(data))); entry >= spec.addr && entry < end {
			perm = "rx"
		}
	}

	return elfbuild.Segment{
		Type:  elf.PT_LOAD,
		Flags: progFlags(perm),
		Vaddr: spec.addr,
		Memsz: spec.memsz,
		Data:  data,
	}, nil
}

// encodeImage converts img to the raw splash format: width and height as
// little-endian uint32 followed by ARGB8888 pixels.
func encodeImage(img image.Image) []byte {
	b := img.Bounds()
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, uint32(b.Dx()))
	binary.Write(buf, binary.LittleEndian, uint32(b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			// 16 to 8 bits per channel
			pixel := (a/257)<<24 | (r/257)<<16 | (g/257)<<8 | bl/257
			binary.Write(buf, binary.LittleEndian, pixel)
		}
	}

	return buf.Bytes()
}
