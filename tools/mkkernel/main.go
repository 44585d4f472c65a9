// Command mkkernel writes a kernel ELF made of raw segment files, for
// booting with mazefi.
package main

import (
	"debug/elf"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/spf13/afero"

	"mazefi/elfload/elfbuild"
)

func main() {
	entryFlag := flag.String("entry", "0x100000", "entry point address")
	splash := flag.String("splash", "", "embed an image as ADDR:IMAGE, converted to width, height and ARGB8888 pixels")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mkkernel [-entry ADDR] [-splash ADDR:IMAGE] <output-elf> ADDR:FILE[:MEMSZ[:PERM]]...\n")
		fmt.Fprintf(os.Stderr, "Builds an x86-64 ELF executable with one PT_LOAD segment per FILE\n")
		fmt.Fprintf(os.Stderr, "loaded at ADDR. MEMSZ larger than the file leaves room for bss.\n")
		fmt.Fprintf(os.Stderr, "PERM is made of r, w and x; it defaults to rx for the segment\n")
		fmt.Fprintf(os.Stderr, "holding the entry point and rw otherwise.\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	entry, err := strconv.ParseUint(*entryFlag, 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing entry: %v\n", err)
		os.Exit(1)
	}

	fs := afero.NewOsFs()
	outputPath := flag.Arg(0)

	var segs []elfbuild.Segment

	for _, arg := range flag.Args()[1:] {
		spec, err := parseSegmentSpec(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		seg, err := spec.segment(fs, entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading segment: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Segment %#x: %s, %s\n", seg.Vaddr, spec.path, humanize.IBytes(uint64(len(seg.Data))))
		segs = append(segs, seg)
	}

	if *splash != "" {
		spec, err := parseSegmentSpec(*splash)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		img, err := gg.LoadImage(spec.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error decoding image: %v\n", err)
			os.Exit(1)
		}

		b := img.Bounds()
		fmt.Printf("Image size: %d x %d\n", b.Dx(), b.Dy())

		segs = append(segs, elfbuild.Segment{
			Type:  elf.PT_LOAD,
			Flags: progFlags("r"),
			Vaddr: spec.addr,
			Data:  encodeImage(img),
		})
	}

	out := elfbuild.Build(entry, segs...)

	if err := afero.WriteFile(fs, outputPath, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s, entry %#x, %d segments, %s\n", outputPath, entry, len(segs), humanize.IBytes(uint64(len(out))))
}
