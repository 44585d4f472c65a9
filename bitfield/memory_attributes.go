package bitfield

import "strings"

// MemoryAttributes is the EFI memory descriptor Attribute word (UEFI
// Specification 7.2, EFI_MEMORY_*), lowest bit first.
type MemoryAttributes struct {
	UC  bool `bitfield:",1"`
	WC  bool `bitfield:",1"`
	WT  bool `bitfield:",1"`
	WB  bool `bitfield:",1"`
	UCE bool `bitfield:",1"`

	Reserved0 uint8 `bitfield:",7"`

	WP           bool `bitfield:",1"`
	RP           bool `bitfield:",1"`
	XP           bool `bitfield:",1"`
	NV           bool `bitfield:",1"`
	MoreReliable bool `bitfield:",1"`
	RO           bool `bitfield:",1"`
	SP           bool `bitfield:",1"`
	CPUCrypto    bool `bitfield:",1"`

	Reserved1 uint64 `bitfield:",43"`

	// Runtime marks regions that need a virtual mapping for runtime services.
	Runtime bool `bitfield:",1"`
}

// UnpackMemoryAttributes decodes a descriptor Attribute word.
func UnpackMemoryAttributes(attr uint64) (a MemoryAttributes) {
	// the layout covers exactly 64 bits, Unpack cannot fail
	_ = Unpack(attr, &a, nil)
	return
}

// Pack returns the Attribute word.
func (a MemoryAttributes) Pack() (uint64, error) {
	return Pack(a, nil)
}

// String lists the set attributes, e.g. "UC|WC|WT|WB|RUNTIME".
func (a MemoryAttributes) String() string {
	var names []string

	for _, f := range []struct {
		set  bool
		name string
	}{
		{a.UC, "UC"},
		{a.WC, "WC"},
		{a.WT, "WT"},
		{a.WB, "WB"},
		{a.UCE, "UCE"},
		{a.WP, "WP"},
		{a.RP, "RP"},
		{a.XP, "XP"},
		{a.NV, "NV"},
		{a.MoreReliable, "MORE_RELIABLE"},
		{a.RO, "RO"},
		{a.SP, "SP"},
		{a.CPUCrypto, "CPU_CRYPTO"},
		{a.Runtime, "RUNTIME"},
	} {
		if f.set {
			names = append(names, f.name)
		}
	}

	if len(names) == 0 {
		return "-"
	}

	return strings.Join(names, "|")
}
