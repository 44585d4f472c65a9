package bitfield_test

import (
	"fmt"

	"mazefi/bitfield"
)

func ExampleUnpackMemoryAttributes() {
	attrs := bitfield.UnpackMemoryAttributes(0x800000000000000f)

	fmt.Println(attrs)
	fmt.Println(attrs.WB, attrs.XP)
	// Output:
	// UC|WC|WT|WB|RUNTIME
	// true false
}
