package uefi

import (
	"github.com/google/uuid"
)

// GUID is an EFI_GUID in its in-memory (wire) form: the first three fields
// are little-endian, unlike the big-endian RFC 4122 byte order.
type GUID [16]byte

// Protocol and information type identifiers used by the loader.
var (
	LoadedImageProtocolGUID      = MustParseGUID("5b1b31a1-9562-11d2-8e3f-00a0c969723b")
	SimpleFileSystemProtocolGUID = MustParseGUID("964e5b22-6459-11d2-8e39-00a0c969723b")
	GraphicsOutputProtocolGUID   = MustParseGUID("9042a9de-23dc-4a38-96fb-7aded080516a")
	SimpleTextOutputProtocolGUID = MustParseGUID("387477c2-69c7-11d2-8e39-00a0c969723b")
	FileInfoGUID                 = MustParseGUID("09576e92-6d3f-11d2-8e39-00a0c969723b")
)

// swapFields converts between RFC 4122 and EFI byte order. The conversion
// is its own inverse.
func swapFields(b [16]byte) [16]byte {
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]

	return b
}

// ParseGUID parses the canonical textual form
// ("xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx").
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)

	if err != nil {
		return GUID{}, err
	}

	return GUID(swapFields(u)), nil
}

// MustParseGUID is ParseGUID for package-level identifiers.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)

	if err != nil {
		panic(err)
	}

	return g
}

func (g GUID) String() string {
	return uuid.UUID(swapFields(g)).String()
}
