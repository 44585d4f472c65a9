// Package bitfield packs and unpacks annotated struct fields into integers.
// This is a simplified version based on golang.org/x/text/internal/gen/bitfield
package bitfield

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Config determines settings for packing.
type Config struct {
	// NumBits fixes the maximum allowed bits for the integer representation.
	// Zero means 64.
	NumBits uint
}

func (c *Config) numBits() uint {
	if c == nil || c.NumBits == 0 {
		return 64
	}

	return c.NumBits
}

// field is one tagged struct field and its position in the packed word.
type field struct {
	index  int
	name   string
	offset uint
	bits   uint
}

func mask(bits uint) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}

	return 1<<bits - 1
}

// layout walks the "bitfield" tags of t, lowest bits first. Fields without
// a tag are skipped.
func layout(t reflect.Type, c *Config) (fields []field, err error) {
	var offset uint

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("bitfield")

		if tag == "" {
			continue
		}

		// ",bits" or "name,bits"
		_, size, ok := strings.Cut(tag, ",")
		bits, perr := strconv.ParseUint(size, 10, 7)

		if !ok || perr != nil {
			return nil, fmt.Errorf("invalid bitfield tag %q on field %s", tag, f.Name)
		}

		if bits == 0 {
			continue
		}

		fields = append(fields, field{index: i, name: f.Name, offset: offset, bits: uint(bits)})
		offset += uint(bits)
	}

	if n := c.numBits(); offset > n {
		return nil, fmt.Errorf("total bits %d exceeds NumBits %d", offset, n)
	}

	return
}

func structOf(x interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(x)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		return v, fmt.Errorf("expected struct, got %v", v.Kind())
	}

	return v, nil
}

// Pack packs annotated bit ranges of struct x into an integer.
// Only fields that have a "bitfield" tag are compacted.
func Pack(x interface{}, c *Config) (packed uint64, err error) {
	v, err := structOf(x)

	if err != nil {
		return 0, fmt.Errorf("Pack: %w", err)
	}

	fields, err := layout(v.Type(), c)

	if err != nil {
		return 0, fmt.Errorf("Pack: %w", err)
	}

	for _, f := range fields {
		fv := v.Field(f.index)
		var bits uint64

		switch fv.Kind() {
		case reflect.Bool:
			if fv.Bool() {
				bits = 1
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			bits = fv.Uint()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			val := fv.Int()

			if val < 0 {
				return 0, fmt.Errorf("Pack: negative value %d for field %s", val, f.name)
			}

			bits = uint64(val)
		default:
			return 0, fmt.Errorf("Pack: unsupported field type %v for field %s", fv.Kind(), f.name)
		}

		if bits > mask(f.bits) {
			return 0, fmt.Errorf("Pack: value %d exceeds %d bits for field %s", bits, f.bits, f.name)
		}

		packed |= bits << f.offset
	}

	return packed, nil
}

// Unpack is the inverse of Pack, x must point to a struct.
func Unpack(packed uint64, x interface{}, c *Config) error {
	if reflect.ValueOf(x).Kind() != reflect.Ptr {
		return fmt.Errorf("Unpack: expected pointer to struct, got %T", x)
	}

	v, err := structOf(x)

	if err != nil {
		return fmt.Errorf("Unpack: %w", err)
	}

	fields, err := layout(v.Type(), c)

	if err != nil {
		return fmt.Errorf("Unpack: %w", err)
	}

	for _, f := range fields {
		fv := v.Field(f.index)
		bits := packed >> f.offset & mask(f.bits)

		switch fv.Kind() {
		case reflect.Bool:
			fv.SetBool(bits != 0)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if fv.OverflowUint(bits) {
				return fmt.Errorf("Unpack: %d bits do not fit field %s", f.bits, f.name)
			}

			fv.SetUint(bits)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if bits > 1<<63-1 || fv.OverflowInt(int64(bits)) {
				return fmt.Errorf("Unpack: %d bits do not fit field %s", f.bits, f.name)
			}

			fv.SetInt(int64(bits))
		default:
			return fmt.Errorf("Unpack: unsupported field type %v for field %s", fv.Kind(), f.name)
		}
	}

	return nil
}
