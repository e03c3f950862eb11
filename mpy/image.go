package mpy

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// .mpy header constants.
const (
	// HeaderMagic is the first byte of every .mpy file ('M')
	HeaderMagic = 'M'

	// HeaderSize is the size of the fixed .mpy header
	HeaderSize = 4

	// SupportedVersion is the .mpy version accepted by Pybricks firmware
	SupportedVersion = 6
)

// ParseImage splits an image back into its module records.
// The returned Bytecode slices alias data.
//
// Example:
//
//	records, err := mpy.ParseImage(img.Data)
//	for _, r := range records {
//	    fmt.Printf("%s: %d bytes\n", r.Name, len(r.Bytecode))
//	}
func ParseImage(data []byte) ([]Record, error) {
	var records []Record

	offset := 0
	for offset < len(data) {
		start := offset

		if len(data)-offset < LengthSize {
			return nil, &ImageFormatError{Offset: start, Reason: "truncated length prefix"}
		}
		length := int(binary.LittleEndian.Uint32(data[offset : offset+LengthSize]))
		offset += LengthSize

		nul := bytes.IndexByte(data[offset:], 0)
		if nul < 0 {
			return nil, &ImageFormatError{Offset: start, Reason: "unterminated module name"}
		}
		name := string(data[offset : offset+nul])
		offset += nul + 1

		if length > len(data)-offset {
			return nil, &ImageFormatError{
				Offset: start,
				Reason: fmt.Sprintf("module %q declares %d bytes, %d remain", name, length, len(data)-offset),
			}
		}

		records = append(records, Record{
			Name:     name,
			Offset:   start,
			Bytecode: data[offset : offset+length],
		})
		offset += length
	}

	return records, nil
}

// ParseHeader decodes the fixed header at the start of a .mpy file.
//
// Header format (4 bytes):
//
//	['M'][VERSION][ARCH<<2 | SUB_VERSION][SMALL_INT_BITS]
func ParseHeader(bytecode []byte) (*Header, error) {
	if len(bytecode) < HeaderSize {
		return nil, &ImageFormatError{Offset: 0, Reason: fmt.Sprintf("mpy header too short: got %d bytes, need %d", len(bytecode), HeaderSize)}
	}
	if bytecode[0] != HeaderMagic {
		return nil, &ImageFormatError{Offset: 0, Reason: fmt.Sprintf("bad mpy magic 0x%02X", bytecode[0])}
	}

	return &Header{
		Version:      bytecode[1],
		SubVersion:   bytecode[2] & 0x03,
		Arch:         bytecode[2] >> 2,
		SmallIntBits: bytecode[3],
	}, nil
}

// CheckHeader verifies that bytecode is a .mpy file of the supported version.
func CheckHeader(bytecode []byte) error {
	h, err := ParseHeader(bytecode)
	if err != nil {
		return err
	}
	if h.Version != SupportedVersion {
		return &ImageFormatError{Offset: 1, Reason: fmt.Sprintf("unsupported mpy version %d (want %d)", h.Version, SupportedVersion)}
	}
	return nil
}
