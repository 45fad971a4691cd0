package pe

import (
	"encoding/binary"

	"pecodec/coff"
	"pecodec/common"
)

// sectionContains reports whether rva falls within [VirtualAddress,
// VirtualAddress+VirtualSize) of h (spec.md §4.11).
func sectionContains(h coff.SectionHeader, rva uint32) bool {
	return rva >= h.VirtualAddress && rva < h.VirtualAddress+h.VirtualSize
}

// SectionForRVA returns the first section containing rva, or nil.
func (img *Image) SectionForRVA(rva uint32) *coff.Section {
	for i := range img.Sections {
		if sectionContains(img.Sections[i].Header, rva) {
			return &img.Sections[i]
		}
	}
	return nil
}

// sectionReader offers typed little-endian reads over one section's raw
// bytes addressed by RVA, modeled on the bounded OffsetReader idiom used
// by github.com/Velocidex/go-pe for the same purpose (see
// other_examples/Velocidex-go-pe__rva.go, SPEC_FULL.md domain stack).
type sectionReader struct {
	section *coff.Section
}

func (img *Image) readerFor(rva uint32) (*sectionReader, uint32, error) {
	sec := img.SectionForRVA(rva)
	if sec == nil {
		return nil, 0, common.NewRvaOutOfRange("SectionForRVA", rva)
	}
	return &sectionReader{section: sec}, rva - sec.Header.VirtualAddress, nil
}

func (sr *sectionReader) bytesAt(off uint32, n int) ([]byte, bool) {
	data := sr.section.RawData
	if int(off)+n > len(data) {
		return nil, false
	}
	return data[off : int(off)+n], true
}

// reversedCharacteristics reports whether the section's byte-order
// characteristic flags agree that data should be read big-endian.
// Requiring both bits (spec.md §4.11) guards against malformed files
// that set too many characteristic bits.
func reversedCharacteristics(c uint32) bool {
	const lo = 0x0080
	const hi = 0x8000
	return c&lo != 0 && c&hi != 0
}

// ReadUint16AtRVA decodes a 2-byte integer at rva.
func (img *Image) ReadUint16AtRVA(rva uint32) (uint16, error) {
	sr, off, err := img.readerFor(rva)
	if err != nil {
		return 0, err
	}
	b, ok := sr.bytesAt(off, 2)
	if !ok {
		return 0, common.NewRvaOutOfRange("ReadUint16AtRVA", rva)
	}
	if reversedCharacteristics(sr.section.Header.Characteristics) {
		return binary.BigEndian.Uint16(b), nil
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32AtRVA decodes a 4-byte integer at rva.
func (img *Image) ReadUint32AtRVA(rva uint32) (uint32, error) {
	sr, off, err := img.readerFor(rva)
	if err != nil {
		return 0, err
	}
	b, ok := sr.bytesAt(off, 4)
	if !ok {
		return 0, common.NewRvaOutOfRange("ReadUint32AtRVA", rva)
	}
	if reversedCharacteristics(sr.section.Header.Characteristics) {
		return binary.BigEndian.Uint32(b), nil
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64AtRVA decodes an 8-byte integer at rva.
func (img *Image) ReadUint64AtRVA(rva uint32) (uint64, error) {
	sr, off, err := img.readerFor(rva)
	if err != nil {
		return 0, err
	}
	b, ok := sr.bytesAt(off, 8)
	if !ok {
		return 0, common.NewRvaOutOfRange("ReadUint64AtRVA", rva)
	}
	if reversedCharacteristics(sr.section.Header.Characteristics) {
		return binary.BigEndian.Uint64(b), nil
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadASCIIStringAtRVA scans forward to a NUL terminator bounded by the
// containing section's initialized data.
func (img *Image) ReadASCIIStringAtRVA(rva uint32) (string, error) {
	sr, off, err := img.readerFor(rva)
	if err != nil {
		return "", err
	}
	data := sr.section.RawData
	if int(off) > len(data) {
		return "", common.NewRvaOutOfRange("ReadASCIIStringAtRVA", rva)
	}
	end := int(off)
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end]), nil
}

// ReadUTF16StringAtRVA scans forward to a double-NUL terminator bounded
// by the containing section's initialized data.
func (img *Image) ReadUTF16StringAtRVA(rva uint32) (string, error) {
	sr, off, err := img.readerFor(rva)
	if err != nil {
		return "", err
	}
	data := sr.section.RawData
	var runes []rune
	i := int(off)
	for i+1 < len(data) {
		u := binary.LittleEndian.Uint16(data[i : i+2])
		if u == 0 {
			return string(runes), nil
		}
		runes = append(runes, rune(u))
		i += 2
	}
	return "", common.NewRvaOutOfRange("ReadUTF16StringAtRVA", rva)
}

// TryReadUint32AtRVA is the sentinel-returning counterpart to
// ReadUint32AtRVA (spec.md §4.11: "try_ variants return a sentinel value
// and a boolean").
func (img *Image) TryReadUint32AtRVA(rva uint32) (uint32, bool) {
	v, err := img.ReadUint32AtRVA(rva)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TryReadASCIIStringAtRVA is the sentinel-returning counterpart to
// ReadASCIIStringAtRVA.
func (img *Image) TryReadASCIIStringAtRVA(rva uint32) (string, bool) {
	s, err := img.ReadASCIIStringAtRVA(rva)
	if err != nil {
		return "", false
	}
	return s, true
}
