package pe

import (
	"fmt"

	"pecodec/coff"
)

const (
	importOrdinalFlag32 = uint32(1) << 31
	importOrdinalFlag64 = uint64(1) << 63
)

// ImportedFunction is one entry of an import descriptor's lookup table
// (spec.md §3/§8): either an import-by-ordinal or a hint/name import.
type ImportedFunction struct {
	ByOrdinal bool
	Ordinal   uint16
	Hint      uint16
	Name      string
	ThunkRVA  uint32
}

// ImportDescriptor is one 20-byte entry of the import directory chain
// (spec.md §3/§6), resolved with its walked lookup table.
type ImportDescriptor struct {
	Name               string
	NameRVA            uint32
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	FirstThunk         uint32
	Functions          []ImportedFunction
}

// parseImportDescriptors walks the import descriptor table from dir.RVA
// until the all-zero terminator (spec.md §4.8): for each descriptor it
// walks the 32- or 64-bit import lookup table depending on the optional
// header's magic, distinguishing ordinal imports by their MSB.
func (img *Image) parseImportDescriptors(dir coff.DataDirectory) ([]ImportDescriptor, error) {
	var descriptors []ImportDescriptor
	rva := dir.RVA

	for {
		originalFirstThunk, err := img.ReadUint32AtRVA(rva)
		if err != nil {
			break
		}
		timeDateStamp, _ := img.ReadUint32AtRVA(rva + 4)
		forwarderChain, _ := img.ReadUint32AtRVA(rva + 8)
		nameRVA, _ := img.ReadUint32AtRVA(rva + 12)
		firstThunk, err := img.ReadUint32AtRVA(rva + 16)
		if err != nil {
			break
		}

		if originalFirstThunk == 0 && firstThunk == 0 {
			break
		}

		name, ok := img.TryReadASCIIStringAtRVA(nameRVA)
		if !ok {
			img.logMalformed("parseImportDescriptors.name", fmt.Errorf("unresolved name rva 0x%x", nameRVA))
		}

		desc := ImportDescriptor{
			Name:               name,
			NameRVA:            nameRVA,
			OriginalFirstThunk: originalFirstThunk,
			TimeDateStamp:      timeDateStamp,
			ForwarderChain:     forwarderChain,
			FirstThunk:         firstThunk,
		}

		thunkRVA := originalFirstThunk
		if thunkRVA == 0 {
			thunkRVA = firstThunk
		}
		desc.Functions = img.walkImportLookupTable(thunkRVA)

		descriptors = append(descriptors, desc)
		rva += 20
	}

	return descriptors, nil
}

// walkImportLookupTable reads 32- or 64-bit lookup entries starting at
// rva until a zero entry, matching each entry's own thunk RVA so callers
// can tell "N lookup entries -> N+1 reads including terminator" (spec.md
// §8 testable property).
func (img *Image) walkImportLookupTable(rva uint32) []ImportedFunction {
	if rva == 0 {
		return nil
	}
	is64 := img.OptionalHeader != nil && img.OptionalHeader.Magic == coff.MagicPE32Plus

	var out []ImportedFunction
	cur := rva
	for {
		if is64 {
			entry, err := img.ReadUint64AtRVA(cur)
			if err != nil || entry == 0 {
				break
			}
			out = append(out, decodeImportEntry64(img, entry, cur))
			cur += 8
		} else {
			entry, err := img.ReadUint32AtRVA(cur)
			if err != nil || entry == 0 {
				break
			}
			out = append(out, decodeImportEntry32(img, entry, cur))
			cur += 4
		}
	}
	return out
}

func decodeImportEntry32(img *Image, entry uint32, thunkRVA uint32) ImportedFunction {
	if entry&importOrdinalFlag32 != 0 {
		return ImportedFunction{ByOrdinal: true, Ordinal: uint16(entry & 0xFFFF), ThunkRVA: thunkRVA}
	}
	hintNameRVA := entry & 0x7FFFFFFF
	hint, name := readHintName(img, hintNameRVA)
	return ImportedFunction{ByOrdinal: false, Hint: hint, Name: name, ThunkRVA: thunkRVA}
}

func decodeImportEntry64(img *Image, entry uint64, thunkRVA uint32) ImportedFunction {
	if entry&importOrdinalFlag64 != 0 {
		return ImportedFunction{ByOrdinal: true, Ordinal: uint16(entry & 0xFFFF), ThunkRVA: thunkRVA}
	}
	hintNameRVA := uint32(entry)
	hint, name := readHintName(img, hintNameRVA)
	return ImportedFunction{ByOrdinal: false, Hint: hint, Name: name, ThunkRVA: thunkRVA}
}

func readHintName(img *Image, rva uint32) (uint16, string) {
	hint, err := img.ReadUint16AtRVA(rva)
	if err != nil {
		img.logMalformed("readHintName.hint", fmt.Errorf("rva 0x%x: %w", rva, err))
		return 0, ""
	}
	name, ok := img.TryReadASCIIStringAtRVA(rva + 2)
	if !ok {
		img.logMalformed("readHintName.name", fmt.Errorf("unresolved name rva 0x%x", rva+2))
		return hint, ""
	}
	return hint, name
}
