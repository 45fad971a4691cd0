package pe

import (
	"pecodec/coff"
	"pecodec/common"
)

// BaseRelocationEntry is one 16-bit entry within a relocation block: a
// 12-bit page offset plus a 4-bit type (spec.md §3/§8).
type BaseRelocationEntry struct {
	Offset uint16
	Type   coff.BaseRelocType
}

// BaseRelocationBlock is one {page_rva, block_size, entries} group of the
// base relocation directory (spec.md §4.8).
type BaseRelocationBlock struct {
	PageRVA   uint32
	BlockSize uint32
	Entries   []BaseRelocationEntry
}

// BaseRelocationDirectory is the full ordered sequence of relocation
// blocks. BlockSize is the declared size including the 8-byte block
// header; it need not be a multiple of 4, and the parser advances to
// the next block by BlockSize rounded up to 4 (spec.md §4.8).
type BaseRelocationDirectory struct {
	Blocks []BaseRelocationBlock
}

// parseBaseRelocations walks the base relocation directory block by
// block until the bytes covered by dir are exhausted (spec.md §4.8).
// IMAGE_REL_BASED_ABSOLUTE (type 0) padding entries used to round a
// block up to a 4-byte boundary are preserved rather than dropped, so a
// re-emitted directory round-trips byte for byte.
func (img *Image) parseBaseRelocations(dir coff.DataDirectory) (*BaseRelocationDirectory, error) {
	result := &BaseRelocationDirectory{}
	rva := dir.RVA
	end := dir.RVA + dir.Size

	for rva < end {
		pageRVA, err := img.ReadUint32AtRVA(rva)
		if err != nil {
			break
		}
		blockSize, err := img.ReadUint32AtRVA(rva + 4)
		if err != nil || blockSize < 8 {
			break
		}

		entryCount := (blockSize - 8) / 2
		block := BaseRelocationBlock{PageRVA: pageRVA, BlockSize: blockSize}
		for i := uint32(0); i < entryCount; i++ {
			raw, err := img.ReadUint16AtRVA(rva + 8 + i*2)
			if err != nil {
				break
			}
			block.Entries = append(block.Entries, BaseRelocationEntry{
				Offset: raw & 0x0FFF,
				Type:   coff.BaseRelocType(raw >> 12),
			})
		}
		result.Blocks = append(result.Blocks, block)
		rva += common.AlignUp(blockSize, 4)
	}

	return result, nil
}

// write serializes the relocation directory back into its wire form,
// recomputing each block's size from its entry count (spec.md §4.8). A
// caller rebuilding a .reloc section from a mutated BaseRelocationDirectory
// appends this to that section's RawData before calling Write; parsed-only
// directories round-trip through the owning section's untouched raw bytes
// instead.
func (d *BaseRelocationDirectory) write(buf []byte) []byte {
	for _, block := range d.Blocks {
		size := uint32(8 + len(block.Entries)*2)
		buf = appendUint32LE(buf, block.PageRVA)
		buf = appendUint32LE(buf, size)
		for _, e := range block.Entries {
			word := (uint16(e.Type) << 12) | (e.Offset & 0x0FFF)
			buf = appendUint16LE(buf, word)
		}
	}
	return buf
}

func appendUint32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func appendUint16LE(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}
