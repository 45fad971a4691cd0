package pe

import (
	"testing"

	"pecodec/coff"
)

func TestParseBaseRelocations(t *testing.T) {
	const base = 0x5000
	buf := make([]byte, 64)
	put32 := func(off uint32, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	put16 := func(off uint32, v uint16) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	}

	// One block: page RVA 0x1000, 2 entries (HIGHLOW at offset 0x10,
	// ABSOLUTE padding entry at offset 0).
	put32(0, 0x1000) // PageRVA
	put32(4, 12)      // BlockSize: 8 header + 2*2 entries
	put16(8, (uint16(coff.ImageRelBasedHighLow)<<12)|0x010)
	put16(10, uint16(coff.ImageRelBasedAbsolute)<<12)

	img := newImageWithSection(buf, base, coff.SectionCntInitializedData)
	dir := coff.DataDirectory{RVA: base, Size: 12}

	rd, err := img.parseBaseRelocations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(rd.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(rd.Blocks))
	}
	block := rd.Blocks[0]
	if block.PageRVA != 0x1000 {
		t.Errorf("PageRVA = 0x%x, want 0x1000", block.PageRVA)
	}
	if len(block.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(block.Entries))
	}
	if block.Entries[0].Type != coff.ImageRelBasedHighLow || block.Entries[0].Offset != 0x010 {
		t.Errorf("Entries[0] = %+v", block.Entries[0])
	}
	if block.Entries[1].Type != coff.ImageRelBasedAbsolute {
		t.Errorf("Entries[1].Type = %v, want ImageRelBasedAbsolute", block.Entries[1].Type)
	}
}

// TestParseBaseRelocationsAdvancesByAlignedBlockSize covers a first
// block whose declared size (10 bytes: 8-byte header + 1 entry) is not
// a multiple of 4: the reader must advance to the next 4-byte boundary
// (spec.md §4.8 "advance by the declared block size rounded up to 4"),
// not by the raw declared size, or it desyncs and misreads the second
// block's header.
func TestParseBaseRelocationsAdvancesByAlignedBlockSize(t *testing.T) {
	const base = 0x6000
	buf := make([]byte, 64)
	put32 := func(off uint32, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}
	put16 := func(off uint32, v uint16) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	}

	// block 0: 1 entry, size 10 (unaligned), padded to 12 on disk.
	put32(0, 0x1000)
	put32(4, 10)
	put16(8, uint16(coff.ImageRelBasedHighLow)<<12)

	// block 1 header starts at the 4-byte-aligned offset 12, not 10.
	put32(12, 0x2000)
	put32(16, 8)

	img := newImageWithSection(buf, base, coff.SectionCntInitializedData)
	dir := coff.DataDirectory{RVA: base, Size: 20}

	rd, err := img.parseBaseRelocations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(rd.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(rd.Blocks))
	}
	if rd.Blocks[1].PageRVA != 0x2000 {
		t.Errorf("Blocks[1].PageRVA = 0x%x, want 0x2000", rd.Blocks[1].PageRVA)
	}
	if len(rd.Blocks[1].Entries) != 0 {
		t.Errorf("Blocks[1] should have no entries, got %d", len(rd.Blocks[1].Entries))
	}
}

func TestBaseRelocationDirectoryWrite(t *testing.T) {
	rd := &BaseRelocationDirectory{
		Blocks: []BaseRelocationBlock{
			{
				PageRVA: 0x2000,
				Entries: []BaseRelocationEntry{
					{Offset: 0x004, Type: coff.ImageRelBasedDir64},
				},
			},
		},
	}
	out := rd.write(nil)
	if len(out) != 10 { // 8-byte header + 1 entry
		t.Fatalf("wrote %d bytes, want 10", len(out))
	}
}
