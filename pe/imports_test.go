package pe

import (
	"testing"

	"pecodec/coff"
)

// buildImportSection lays out one import descriptor for "KERNEL32.dll"
// with a single name-imported function "ExitProcess", followed by the
// all-zero terminator descriptor, entirely within one section so RVA
// resolution has a single section to search.
func buildImportSection() (*Image, coff.DataDirectory) {
	const (
		base           = 0x2000
		descriptorRVA  = base
		thunkRVA       = base + 40 // room for 2 descriptors (20 bytes each)
		hintNameRVA    = thunkRVA + 16
		dllNameRVA     = hintNameRVA + 16
	)

	buf := make([]byte, 512)
	putU32 := func(off uint32, v uint32) {
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
		buf[off+2] = byte(v >> 16)
		buf[off+3] = byte(v >> 24)
	}

	// descriptor 0: OriginalFirstThunk, TimeDateStamp, ForwarderChain, Name, FirstThunk
	putU32(0, thunkRVA)
	putU32(4, 0)
	putU32(8, 0)
	putU32(12, dllNameRVA)
	putU32(16, thunkRVA)
	// descriptor 1: all zero terminator (already zero)

	// thunk table: one 32-bit entry pointing at hint/name, then zero terminator
	putU32(thunkRVA-base, hintNameRVA)

	copy(buf[hintNameRVA-base+2:], "ExitProcess\x00")
	copy(buf[dllNameRVA-base:], "KERNEL32.dll\x00")

	img := newImageWithSection(buf, base, coff.SectionCntInitializedData)
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32}

	dir := coff.DataDirectory{RVA: descriptorRVA, Size: 40}
	return img, dir
}

func TestParseImportDescriptors(t *testing.T) {
	img, dir := buildImportSection()

	descs, err := img.parseImportDescriptors(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(descs))
	}
	if descs[0].Name != "KERNEL32.dll" {
		t.Errorf("Name = %q, want KERNEL32.dll", descs[0].Name)
	}
	if len(descs[0].Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(descs[0].Functions))
	}
	fn := descs[0].Functions[0]
	if fn.ByOrdinal {
		t.Error("expected a name import, not an ordinal import")
	}
	if fn.Name != "ExitProcess" {
		t.Errorf("Name = %q, want ExitProcess", fn.Name)
	}
}

func TestDecodeImportEntry64Ordinal(t *testing.T) {
	img := newImageWithSection(make([]byte, 16), 0x1000, coff.SectionCntInitializedData)
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32Plus}
	entry := uint64(1)<<63 | 42
	fn := decodeImportEntry64(img, entry, 0x1000)
	if !fn.ByOrdinal || fn.Ordinal != 42 {
		t.Errorf("got %+v, want ByOrdinal=true Ordinal=42", fn)
	}
}

// TestDecodeImportEntry64NameKeepsBit31 places the hint/name record at
// an RVA with bit 31 of the low 32 bits set (base >= 0x80000000): only
// bit 63 of a 64-bit lookup entry is the ordinal flag, so that bit must
// survive into the RVA used to find the record.
func TestDecodeImportEntry64NameKeepsBit31(t *testing.T) {
	const base = 0x80000000
	buf := make([]byte, 16)
	copy(buf[2:], "Foo\x00")
	img := newImageWithSection(buf, base, coff.SectionCntInitializedData)
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32Plus}

	entry := uint64(base)
	fn := decodeImportEntry64(img, entry, base)
	if fn.ByOrdinal {
		t.Fatal("expected a name import, not an ordinal import")
	}
	if fn.Name != "Foo" {
		t.Errorf("Name = %q, want Foo", fn.Name)
	}
}
