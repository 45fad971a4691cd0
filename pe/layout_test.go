package pe

import (
	"testing"

	"pecodec/coff"
)

func TestUpdateLayoutOrdersSectionsByVA(t *testing.T) {
	img := &Image{
		OptionalHeader: &coff.OptionalHeader{Magic: coff.MagicPE32Plus, FileAlignment: 0x200},
		StringTable:    &coff.StringTable{},
	}
	mkSection := func(name string, va uint32) coff.Section {
		s := coff.Section{Header: coff.SectionHeader{VirtualAddress: va, Characteristics: coff.SectionCntCode}}
		_ = s.SetName(name)
		return s
	}
	img.Sections = []coff.Section{
		mkSection(".data", 0x3000),
		mkSection(".text", 0x1000),
		mkSection(".rdata", 0x2000),
	}

	img.UpdateLayout()

	want := []string{".text", ".rdata", ".data"}
	for i, name := range want {
		if img.Sections[i].Header.Name != name {
			t.Errorf("Sections[%d] = %q, want %q", i, img.Sections[i].Header.Name, name)
		}
	}
	if img.FileHeader.SectionCount != 3 {
		t.Errorf("SectionCount = %d, want 3", img.FileHeader.SectionCount)
	}
}

func TestUpdateLayoutSetsBaseOfCode(t *testing.T) {
	img := &Image{
		OptionalHeader: &coff.OptionalHeader{Magic: coff.MagicPE32Plus, FileAlignment: 0x200},
		StringTable:    &coff.StringTable{},
	}
	rdata := coff.Section{Header: coff.SectionHeader{VirtualAddress: 0x1000, Characteristics: coff.SectionCntInitializedData}}
	_ = rdata.SetName(".rdata")
	text := coff.Section{Header: coff.SectionHeader{VirtualAddress: 0x2000, Characteristics: coff.SectionCntCode}}
	_ = text.SetName(".text")
	img.Sections = []coff.Section{rdata, text}

	img.UpdateLayout()

	if img.OptionalHeader.BaseOfCode != 0x2000 {
		t.Errorf("BaseOfCode = 0x%x, want 0x2000", img.OptionalHeader.BaseOfCode)
	}
}

func TestUpdateLayoutPreservesLargerSizeOfHeaders(t *testing.T) {
	img := &Image{
		OptionalHeader: &coff.OptionalHeader{
			Magic:         coff.MagicPE32Plus,
			FileAlignment: 0x200,
			SizeOfHeaders: 0x1000, // deliberately inflated by some toolchain
		},
		StringTable: &coff.StringTable{},
	}
	img.UpdateLayout()
	if img.OptionalHeader.SizeOfHeaders != 0x1000 {
		t.Errorf("SizeOfHeaders = 0x%x, want the preserved 0x1000", img.OptionalHeader.SizeOfHeaders)
	}
}
