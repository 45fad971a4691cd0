package pe

import (
	"sort"
	"strings"

	"pecodec/coff"
	"pecodec/common"
)

// UpdateLayout recomputes section file offsets, pointer-to-relocations /
// pointer-to-line-numbers, size-of-headers, size-of-image, base-of-code,
// and the symbol-table pointer, and reorders sections by ascending
// virtual address (spec.md C9/§4.9). Write always calls this once more
// regardless of the suspend flag.
func (img *Image) UpdateLayout() {
	sort.SliceStable(img.Sections, func(i, j int) bool {
		return img.Sections[i].Header.VirtualAddress < img.Sections[j].Header.VirtualAddress
	})

	img.FileHeader.SectionCount = uint16(len(img.Sections))
	img.FileHeader.SymCount = coff.TotalSymCount(img.Symbols)

	if img.OptionalHeader != nil {
		img.FileHeader.OptionalHeaderSize = img.OptionalHeader.Size()
		img.updateBaseOfCode()
		img.updateSizeOfHeaders()
		img.updateSizeOfImage()
	}

	fileAlignment := uint32(0)
	if img.OptionalHeader != nil {
		fileAlignment = img.OptionalHeader.FileAlignment
	}
	img.layoutSectionOffsets(fileAlignment)
	img.updateSymTablePointer()
}

func (img *Image) updateBaseOfCode() {
	for i := range img.Sections {
		if img.Sections[i].Header.Characteristics&coff.SectionCntCode != 0 {
			img.OptionalHeader.BaseOfCode = img.Sections[i].Header.VirtualAddress
			return
		}
	}
	if len(img.Sections) > 0 {
		img.OptionalHeader.BaseOfCode = img.Sections[0].Header.VirtualAddress
	}
}

func (img *Image) updateSizeOfHeaders() {
	stubLen := 0
	if img.DosStub != nil {
		stubLen = len(img.DosStub)
	}
	headerBytes := uint32(DOSHeaderSize) + uint32(stubLen) + 4 +
		coff.FileHeaderSize + uint32(img.FileHeader.OptionalHeaderSize) +
		uint32(len(img.Sections))*coff.SectionHeaderSize

	computed := common.AlignUp(headerBytes, img.OptionalHeader.FileAlignment)
	if img.OptionalHeader.SizeOfHeaders > computed {
		// Some real-world toolchains inflate this value; preserve it
		// rather than shrinking on write (spec.md §4.9).
		return
	}
	img.OptionalHeader.SizeOfHeaders = computed
}

func (img *Image) updateSizeOfImage() {
	if len(img.Sections) == 0 {
		return
	}
	last := img.Sections[len(img.Sections)-1].Header
	img.OptionalHeader.SizeOfImage = common.AlignUp(
		last.VirtualAddress+last.VirtualSize, img.OptionalHeader.SectionAlignment)
}

func (img *Image) layoutSectionOffsets(fileAlignment uint32) {
	cursor := img.headerEndOffset()
	for i := range img.Sections {
		h := &img.Sections[i].Header
		hasData := h.Characteristics&coff.SectionCntUninitializedData == 0 && h.SizeOfRawData > 0

		if hasData {
			h.PointerToRawData = common.AlignUp(cursor, fileAlignment)
			cursor = h.PointerToRawData + h.SizeOfRawData
		} else {
			h.PointerToRawData = 0
		}

		if h.NumberOfRelocations > 0 {
			h.PointerToRelocations = cursor
			cursor += uint32(h.NumberOfRelocations) * coff.RelocationEntrySize
		} else {
			h.PointerToRelocations = 0
		}

		if h.NumberOfLineNumbers > 0 {
			h.PointerToLineNumbers = cursor
			cursor += uint32(h.NumberOfLineNumbers) * coff.LineNumberEntrySize
		} else {
			h.PointerToLineNumbers = 0
		}
	}
	img.sectionCursorEnd = cursor
}

// headerEndOffset returns the file offset immediately after all section
// headers, i.e. where the first section body may begin.
func (img *Image) headerEndOffset() uint32 {
	if img.IsObject {
		base := coff.FileHeaderSize
		if img.OptionalHeader != nil {
			base += int(img.OptionalHeader.Size())
		}
		return uint32(base) + uint32(len(img.Sections))*coff.SectionHeaderSize
	}
	stubLen := 0
	if img.DosStub != nil {
		stubLen = len(img.DosStub)
	}
	return uint32(DOSHeaderSize) + uint32(stubLen) + 4 + coff.FileHeaderSize +
		uint32(img.FileHeader.OptionalHeaderSize) + uint32(len(img.Sections))*coff.SectionHeaderSize
}

// symtabSection returns the section whose raw-data pointer already
// matches the previous symbol-table pointer and whose name looks like a
// Go-linker-style embedded symbol table (spec.md §4.9/§9 ".symtab
// convention").
func (img *Image) symtabSection(prevSymPtr uint32) *coff.Section {
	if prevSymPtr == 0 {
		return nil
	}
	for i := range img.Sections {
		name := img.Sections[i].Header.Name
		if img.Sections[i].Header.PointerToRawData == prevSymPtr &&
			(strings.Contains(name, "symtab") || strings.Contains(name, "gosymtab")) {
			return &img.Sections[i]
		}
	}
	return nil
}

func (img *Image) updateSymTablePointer() {
	prev := img.FileHeader.SymTablePtr
	if sec := img.symtabSection(prev); sec != nil {
		img.FileHeader.SymTablePtr = sec.Header.PointerToRawData
		return
	}

	if len(img.Symbols) == 0 && (img.StringTable == nil || len(img.StringTable.Entries()) == 0) {
		img.FileHeader.SymTablePtr = 0
		return
	}
	img.FileHeader.SymTablePtr = img.sectionCursorEnd
}
