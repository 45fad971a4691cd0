package pe

import "pecodec/coff"

// AddSection appends a new section, sets its name (subject to the
// 8-byte limit, spec.md §6/§9), and triggers an implicit layout update
// unless layout is suspended.
func (img *Image) AddSection(name string, characteristics uint32, rawData []byte) (*coff.Section, error) {
	sec := coff.Section{
		Header: coff.SectionHeader{
			Characteristics: characteristics,
			SizeOfRawData:   uint32(len(rawData)),
			VirtualSize:     uint32(len(rawData)),
		},
		RawData: rawData,
	}
	if err := sec.SetName(name); err != nil {
		return nil, err
	}
	img.Sections = append(img.Sections, sec)
	img.maybeUpdateLayout()
	// The layout pass sorts stably by VirtualAddress, so the new section
	// (VirtualAddress 0) is the last one with that address.
	for i := len(img.Sections) - 1; i >= 0; i-- {
		if img.Sections[i].Header.VirtualAddress == 0 {
			return &img.Sections[i], nil
		}
	}
	return &img.Sections[len(img.Sections)-1], nil
}

// RemoveSection deletes the first section named name.
func (img *Image) RemoveSection(name string) bool {
	for i := range img.Sections {
		if img.Sections[i].Header.Name == name {
			img.Sections = append(img.Sections[:i], img.Sections[i+1:]...)
			img.maybeUpdateLayout()
			return true
		}
	}
	return false
}

// AddSymbol appends sym to the symbol table.
func (img *Image) AddSymbol(sym coff.Symbol) int {
	img.Symbols = append(img.Symbols, sym)
	img.maybeUpdateLayout()
	return len(img.Symbols) - 1
}

// RemoveSymbol deletes the symbol at index i.
func (img *Image) RemoveSymbol(i int) bool {
	if i < 0 || i >= len(img.Symbols) {
		return false
	}
	img.Symbols = append(img.Symbols[:i], img.Symbols[i+1:]...)
	img.maybeUpdateLayout()
	return true
}

// AddString interns s into the string table and returns its offset.
func (img *Image) AddString(s string) uint32 {
	if img.StringTable == nil {
		img.StringTable = &coff.StringTable{}
	}
	off := img.StringTable.Add(s)
	img.maybeUpdateLayout()
	return off
}

// RemoveString deletes the string-table entry at offset and repacks the
// table, patching every Symbol.StringTableOffset that pointed at an
// entry the repack moved so a following Write stays consistent.
func (img *Image) RemoveString(offset uint32) {
	if img.StringTable == nil {
		return
	}
	img.StringTable.Remove(offset)
	moved := img.StringTable.Renumber()
	for i := range img.Symbols {
		if newOffset, ok := moved[img.Symbols[i].StringTableOffset]; ok {
			img.Symbols[i].StringTableOffset = newOffset
		}
	}
	img.maybeUpdateLayout()
}

// AddDataDirectory sets data directory index i directly, bypassing the
// typed Exports/Imports/etc. fields, for callers building a directory
// this module does not otherwise interpret (spec.md §6).
func (img *Image) AddDataDirectory(i int, d coff.DataDirectory) {
	if img.OptionalHeader == nil {
		return
	}
	img.OptionalHeader.SetDirectory(i, d)
	img.maybeUpdateLayout()
}

// AddRelocation appends a relocation record to the named section.
func (img *Image) AddRelocation(sectionName string, rel coff.Relocation) bool {
	for i := range img.Sections {
		if img.Sections[i].Header.Name == sectionName {
			img.Sections[i].Relocations = append(img.Sections[i].Relocations, rel)
			img.Sections[i].Header.NumberOfRelocations = uint16(len(img.Sections[i].Relocations))
			img.maybeUpdateLayout()
			return true
		}
	}
	return false
}

// AddLineNumber appends a line-number record to the named section.
func (img *Image) AddLineNumber(sectionName string, ln coff.LineNumber) bool {
	for i := range img.Sections {
		if img.Sections[i].Header.Name == sectionName {
			img.Sections[i].LineNumbers = append(img.Sections[i].LineNumbers, ln)
			img.Sections[i].Header.NumberOfLineNumbers = uint16(len(img.Sections[i].LineNumbers))
			img.maybeUpdateLayout()
			return true
		}
	}
	return false
}

// AddCertificate appends a WIN_CERTIFICATE entry to the certificate
// table; the certificate directory's RVA (really a file offset) and
// size are recomputed on the next Write.
func (img *Image) AddCertificate(cert AttributeCertificate) {
	img.Certificates = append(img.Certificates, cert)
	img.maybeUpdateLayout()
}

// SectionByName returns the first section named name.
func (img *Image) SectionByName(name string) *coff.Section {
	for i := range img.Sections {
		if img.Sections[i].Header.Name == name {
			return &img.Sections[i]
		}
	}
	return nil
}
