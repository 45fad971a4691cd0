package pe

import (
	"fmt"

	"pecodec/coff"
)

// ExportedFunction is one entry of the export address table, optionally
// paired with a name from the name table (spec.md §3/§8).
type ExportedFunction struct {
	Ordinal   uint16
	RVA       uint32
	Name      string
	Forwarder string
}

// ExportDirectory models the 40-byte export directory header plus its
// three parallel tables (EAT, name pointer table, ordinal table)
// (spec.md §4.8).
type ExportDirectory struct {
	Characteristics uint32
	TimeDateStamp   uint32
	MajorVersion    uint16
	MinorVersion    uint16
	Name            string
	NameRVA         uint32
	OrdinalBase     uint32
	Functions       []ExportedFunction
}

// parseExportDirectory reads the 40-byte header at dir.RVA then the EAT,
// name pointer, and ordinal tables (spec.md §4.8). An EAT entry whose RVA
// falls inside the export directory's own [RVA, RVA+Size) range is a
// forward reference: instead of code it points at an ASCII
// "DLLName.FunctionName" string, which is captured into Forwarder rather
// than RVA.
func (img *Image) parseExportDirectory(dir coff.DataDirectory) (*ExportDirectory, error) {
	base := dir.RVA

	characteristics, err := img.ReadUint32AtRVA(base)
	if err != nil {
		return nil, err
	}
	timeDateStamp, _ := img.ReadUint32AtRVA(base + 4)
	majorVersion, _ := img.ReadUint16AtRVA(base + 8)
	minorVersion, _ := img.ReadUint16AtRVA(base + 10)
	nameRVA, _ := img.ReadUint32AtRVA(base + 12)
	ordinalBase, _ := img.ReadUint32AtRVA(base + 16)
	numFunctions, _ := img.ReadUint32AtRVA(base + 20)
	numNames, _ := img.ReadUint32AtRVA(base + 24)
	eatRVA, _ := img.ReadUint32AtRVA(base + 28)
	namesRVA, _ := img.ReadUint32AtRVA(base + 32)
	ordinalsRVA, _ := img.ReadUint32AtRVA(base + 36)

	name, _ := img.TryReadASCIIStringAtRVA(nameRVA)

	ed := &ExportDirectory{
		Characteristics: characteristics,
		TimeDateStamp:   timeDateStamp,
		MajorVersion:    majorVersion,
		MinorVersion:    minorVersion,
		Name:            name,
		NameRVA:         nameRVA,
		OrdinalBase:     ordinalBase,
	}

	functions := make([]ExportedFunction, numFunctions)
	for i := uint32(0); i < numFunctions; i++ {
		rva, err := img.ReadUint32AtRVA(eatRVA + i*4)
		if err != nil {
			img.logMalformed("parseExportDirectory.eat", fmt.Errorf("entry %d: %w", i, err))
			break
		}
		fn := ExportedFunction{Ordinal: uint16(ordinalBase + i)}
		if rva >= dir.RVA && rva < dir.RVA+dir.Size {
			fwd, ok := img.TryReadASCIIStringAtRVA(rva)
			if !ok {
				img.logMalformed("parseExportDirectory.forwarder", fmt.Errorf("entry %d: unresolved forwarder rva 0x%x", i, rva))
			}
			fn.Forwarder = fwd
		} else {
			fn.RVA = rva
		}
		functions[i] = fn
	}

	for i := uint32(0); i < numNames; i++ {
		nRVA, err := img.ReadUint32AtRVA(namesRVA + i*4)
		if err != nil {
			img.logMalformed("parseExportDirectory.names", fmt.Errorf("entry %d: %w", i, err))
			break
		}
		ord, err := img.ReadUint16AtRVA(ordinalsRVA + i*2)
		if err != nil {
			img.logMalformed("parseExportDirectory.ordinals", fmt.Errorf("entry %d: %w", i, err))
			break
		}
		nm, ok := img.TryReadASCIIStringAtRVA(nRVA)
		if !ok {
			img.logMalformed("parseExportDirectory.name", fmt.Errorf("entry %d: unresolved name rva 0x%x", i, nRVA))
		}
		if int(ord) < len(functions) {
			functions[ord].Name = nm
		}
	}

	ed.Functions = functions
	return ed, nil
}

// write serializes the export directory into the wire form of an
// .edata section (spec.md §4.8 build/emit): the 40-byte header and the
// EAT/name-pointer/ordinal tables first, followed by the image name and
// each function's name or forwarder string. baseRVA is the virtual
// address the caller will place the resulting bytes at, needed to
// compute the RVAs embedded in the header and tables. Ordinals are
// stored on disk unbiased, i.e. Ordinal-OrdinalBase.
func (d *ExportDirectory) write(baseRVA uint32) []byte {
	n := uint32(len(d.Functions))
	var numNames uint32
	for _, fn := range d.Functions {
		if fn.Name != "" {
			numNames++
		}
	}

	const headerSize = 40
	eatOff := uint32(headerSize)
	namesOff := eatOff + n*4
	ordsOff := namesOff + numNames*4
	stringsOff := ordsOff + numNames*2

	var strs []byte
	putString := func(s string) uint32 {
		off := stringsOff + uint32(len(strs))
		strs = append(strs, s...)
		strs = append(strs, 0)
		return off
	}

	nameRVA := baseRVA + putString(d.Name)

	var eat, namePtrs, ords []byte
	for _, fn := range d.Functions {
		rva := fn.RVA
		if fn.Forwarder != "" {
			rva = baseRVA + putString(fn.Forwarder)
		}
		eat = appendUint32LE(eat, rva)
		if fn.Name != "" {
			namePtrs = appendUint32LE(namePtrs, baseRVA+putString(fn.Name))
			ords = appendUint16LE(ords, uint16(fn.Ordinal-uint16(d.OrdinalBase)))
		}
	}

	buf := make([]byte, 0, int(stringsOff)+len(strs))
	buf = appendUint32LE(buf, d.Characteristics)
	buf = appendUint32LE(buf, d.TimeDateStamp)
	buf = appendUint16LE(buf, d.MajorVersion)
	buf = appendUint16LE(buf, d.MinorVersion)
	buf = appendUint32LE(buf, nameRVA)
	buf = appendUint32LE(buf, d.OrdinalBase)
	buf = appendUint32LE(buf, n)
	buf = appendUint32LE(buf, numNames)
	buf = appendUint32LE(buf, baseRVA+eatOff)
	buf = appendUint32LE(buf, baseRVA+namesOff)
	buf = appendUint32LE(buf, baseRVA+ordsOff)
	buf = append(buf, eat...)
	buf = append(buf, namePtrs...)
	buf = append(buf, ords...)
	buf = append(buf, strs...)
	return buf
}
