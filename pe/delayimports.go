package pe

import (
	"fmt"

	"pecodec/coff"
)

// DelayImportDescriptor is one 32-byte entry of the delay-load import
// directory chain (spec.md §3/§6).
type DelayImportDescriptor struct {
	Attributes              uint32
	Name                    string
	NameRVA                 uint32
	ModuleHandleRVA         uint32
	DelayImportAddressTable uint32
	DelayImportNameTable    uint32
	BoundDelayImportTable   uint32
	UnloadDelayImportTable  uint32
	TimeDateStamp           uint32
	Functions               []ImportedFunction
}

// parseDelayImportDescriptors mirrors parseImportDescriptors for the
// 32-byte delay-load record; its terminator is an all-zero
// DelayImportAddressTable and DelayImportNameTable (spec.md §4.8/§6).
func (img *Image) parseDelayImportDescriptors(dir coff.DataDirectory) ([]DelayImportDescriptor, error) {
	var descriptors []DelayImportDescriptor
	rva := dir.RVA

	for {
		attributes, err := img.ReadUint32AtRVA(rva)
		if err != nil {
			break
		}
		nameRVA, _ := img.ReadUint32AtRVA(rva + 4)
		moduleHandleRVA, _ := img.ReadUint32AtRVA(rva + 8)
		dat, _ := img.ReadUint32AtRVA(rva + 12)
		dnt, _ := img.ReadUint32AtRVA(rva + 16)
		bdit, _ := img.ReadUint32AtRVA(rva + 20)
		udit, _ := img.ReadUint32AtRVA(rva + 24)
		timeDateStamp, err := img.ReadUint32AtRVA(rva + 28)
		if err != nil {
			break
		}

		if dat == 0 && dnt == 0 {
			break
		}

		name, ok := img.TryReadASCIIStringAtRVA(nameRVA)
		if !ok {
			img.logMalformed("parseDelayImportDescriptors.name", fmt.Errorf("unresolved name rva 0x%x", nameRVA))
		}

		desc := DelayImportDescriptor{
			Attributes:              attributes,
			Name:                    name,
			NameRVA:                 nameRVA,
			ModuleHandleRVA:         moduleHandleRVA,
			DelayImportAddressTable: dat,
			DelayImportNameTable:    dnt,
			BoundDelayImportTable:   bdit,
			UnloadDelayImportTable:  udit,
			TimeDateStamp:           timeDateStamp,
			Functions:               img.walkImportLookupTable(dnt),
		}
		descriptors = append(descriptors, desc)
		rva += 32
	}

	return descriptors, nil
}
