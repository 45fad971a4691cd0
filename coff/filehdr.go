// Package coff implements the COFF object container that both plain
// .obj files and the PE format build on: the file header, the optional
// header (base + PE extension), the section table, and the symbol and
// string tables. The 20-byte file header is (de)serialized with
// github.com/lunixbochs/struc; every other record (the optional header,
// section headers, relocations, line numbers, symbols and the string
// table) is hand-coded against common's byte codec.
package coff

import (
	"fmt"
	"io"
	"time"

	"github.com/lunixbochs/struc"

	"pecodec/common"
)

// Machine identifies the target CPU architecture (FileHeader.Machine).
type Machine uint16

const (
	MachineUnknown Machine = 0x0
	MachineI386    Machine = 0x14c
	MachineAMD64   Machine = 0x8664
	MachineARM     Machine = 0x1c0
	MachineARM64   Machine = 0xaa64
	MachineARMNT   Machine = 0x1c4
	MachineIA64    Machine = 0x200
)

// Characteristics bits of FileHeader.Characteristics.
const (
	FileRelocsStripped     = 0x0001
	FileExecutableImage    = 0x0002
	FileLineNumsStripped   = 0x0004
	FileLocalSymsStripped  = 0x0008
	FileAggressiveWsTrim   = 0x0010
	FileLargeAddressAware  = 0x0020
	FileBytesReversedLo    = 0x0080
	File32BitMachine       = 0x0100
	FileDebugStripped      = 0x0200
	FileRemovableRunFromSw = 0x0400
	FileNetRunFromSwap     = 0x0800
	FileSystem             = 0x1000
	FileDLL                = 0x2000
	FileUpSystemOnly       = 0x4000
	FileBytesReversedHi    = 0x8000
)

// fileHeaderWire is the exact 20-byte on-disk record.
type fileHeaderWire struct {
	Machine              uint16 `struc:"uint16,little"`
	NumberOfSections     uint16 `struc:"uint16,little"`
	TimeDateStamp        uint32 `struc:"uint32,little"`
	PointerToSymbolTable uint32 `struc:"uint32,little"`
	NumberOfSymbols      uint32 `struc:"uint32,little"`
	SizeOfOptionalHeader uint16 `struc:"uint16,little"`
	Characteristics      uint16 `struc:"uint16,little"`
}

// Size in bytes of the on-disk record (§6).
const FileHeaderSize = 20

// FileHeader is the 20-byte COFF file header (spec.md C2 / §4.2).
type FileHeader struct {
	Machine              Machine
	SectionCount         uint16
	Timestamp            time.Time
	SymTablePtr          uint32
	SymCount             uint32
	OptionalHeaderSize   uint16
	CharacteristicsBits  uint16
}

// ReadFileHeader consumes exactly FileHeaderSize bytes from r.
func ReadFileHeader(r io.Reader) (*FileHeader, error) {
	var w fileHeaderWire
	if err := struc.Unpack(r, &w); err != nil {
		return nil, common.NewTruncatedStream("ReadFileHeader", err)
	}
	return &FileHeader{
		Machine:             Machine(w.Machine),
		SectionCount:        w.NumberOfSections,
		Timestamp:           time.Unix(int64(w.TimeDateStamp), 0).UTC(),
		SymTablePtr:         w.PointerToSymbolTable,
		SymCount:            w.NumberOfSymbols,
		OptionalHeaderSize:  w.SizeOfOptionalHeader,
		CharacteristicsBits: w.Characteristics,
	}, nil
}

// Write emits the 20-byte record.
func (h *FileHeader) Write(w io.Writer) error {
	wire := fileHeaderWire{
		Machine:              uint16(h.Machine),
		NumberOfSections:     h.SectionCount,
		TimeDateStamp:        uint32(h.Timestamp.Unix()),
		PointerToSymbolTable: h.SymTablePtr,
		NumberOfSymbols:      h.SymCount,
		SizeOfOptionalHeader: h.OptionalHeaderSize,
		Characteristics:      h.CharacteristicsBits,
	}
	if err := struc.Pack(w, &wire); err != nil {
		return fmt.Errorf("write file header: %w", err)
	}
	return nil
}

func (h *FileHeader) HasCharacteristic(bit uint16) bool {
	return h.CharacteristicsBits&bit != 0
}
