package coff

import (
	"bytes"
	"io"

	"pecodec/common"
)

const (
	SymbolRecordSize = 18
	AuxRecordSize    = 18
)

// Reserved SectionNumber values (spec.md §3).
const (
	SectionUndefined int16 = 0
	SectionAbsolute  int16 = -1
	SectionDebug     int16 = -2
)

// Symbol is an 18-byte COFF symbol table entry plus its auxiliary
// records (spec.md §3/§4.5). Name is either the inline <=8 byte ASCII
// form or a string-table offset; both are exposed through ShortName /
// StringTableOffset so callers don't need to know which form was used
// until they resolve against a StringTable.
type Symbol struct {
	ShortName         string // valid when StringTableOffset == 0
	StringTableOffset uint32 // valid when non-zero

	Value         uint32
	SectionNumber int16
	SymbolType    uint16
	StorageClass  uint8
	AuxRecords    [][AuxRecordSize]byte
}

// Name resolves the symbol's display name, following the string table
// when the inline name field held an offset instead of ASCII bytes.
func (s *Symbol) Name(strs *StringTable) string {
	if s.StringTableOffset != 0 {
		if v, ok := strs.String(s.StringTableOffset); ok {
			return v
		}
		return ""
	}
	return s.ShortName
}

// ReadSymbols reads symbol records until totalSlots 18-byte slots have
// been consumed, where each symbol occupies 1 + its aux record count
// slots (spec.md §3 invariant: sym_count == Σ(1+aux_count)).
func ReadSymbols(r io.Reader, totalSlots int) ([]Symbol, error) {
	var syms []Symbol
	remaining := totalSlots
	for remaining > 0 {
		sym, err := readSymbol(r)
		if err != nil {
			return syms, err
		}
		remaining -= 1 + len(sym.AuxRecords)
		syms = append(syms, sym)
	}
	return syms, nil
}

func readSymbol(r io.Reader) (Symbol, error) {
	var sym Symbol
	nameBytes := make([]byte, 8)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return sym, common.NewTruncatedStream("readSymbol.name", err)
	}
	if nameBytes[0] == 0 && nameBytes[1] == 0 && nameBytes[2] == 0 && nameBytes[3] == 0 {
		sym.StringTableOffset = uint32(nameBytes[4]) | uint32(nameBytes[5])<<8 |
			uint32(nameBytes[6])<<16 | uint32(nameBytes[7])<<24
	} else {
		end := bytes.IndexByte(nameBytes, 0)
		if end < 0 {
			end = len(nameBytes)
		}
		sym.ShortName = string(nameBytes[:end])
	}

	var err error
	if sym.Value, err = common.ReadUint32LE(r); err != nil {
		return sym, err
	}
	sectionNumber, err := common.ReadInt16LE(r)
	if err != nil {
		return sym, err
	}
	sym.SectionNumber = sectionNumber
	if sym.SymbolType, err = common.ReadUint16LE(r); err != nil {
		return sym, err
	}
	if sym.StorageClass, err = common.ReadUint8(r); err != nil {
		return sym, err
	}
	auxCount, err := common.ReadUint8(r)
	if err != nil {
		return sym, err
	}
	for a := 0; a < int(auxCount); a++ {
		var aux [AuxRecordSize]byte
		if _, err := io.ReadFull(r, aux[:]); err != nil {
			return sym, common.NewTruncatedStream("readSymbol.aux", err)
		}
		sym.AuxRecords = append(sym.AuxRecords, aux)
	}
	return sym, nil
}

// AuxCount returns the on-disk auxiliary record count for this symbol.
func (s *Symbol) AuxCount() uint8 {
	return uint8(len(s.AuxRecords))
}

// Write emits the 18-byte record and any auxiliary records.
func (s *Symbol) Write(w io.Writer) error {
	nameBytes := make([]byte, 8)
	if s.StringTableOffset != 0 {
		// first 4 bytes stay zero, signalling a string-table offset follows
		nameBytes[4] = byte(s.StringTableOffset)
		nameBytes[5] = byte(s.StringTableOffset >> 8)
		nameBytes[6] = byte(s.StringTableOffset >> 16)
		nameBytes[7] = byte(s.StringTableOffset >> 24)
	} else {
		copy(nameBytes, s.ShortName)
	}
	if _, err := w.Write(nameBytes); err != nil {
		return err
	}
	if err := common.WriteUint32LE(w, s.Value); err != nil {
		return err
	}
	if err := common.WriteUint16LE(w, uint16(s.SectionNumber)); err != nil {
		return err
	}
	if err := common.WriteUint16LE(w, s.SymbolType); err != nil {
		return err
	}
	if err := common.WriteUint8(w, s.StorageClass); err != nil {
		return err
	}
	if err := common.WriteUint8(w, s.AuxCount()); err != nil {
		return err
	}
	for _, aux := range s.AuxRecords {
		if _, err := w.Write(aux[:]); err != nil {
			return err
		}
	}
	return nil
}

// TotalSymCount computes FileHeader.SymCount for a symbol list: each
// symbol contributes 1 + its auxiliary record count (spec.md §3).
func TotalSymCount(syms []Symbol) uint32 {
	var n uint32
	for _, s := range syms {
		n += 1 + uint32(s.AuxCount())
	}
	return n
}
