package coff

import (
	"bytes"
	"io"

	"pecodec/common"
)

// StringTable is the COFF string table: a 4-byte little-endian size
// (inclusive of itself) followed by a packed run of NUL-terminated ASCII
// strings (spec.md §3/§6).
//
// Design Notes (spec.md §9) flags an inconsistency in the source between
// two offset conventions. This implementation picks, and applies
// consistently on both read and write, the specification convention:
// offsets are relative to the start of the table including its own
// 4-byte size field, so the first stored string sits at offset 4.
type StringTableEntry struct {
	Offset uint32
	Value  string
}

type StringTable struct {
	entries []StringTableEntry
}

// ReadStringTable parses a string table starting at the current stream
// position. size==0 is tolerated (spec.md §4.5, observed in malformed
// .res-style files) and treated as an empty table.
func ReadStringTable(r io.Reader) (*StringTable, error) {
	size, err := common.ReadUint32LE(r)
	if err != nil {
		return nil, common.NewTruncatedStream("ReadStringTable.size", err)
	}
	t := &StringTable{}
	if size < 4 {
		return t, nil
	}
	body := make([]byte, size-4)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, common.NewTruncatedStream("ReadStringTable.body", err)
	}

	offset := uint32(4)
	start := 0
	for start < len(body) {
		idx := bytes.IndexByte(body[start:], 0)
		if idx < 0 {
			// Trailing bytes without a terminator: keep them verbatim as
			// the final entry rather than dropping data silently.
			t.entries = append(t.entries, StringTableEntry{Offset: offset, Value: string(body[start:])})
			break
		}
		t.entries = append(t.entries, StringTableEntry{Offset: offset, Value: string(body[start : start+idx])})
		consumed := idx + 1
		start += consumed
		offset += uint32(consumed)
	}
	return t, nil
}

// Size returns the on-disk size of the table including its 4-byte
// length prefix (spec.md §3 invariant).
func (t *StringTable) Size() uint32 {
	total := uint32(4)
	for _, e := range t.entries {
		total += uint32(len(e.Value)) + 1
	}
	return total
}

// Add appends s and returns its byte offset.
func (t *StringTable) Add(s string) uint32 {
	offset := t.Size()
	t.entries = append(t.entries, StringTableEntry{Offset: offset, Value: s})
	return offset
}

// Remove deletes the entry at offset, if any. Subsequent entries keep
// their recorded Offset until Renumber is called, which repacks the
// table contiguously and reports the resulting offset changes so
// callers can patch any Symbol referencing a moved string. Write does
// not renumber; it always emits the strings back to back.
func (t *StringTable) Remove(offset uint32) {
	for i, e := range t.entries {
		if e.Offset == offset {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// String returns the value stored at offset.
func (t *StringTable) String(offset uint32) (string, bool) {
	for _, e := range t.entries {
		if e.Offset == offset {
			return e.Value, true
		}
	}
	return "", false
}

// Entries returns the table contents in on-disk order.
func (t *StringTable) Entries() []StringTableEntry {
	return t.entries
}

// Renumber repacks entries contiguously starting at offset 4 and returns
// the old->new offset mapping for entries whose offset changed.
func (t *StringTable) Renumber() map[uint32]uint32 {
	changed := make(map[uint32]uint32)
	offset := uint32(4)
	for i, e := range t.entries {
		if e.Offset != offset {
			changed[e.Offset] = offset
			t.entries[i].Offset = offset
		}
		offset += uint32(len(e.Value)) + 1
	}
	return changed
}

// Write emits the 4-byte size prefix followed by the packed strings.
func (t *StringTable) Write(w io.Writer) error {
	if err := common.WriteUint32LE(w, t.Size()); err != nil {
		return err
	}
	for _, e := range t.entries {
		if err := common.WriteCString(w, e.Value); err != nil {
			return err
		}
	}
	return nil
}
