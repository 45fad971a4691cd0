// Package pe implements the PE extension layered above coff: the DOS
// header and stub, the PE signature, the post-section directories
// (exports, imports, delay imports, base relocations, attribute
// certificates), the layout engine that recomputes on-disk geometry on
// write, the checksum algorithm, and the RVA resolver. Image is the
// entry point for end-to-end parse/emit, mirroring how the teacher's
// perw.PEFile drives debug/pe underneath a single struct.
package pe

import (
	"io"

	"pecodec/common"
)

// DOS header signature values (spec.md §4.6). Despite being ASCII bytes
// on disk, e_magic is read/written as a big-endian uint16 so its numeric
// value spells the two-letter signature directly (0x4D5A == "MZ").
const (
	ImageDOSSignature   uint16 = 0x4D5A // "MZ"
	ImageOS2Signature   uint16 = 0x4E45 // "NE"
	ImageOS2SignatureLE uint16 = 0x4C45 // "LE"
)

// ImageNTSignature is the 4-byte PE signature, likewise read/written
// big-endian so 0x50450000 spells "PE\0\0".
const ImageNTSignature uint32 = 0x50450000

// DOSHeaderSize is the fixed legacy header size (spec.md §4.6/§6).
const DOSHeaderSize = 64

// DOSHeader is the 64-byte legacy MZ header. Only Magic and Lfanew are
// individually meaningful to this codec; the remaining legacy fields
// (checksum, relocation table pointer, overlay number, ...) are kept
// as opaque bytes so an unmodified image round-trips byte for byte.
type DOSHeader struct {
	Magic  uint16
	Middle [58]byte // bytes [2:60): everything between e_magic and e_lfanew
	Lfanew uint32   // absolute file offset of the PE signature
}

func readDOSHeader(r io.Reader) (*DOSHeader, error) {
	h := &DOSHeader{}
	var err error
	if h.Magic, err = common.ReadUint16BE(r); err != nil {
		return nil, common.NewTruncatedStream("readDOSHeader.magic", err)
	}
	if _, err := io.ReadFull(r, h.Middle[:]); err != nil {
		return nil, common.NewTruncatedStream("readDOSHeader.middle", err)
	}
	if h.Lfanew, err = common.ReadUint32LE(r); err != nil {
		return nil, common.NewTruncatedStream("readDOSHeader.lfanew", err)
	}
	switch h.Magic {
	case ImageDOSSignature, ImageOS2Signature, ImageOS2SignatureLE:
	default:
		return nil, common.NewInvalidImageSignature("readDOSHeader", nil)
	}
	return h, nil
}

func (h *DOSHeader) write(w io.Writer) error {
	if err := common.WriteUint16BE(w, h.Magic); err != nil {
		return err
	}
	if _, err := w.Write(h.Middle[:]); err != nil {
		return err
	}
	return common.WriteUint32LE(w, h.Lfanew)
}

// NewDOSHeader returns a minimal, conventional DOS header (the classic
// "This program cannot be run in DOS mode" stub is not reproduced here;
// callers building an image from scratch supply their own stub bytes).
func NewDOSHeader(lfanew uint32) *DOSHeader {
	return &DOSHeader{Magic: ImageDOSSignature, Lfanew: lfanew}
}
