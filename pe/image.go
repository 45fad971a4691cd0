package pe

import (
	"io"
	"log"

	"pecodec/coff"
	"pecodec/common"
	"pecodec/internal/diag"
)

// ReadOptionFlag is a recognized bit in ReadOptions (spec.md §6).
type ReadOptionFlag uint32

const (
	// StripOverlay discards overlay bytes entirely instead of capturing
	// them into Image.Overlay.
	StripOverlay ReadOptionFlag = 1 << iota
)

type ReadOptions struct {
	Flags ReadOptionFlag

	// Logger, if set, receives non-fatal directory-parse diagnostics
	// (malformed certificate entries, unresolved name RVAs) that the
	// parser otherwise recovers from silently.
	Logger *log.Logger
}

func (o ReadOptions) has(f ReadOptionFlag) bool { return o.Flags&f != 0 }

type WriteOptions struct{}

// Image is the in-memory model of a PE image or a bare COFF object file
// (spec.md §3). IsObject is true when the input had no DOS header / PE
// signature (a plain .obj); DosHeader, DosStub, and the post-section
// directories are then all zero.
type Image struct {
	IsObject bool

	DosHeader *DOSHeader
	DosStub   []byte

	FileHeader     coff.FileHeader
	OptionalHeader *coff.OptionalHeader

	Sections []coff.Section

	Symbols     []coff.Symbol
	StringTable *coff.StringTable

	Overlay []byte

	Exports         *ExportDirectory
	Imports         []ImportDescriptor
	DelayImports    []DelayImportDescriptor
	BaseRelocations *BaseRelocationDirectory
	Certificates    []AttributeCertificate

	layoutSuspended  bool
	sectionCursorEnd uint32
	diag             *diag.Logger
}

// logMalformed reports a recovered directory-parse diagnostic if the
// image was parsed with a Logger set; otherwise it is a no-op.
func (img *Image) logMalformed(op string, cause error) {
	if img.diag == nil {
		return
	}
	img.diag.MalformedDirectory(common.NewMalformedDirectory(op, cause))
}

// New returns an empty Image ready for a builder API to populate before
// Write; IsObject defaults to false (a PE image).
func New() *Image {
	return &Image{StringTable: &coff.StringTable{}}
}

// Parse reads an image from a seekable stream (spec.md C7/§4.7).
func Parse(s common.Stream, opts ReadOptions) (*Image, error) {
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return nil, common.NewStreamNotSeekable("Parse")
	}

	peek := make([]byte, 2)
	if _, err := io.ReadFull(s, peek); err != nil {
		return nil, common.NewTruncatedStream("Parse.peek", err)
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return nil, common.NewStreamNotSeekable("Parse")
	}

	isMZ := peek[0] == 'M' && peek[1] == 'Z'
	if !isMZ {
		return parseObject(s)
	}
	return parsePEImage(s, opts)
}

func parseObject(s common.Stream) (*Image, error) {
	img := &Image{IsObject: true}

	fh, err := coff.ReadFileHeader(s)
	if err != nil {
		return nil, err
	}
	img.FileHeader = *fh

	if fh.OptionalHeaderSize > 0 {
		oh, err := coff.ReadOptionalHeader(s, fh.OptionalHeaderSize)
		if err != nil {
			return nil, err
		}
		img.OptionalHeader = oh
	}

	if err := readSectionsAndSymbols(s, img); err != nil {
		return nil, err
	}
	return img, nil
}

func parsePEImage(s common.Stream, opts ReadOptions) (*Image, error) {
	img := &Image{diag: diag.New(opts.Logger)}

	dos, err := readDOSHeader(s)
	if err != nil {
		return nil, err
	}
	img.DosHeader = dos

	stubLen := int64(dos.Lfanew) - DOSHeaderSize
	if stubLen < 0 {
		return nil, common.NewInvalidImageSignature("parsePEImage.stub", nil)
	}
	img.DosStub = make([]byte, stubLen)
	if stubLen > 0 {
		if _, err := io.ReadFull(s, img.DosStub); err != nil {
			return nil, common.NewTruncatedStream("parsePEImage.stub", err)
		}
	}

	if _, err := s.Seek(int64(dos.Lfanew), io.SeekStart); err != nil {
		return nil, err
	}
	sig, err := common.ReadUint32BE(s)
	if err != nil {
		return nil, common.NewTruncatedStream("parsePEImage.signature", err)
	}
	if sig != ImageNTSignature {
		return nil, common.NewInvalidImageSignature("parsePEImage.signature", nil)
	}

	fh, err := coff.ReadFileHeader(s)
	if err != nil {
		return nil, err
	}
	img.FileHeader = *fh

	if fh.OptionalHeaderSize == 0 {
		return nil, common.NewUnsupportedOptionalHeaderMagic("parsePEImage.optionalHeader", 0)
	}
	oh, err := coff.ReadOptionalHeader(s, fh.OptionalHeaderSize)
	if err != nil {
		return nil, err
	}
	img.OptionalHeader = oh

	if err := readSectionsAndSymbols(s, img); err != nil {
		return nil, err
	}

	if err := img.parseDirectories(s, opts); err != nil {
		return nil, err
	}

	return img, nil
}

// readSectionsAndSymbols reads the section table (headers then, per
// header, bodies via seek) followed by the symbol table and string
// table, shared between object files and PE images (spec.md §4.4/§4.7).
func readSectionsAndSymbols(s common.Stream, img *Image) error {
	headers, err := coff.ReadSectionHeaders(s, int(img.FileHeader.SectionCount))
	if err != nil {
		return err
	}
	resumeAt, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	img.Sections = make([]coff.Section, 0, len(headers))
	for _, h := range headers {
		sec, err := coff.ReadSectionBody(s, h, resumeAt)
		if err != nil {
			return err
		}
		img.Sections = append(img.Sections, sec)
		resumeAt, err = s.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
	}

	if img.FileHeader.SymTablePtr != 0 {
		if _, err := s.Seek(int64(img.FileHeader.SymTablePtr), io.SeekStart); err != nil {
			return err
		}
		syms, err := coff.ReadSymbols(s, int(img.FileHeader.SymCount))
		if err != nil {
			return err
		}
		img.Symbols = syms

		strs, err := coff.ReadStringTable(s)
		if err != nil {
			return err
		}
		img.StringTable = strs
	} else {
		img.StringTable = &coff.StringTable{}
	}
	return nil
}

// Write serializes the image, running a final layout pass first
// (spec.md §4.9: "Write always performs a final layout pass regardless").
func (img *Image) Write(w common.Stream, opts WriteOptions) error {
	img.syncExportDirectory()
	img.UpdateLayout()

	if img.IsObject {
		return img.writeObject(w)
	}
	return img.writePEImage(w)
}

// syncExportDirectory regenerates the .edata section's raw bytes from
// Exports before layout runs, so a mutated export table is reflected on
// disk (spec.md §4.8 build/emit). The section must already exist at its
// intended virtual address — add it with AddSection and set
// Header.VirtualAddress before assigning Exports, the same way a caller
// places any other section's content.
func (img *Image) syncExportDirectory() {
	if img.Exports == nil || img.OptionalHeader == nil {
		return
	}
	sec := img.SectionByName(".edata")
	if sec == nil {
		return
	}
	sec.RawData = img.Exports.write(sec.Header.VirtualAddress)
	sec.Header.SizeOfRawData = uint32(len(sec.RawData))
	sec.Header.VirtualSize = uint32(len(sec.RawData))
	img.OptionalHeader.SetDirectory(coff.DirExport, coff.DataDirectory{
		RVA:  sec.Header.VirtualAddress,
		Size: uint32(len(sec.RawData)),
	})
}

func (img *Image) writeObject(w io.Writer) error {
	if err := img.FileHeader.Write(w); err != nil {
		return err
	}
	if img.OptionalHeader != nil {
		if err := img.OptionalHeader.Write(w); err != nil {
			return err
		}
	}
	for i := range img.Sections {
		if err := img.Sections[i].WriteHeader(w); err != nil {
			return err
		}
	}
	for i := range img.Sections {
		if err := img.Sections[i].WriteBody(w); err != nil {
			return err
		}
	}
	return img.writeSymbolsAndStrings(w)
}

func (img *Image) writeSymbolsAndStrings(w io.Writer) error {
	for i := range img.Symbols {
		if err := img.Symbols[i].Write(w); err != nil {
			return err
		}
	}
	if img.StringTable != nil {
		if err := img.StringTable.Write(w); err != nil {
			return err
		}
	}
	return nil
}

// writePEImage emits DOS header, DOS stub, signature, optional header
// (initial pass), sections, overlay, certificates, then rewinds to patch
// the certificate directory and re-emit the optional header in place
// (spec.md §4.7).
func (img *Image) writePEImage(w common.Stream) error {
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := img.DosHeader.write(w); err != nil {
		return err
	}
	if _, err := w.Write(img.DosStub); err != nil {
		return err
	}
	if err := common.WriteUint32BE(w, ImageNTSignature); err != nil {
		return err
	}
	if err := img.FileHeader.Write(w); err != nil {
		return err
	}

	optionalHeaderOffset, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := img.OptionalHeader.Write(w); err != nil {
		return err
	}

	for i := range img.Sections {
		if err := img.Sections[i].WriteHeader(w); err != nil {
			return err
		}
	}

	for i := range img.Sections {
		h := img.Sections[i].Header
		if h.Characteristics&coff.SectionCntUninitializedData != 0 {
			continue
		}
		if len(img.Sections[i].RawData) == 0 && len(img.Sections[i].Relocations) == 0 && len(img.Sections[i].LineNumbers) == 0 {
			continue
		}
		if _, err := w.Seek(int64(h.PointerToRawData), io.SeekStart); err != nil {
			return err
		}
		if err := img.Sections[i].WriteBody(w); err != nil {
			return err
		}
	}

	if err := img.writeSymbolsAndStrings(w); err != nil {
		return err
	}

	if _, err := w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	if len(img.Overlay) > 0 {
		if _, err := w.Write(img.Overlay); err != nil {
			return err
		}
	}

	certStart, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	if len(img.Certificates) > 0 {
		for i := range img.Certificates {
			pos, err := w.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}
			pad := int(common.AlignUp(uint32(pos), 8)) - int(pos)
			if pad > 0 {
				if _, err := w.Write(make([]byte, pad)); err != nil {
					return err
				}
			}
			if err := img.Certificates[i].write(w); err != nil {
				return err
			}
		}
		certEnd, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		img.OptionalHeader.SetDirectory(coff.DirCertificate, coff.DataDirectory{
			RVA:  uint32(certStart),
			Size: uint32(certEnd - certStart),
		})
	} else if len(img.OptionalHeader.DataDirectories) > coff.DirCertificate {
		img.OptionalHeader.SetDirectory(coff.DirCertificate, coff.DataDirectory{})
	}

	end, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := img.recomputeChecksum(w, end); err != nil {
		return err
	}

	if _, err := w.Seek(optionalHeaderOffset, io.SeekStart); err != nil {
		return err
	}
	if err := img.OptionalHeader.Write(w); err != nil {
		return err
	}
	if _, err := w.Seek(end, io.SeekStart); err != nil {
		return err
	}
	return nil
}

// SuspendLayout gates the implicit UpdateLayout that otherwise runs
// after each mutating operation (spec.md §5/§6).
func (img *Image) SuspendLayout() { img.layoutSuspended = true }

// ResumeLayout re-enables the implicit layout pass and runs it once
// immediately.
func (img *Image) ResumeLayout() {
	img.layoutSuspended = false
	img.UpdateLayout()
}

func (img *Image) maybeUpdateLayout() {
	if !img.layoutSuspended {
		img.UpdateLayout()
	}
}
