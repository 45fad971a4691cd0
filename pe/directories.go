package pe

import (
	"io"

	"pecodec/coff"
	"pecodec/common"
)

// parseDirectories walks the data directory array and, for each present
// entry, parses the corresponding table (spec.md §4.7 step 3), then
// captures the overlay and certificate table (step 4).
func (img *Image) parseDirectories(s common.Stream, opts ReadOptions) error {
	oh := img.OptionalHeader

	if d := oh.Directory(coff.DirImport); d.RVA != 0 {
		imports, err := img.parseImportDescriptors(d)
		if err != nil {
			return err
		}
		img.Imports = imports
	}

	if d := oh.Directory(coff.DirDelayImport); d.RVA != 0 {
		delay, err := img.parseDelayImportDescriptors(d)
		if err != nil {
			return err
		}
		img.DelayImports = delay
	}

	if d := oh.Directory(coff.DirBaseReloc); d.RVA != 0 {
		br, err := img.parseBaseRelocations(d)
		if err != nil {
			return err
		}
		img.BaseRelocations = br
	}

	if d := oh.Directory(coff.DirExport); d.RVA != 0 {
		ex, err := img.parseExportDirectory(d)
		if err != nil {
			img.logMalformed("parseExportDirectory", err)
		} else {
			img.Exports = ex
		}
	}

	return img.parseCertificatesAndOverlay(s, opts)
}

// sectionsEndOffset returns the highest file offset reached by any
// section's raw data, relocations, or line numbers, as read from disk
// (not from a not-yet-recomputed layout).
func (img *Image) sectionsEndOffset() int64 {
	var end int64
	for _, sec := range img.Sections {
		h := sec.Header
		if v := int64(h.PointerToRawData) + int64(h.SizeOfRawData); v > end {
			end = v
		}
		if v := int64(h.PointerToRelocations) + int64(h.NumberOfRelocations)*coff.RelocationEntrySize; v > end {
			end = v
		}
		if v := int64(h.PointerToLineNumbers) + int64(h.NumberOfLineNumbers)*coff.LineNumberEntrySize; v > end {
			end = v
		}
	}
	return end
}

func (img *Image) parseCertificatesAndOverlay(s common.Stream, opts ReadOptions) error {
	certDir := img.OptionalHeader.Directory(coff.DirCertificate)
	sectionsEnd := img.sectionsEndOffset()

	fileLen, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	if certDir.RVA != 0 {
		certs, err := img.parseCertificates(s, certDir)
		if err != nil {
			return err
		}
		img.Certificates = certs

		overlayLen := int64(certDir.RVA) - sectionsEnd
		if overlayLen > 0 {
			if overlayLen < 8 {
				if _, err := s.Seek(sectionsEnd, io.SeekStart); err != nil {
					return err
				}
				buf := make([]byte, overlayLen)
				if _, err := io.ReadFull(s, buf); err != nil {
					return common.NewTruncatedStream("parseCertificatesAndOverlay.pad", err)
				}
				if !allZero(buf) && !opts.has(StripOverlay) {
					img.Overlay = buf
				}
			} else if !opts.has(StripOverlay) {
				if _, err := s.Seek(sectionsEnd, io.SeekStart); err != nil {
					return err
				}
				buf := make([]byte, overlayLen)
				if _, err := io.ReadFull(s, buf); err != nil {
					return common.NewTruncatedStream("parseCertificatesAndOverlay.overlay", err)
				}
				img.Overlay = buf
			}
		}
		return nil
	}

	if sectionsEnd < fileLen && !opts.has(StripOverlay) {
		if _, err := s.Seek(sectionsEnd, io.SeekStart); err != nil {
			return err
		}
		buf := make([]byte, fileLen-sectionsEnd)
		if _, err := io.ReadFull(s, buf); err != nil {
			return common.NewTruncatedStream("parseCertificatesAndOverlay.tail", err)
		}
		img.Overlay = buf
	}
	return nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
