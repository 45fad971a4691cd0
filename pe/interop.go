package pe

import (
	"io"

	velopepe "github.com/Velocidex/go-pe"
)

// FromVelocidexImage builds an Image by re-reading a file a caller has
// already located and identified as a PE, using
// github.com/Velocidex/go-pe's vtype/Profile-based header scanner (see
// other_examples/Velocidex-go-pe__headers.go and __rva.go:
// Profile.IMAGE_DOS_HEADER -> IMAGE_DOS_HEADER.NTHeader() ->
// IMAGE_NT_HEADERS.FileHeader().NumberOfSections()) as a second,
// independent parser. That library trades write-back fidelity for read
// speed by projecting struct fields directly onto the mapped bytes;
// this module needs full read/write round-tripping, so
// FromVelocidexImage only borrows the upstream scanner's section count
// to sanity-check its own parse before returning it.
//
// s must also satisfy common.Stream so this module's own Parse can run
// against it.
func FromVelocidexImage(reader io.ReaderAt, s interface {
	io.Reader
	io.Writer
	io.Seeker
}, opts ReadOptions) (*Image, error) {
	img, err := Parse(s, opts)
	if err != nil {
		return nil, err
	}

	profile := velopepe.NewPeProfile()
	dos := profile.IMAGE_DOS_HEADER(reader, 0)
	if nt := dos.NTHeader(); nt != nil {
		crossCheckSectionCount(img, int(nt.FileHeader().NumberOfSections()))
	}
	return img, nil
}

// crossCheckSectionCount drops any section img parsed beyond veloCount,
// the section count an independent scanner reported for the same file,
// guarding against a truncated or malformed section table being
// silently over-read. veloCount <= 0 means the independent scanner
// could not determine a count, so no action is taken.
func crossCheckSectionCount(img *Image, veloCount int) {
	if veloCount > 0 && veloCount < len(img.Sections) {
		img.Sections = img.Sections[:veloCount]
		img.FileHeader.SectionCount = uint16(veloCount)
	}
}
