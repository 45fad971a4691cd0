package pe

import (
	"testing"

	"pecodec/coff"
)

func TestCrossCheckSectionCountTrimsOverRead(t *testing.T) {
	img := &Image{Sections: make([]coff.Section, 5)}
	crossCheckSectionCount(img, 3)
	if len(img.Sections) != 3 {
		t.Fatalf("got %d sections, want 3", len(img.Sections))
	}
	if img.FileHeader.SectionCount != 3 {
		t.Errorf("SectionCount = %d, want 3", img.FileHeader.SectionCount)
	}
}

func TestCrossCheckSectionCountNoopWhenNotSmaller(t *testing.T) {
	img := &Image{Sections: make([]coff.Section, 5)}
	crossCheckSectionCount(img, 5)
	if len(img.Sections) != 5 {
		t.Errorf("got %d sections, want unchanged 5", len(img.Sections))
	}

	crossCheckSectionCount(img, 8)
	if len(img.Sections) != 5 {
		t.Errorf("expected no growth past what was actually parsed, got %d sections", len(img.Sections))
	}
}

func TestCrossCheckSectionCountNoopWhenUnknown(t *testing.T) {
	img := &Image{Sections: make([]coff.Section, 5)}
	crossCheckSectionCount(img, 0)
	if len(img.Sections) != 5 {
		t.Errorf("expected no trimming when veloCount is unknown (0), got %d sections", len(img.Sections))
	}
}
