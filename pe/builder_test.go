package pe

import (
	"testing"

	"pecodec/coff"
)

func TestAddSectionAndRemoveSection(t *testing.T) {
	img := New()
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32Plus, FileAlignment: 0x200}

	sec, err := img.AddSection(".data", coff.SectionCntInitializedData|coff.SectionMemRead|coff.SectionMemWrite, []byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if sec.Header.SizeOfRawData != 3 {
		t.Errorf("SizeOfRawData = %d, want 3", sec.Header.SizeOfRawData)
	}
	if len(img.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(img.Sections))
	}

	if !img.RemoveSection(".data") {
		t.Fatal("expected RemoveSection to find .data")
	}
	if len(img.Sections) != 0 {
		t.Errorf("got %d sections after remove, want 0", len(img.Sections))
	}
}

func TestAddSectionRejectsLongName(t *testing.T) {
	img := New()
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32Plus}
	if _, err := img.AddSection(".way.too.long", 0, nil); err == nil {
		t.Fatal("expected BadSectionName")
	}
}

func TestAddAndRemoveSymbol(t *testing.T) {
	img := New()
	idx := img.AddSymbol(coff.Symbol{ShortName: "_start"})
	if len(img.Symbols) != 1 {
		t.Fatalf("got %d symbols, want 1", len(img.Symbols))
	}
	if !img.RemoveSymbol(idx) {
		t.Fatal("expected RemoveSymbol to succeed")
	}
	if len(img.Symbols) != 0 {
		t.Errorf("got %d symbols after remove, want 0", len(img.Symbols))
	}
}

func TestAddString(t *testing.T) {
	img := New()
	off := img.AddString("hello")
	v, ok := img.StringTable.String(off)
	if !ok || v != "hello" {
		t.Errorf("String(%d) = %q, %v, want hello, true", off, v, ok)
	}
}

func TestAddDataDirectory(t *testing.T) {
	img := New()
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32Plus}
	img.AddDataDirectory(coff.DirExport, coff.DataDirectory{RVA: 0x1000, Size: 0x40})
	if img.OptionalHeader.Directory(coff.DirExport).RVA != 0x1000 {
		t.Error("expected AddDataDirectory to set the export directory")
	}
}

func TestAddRelocationAndLineNumber(t *testing.T) {
	img := New()
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32Plus, FileAlignment: 0x200}
	if _, err := img.AddSection(".text", coff.SectionCntCode, []byte{0x90}); err != nil {
		t.Fatal(err)
	}

	if !img.AddRelocation(".text", coff.Relocation{VirtualAddress: 0x10, SymbolTableIndex: 1, Type: 6}) {
		t.Fatal("expected AddRelocation to find .text")
	}
	if !img.AddLineNumber(".text", coff.LineNumber{RawType: 1, Line: 42}) {
		t.Fatal("expected AddLineNumber to find .text")
	}

	sec := img.SectionByName(".text")
	if sec == nil || len(sec.Relocations) != 1 || len(sec.LineNumbers) != 1 {
		t.Fatalf("section state = %+v", sec)
	}
	if sec.Header.NumberOfRelocations != 1 || sec.Header.NumberOfLineNumbers != 1 {
		t.Errorf("header counts = %d/%d, want 1/1", sec.Header.NumberOfRelocations, sec.Header.NumberOfLineNumbers)
	}
}

func TestSuspendResumeLayout(t *testing.T) {
	img := New()
	img.OptionalHeader = &coff.OptionalHeader{Magic: coff.MagicPE32Plus, FileAlignment: 0x200}
	img.SuspendLayout()

	if _, err := img.AddSection(".text", coff.SectionCntCode, []byte{0x90}); err != nil {
		t.Fatal(err)
	}
	// While suspended, PointerToRawData should not have been assigned yet.
	sec := img.SectionByName(".text")
	if sec.Header.PointerToRawData != 0 {
		t.Errorf("expected layout to stay suspended, got PointerToRawData=%d", sec.Header.PointerToRawData)
	}

	img.ResumeLayout()
	sec = img.SectionByName(".text")
	if sec.Header.PointerToRawData == 0 {
		t.Error("expected ResumeLayout to run the layout pass")
	}
}
