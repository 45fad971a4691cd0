package common

import (
	"bytes"
	"testing"
)

func TestAlignUp(t *testing.T) {
	cases := []struct {
		v, a, want uint32
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{10, 0, 10},
	}
	for _, c := range cases {
		if got := AlignUp(c.v, c.a); got != c.want {
			t.Errorf("AlignUp(%d,%d) = %d, want %d", c.v, c.a, got, c.want)
		}
	}
}

func TestUint32LERoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUint32LE(&buf, 0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	got, err := ReadUint32LE(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xDEADBEEF {
		t.Errorf("got 0x%x, want 0xDEADBEEF", got)
	}
}

func TestReadUint32LETruncated(t *testing.T) {
	buf := bytes.NewReader([]byte{1, 2})
	if _, err := ReadUint32LE(buf); err == nil {
		t.Fatal("expected truncation error")
	} else if !errIsKind(err, KindTruncatedStream) {
		t.Errorf("expected TruncatedStream, got %v", err)
	}
}

func errIsKind(err error, kind ErrorKind) bool {
	ce, ok := err.(*CodecError)
	return ok && ce.Kind == kind
}

func TestFixedASCIIRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFixedASCII(&buf, ".text", 8); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFixedASCII(&buf, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got != ".text" {
		t.Errorf("got %q, want %q", got, ".text")
	}
}

func TestCStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCString(&buf, "kernel32.dll"); err != nil {
		t.Fatal(err)
	}
	got, err := ReadCString(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != "kernel32.dll" {
		t.Errorf("got %q, want %q", got, "kernel32.dll")
	}
}

func TestReadCStringUTF16(t *testing.T) {
	// "AB" in UTF-16LE followed by a double-NUL terminator.
	buf := bytes.NewReader([]byte{'A', 0, 'B', 0, 0, 0})
	got, err := ReadCStringUTF16(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != "AB" {
		t.Errorf("got %q, want %q", got, "AB")
	}
}
