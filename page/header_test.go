package page

import "testing"

func TestHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := NewHeader(FileTypeColumnFixed)
	h.PageCount = 7
	h.FreedCount = 2
	h.FreelistHead = 3

	var p Page
	h.Encode(&p)

	got, err := Decode(&p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.FileType != h.FileType || got.PageCount != h.PageCount ||
		got.FreedCount != h.FreedCount || got.FreelistHead != h.FreelistHead {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
	if !Validate(&p, got) {
		t.Fatalf("Validate() = false on a freshly encoded header")
	}
}

func TestHeaderChecksumDetectsCorruption(t *testing.T) {
	h := NewHeader(FileTypeColumnVariable)
	var p Page
	h.Encode(&p)

	p.PutByte(offPageCount, p.GetByte(offPageCount)^0xFF)

	got, err := Decode(&p)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if Validate(&p, got) {
		t.Fatalf("Validate() = true after corrupting a field, want false")
	}
}

func TestHeaderIdentifierMismatchIsFatal(t *testing.T) {
	var p Page
	p.PutByte(offIdentifier, 'X')

	if _, err := Decode(&p); err == nil {
		t.Fatalf("Decode of a page with a bad identifier succeeded")
	}
}
