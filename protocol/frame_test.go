package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestAppendFrame(t *testing.T) {
	got, err := AppendFrame(nil, SeqDest, nil)
	if err != nil {
		t.Fatal(err)
	}
	expected := []byte{0x05, 0x10, 0x9E, 0x81, SyncByte}
	if !bytes.Equal(got, expected) {
		t.Errorf("Empty frame: expected %x, got %x", expected, got)
	}

	if _, err := AppendFrame(nil, SeqDest, make([]byte, PayloadMax+1)); !errors.Is(err, ErrFrameTooLong) {
		t.Errorf("Expected ErrFrameTooLong, got %v", err)
	}
	if _, err := AppendFrame(nil, SeqDest, make([]byte, PayloadMax)); err != nil {
		t.Errorf("Full frame rejected: %v", err)
	}
}

func TestScannerRoundTrip(t *testing.T) {
	var stream []byte
	payloads := [][]byte{{0x01}, {0x02, 0x03, 0x04}, {}, bytes.Repeat([]byte{0x7E}, PayloadMax)}
	for i, p := range payloads {
		var err error
		stream, err = AppendFrame(stream, NextSeq(uint8(i)), p)
		if err != nil {
			t.Fatal(err)
		}
	}

	s := NewScanner(bytes.NewReader(stream))
	for i, p := range payloads {
		f, err := s.Next()
		if err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
		if f.Seq != NextSeq(uint8(i)) || !bytes.Equal(f.Payload, p) {
			t.Errorf("Frame %d: got seq 0x%02x payload %x", i, f.Seq, f.Payload)
		}
	}
	if _, err := s.Next(); err != io.EOF {
		t.Errorf("Expected io.EOF at end of stream, got %v", err)
	}
	if s.Dropped != 0 {
		t.Errorf("Dropped %d bytes of a clean stream", s.Dropped)
	}
}

func TestScannerResync(t *testing.T) {
	good, _ := AppendFrame(nil, 0x11, []byte{0x2A})
	corrupt, _ := AppendFrame(nil, 0x10, []byte{0x01, 0x02})
	corrupt[3] ^= 0xFF

	var stream []byte
	stream = append(stream, 0x00, 0x42, 0x7E) // noise ending in a sync byte
	stream = append(stream, corrupt...)       // bad CRC
	stream = append(stream, 0x99, 0x01, 0x7E) // bad length
	stream = append(stream, good...)

	s := NewScanner(bytes.NewReader(stream))
	f, err := s.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Seq != 0x11 || !bytes.Equal(f.Payload, []byte{0x2A}) {
		t.Errorf("Unexpected frame after resync: %+v", f)
	}
	if s.Dropped == 0 {
		t.Error("Expected corrupt bytes to be dropped")
	}
}

// byteReader hands out one byte per Read.
type byteReader struct{ data []byte }

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestScannerPartialReads(t *testing.T) {
	stream, _ := AppendFrame(nil, 0x1F, []byte{0x10, 0x20, 0x30})

	s := NewScanner(&byteReader{data: stream})
	f, err := s.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Seq != 0x1F || !bytes.Equal(f.Payload, []byte{0x10, 0x20, 0x30}) {
		t.Errorf("Unexpected frame %+v", f)
	}
}

func TestScannerTruncated(t *testing.T) {
	stream, _ := AppendFrame(nil, 0x10, []byte{0x01, 0x02})

	s := NewScanner(bytes.NewReader(stream[:4]))
	if _, err := s.Next(); err != io.ErrUnexpectedEOF {
		t.Errorf("Expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestNextSeq(t *testing.T) {
	if got := NextSeq(0x10); got != 0x11 {
		t.Errorf("NextSeq(0x10) = 0x%02x", got)
	}
	if got := NextSeq(0x1F); got != 0x10 {
		t.Errorf("NextSeq(0x1f) = 0x%02x", got)
	}
}
