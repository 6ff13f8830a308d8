package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Magic is the tag the producer writes into Header.Magic.
const Magic = "ManiaPlanet_Telemetry"

// SnapshotSize is the packed byte size of a Snapshot record.
var SnapshotSize = binary.Size(Snapshot{})

var (
	ErrShortBuffer  = errors.New("buffer shorter than snapshot record")
	ErrInvalidMagic = errors.New("unexpected header magic")
	ErrSizeMismatch = errors.New("declared size does not match record size")
)

// the producer writes in host order, which is little endian on all supported platforms
var byteOrder = binary.LittleEndian

// Decode decodes a complete record. Bytes beyond SnapshotSize are ignored.
func Decode(data []byte) (*Snapshot, error) {
	if len(data) < SnapshotSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShortBuffer, len(data), SnapshotSize)
	}
	ret := &Snapshot{}
	if _, err := binary.Decode(data[:SnapshotSize], byteOrder, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Encode produces the packed byte representation of s.
func Encode(s *Snapshot) ([]byte, error) {
	buf := make([]byte, SnapshotSize)
	if _, err := binary.Encode(buf, byteOrder, s); err != nil {
		return nil, err
	}
	return buf, nil
}

// Text converts a fixed width text field for display. The field is cut at the
// first NUL byte. Without a NUL the whole field is used and trailing garbage
// (non printable bytes, whitespace) is removed.
func Text(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		b = b[:idx]
	}
	return strings.TrimRightFunc(string(b), func(r rune) bool {
		return r == utf8.RuneError || unicode.IsSpace(r) || !unicode.IsPrint(r)
	})
}

// SetText copies s into a fixed width field, zero padding the remainder.
// Values longer than the field are cut.
func SetText(dst []byte, s string) {
	n := copy(dst, s)
	clear(dst[n:])
}

// Validate checks the header against the expected layout. The result is
// informational only, records are decoded regardless.
func (s *Snapshot) Validate() error {
	if magic := Text(s.Header.Magic[:]); magic != Magic {
		return fmt.Errorf("%w: %q", ErrInvalidMagic, magic)
	}
	if int(s.Header.Size) != SnapshotSize {
		return fmt.Errorf("%w: declared %d, expected %d",
			ErrSizeMismatch, s.Header.Size, SnapshotSize)
	}
	return nil
}

// NewSnapshot returns a snapshot with a valid header for the given version.
func NewSnapshot(version uint32) *Snapshot {
	s := &Snapshot{}
	SetText(s.Header.Magic[:], Magic)
	s.Header.Version = version
	s.Header.Size = uint32(SnapshotSize)
	return s
}
