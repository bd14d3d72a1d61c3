package modem

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FrameReader turns raw transport bytes into text. A multibyte sequence cut
// by a read boundary is held back until the next chunk; bytes that are not
// valid UTF-8 are dropped.
type FrameReader struct {
	carry []byte
}

// Decode returns the valid text of carry+chunk. When bytes had to be
// dropped the text is still returned, together with an error wrapping
// ErrInvalidEncoding.
func (f *FrameReader) Decode(chunk []byte) (string, error) {
	data := make([]byte, 0, len(f.carry)+len(chunk))
	data = append(data, f.carry...)
	data = append(data, chunk...)
	f.carry = nil

	if cut := incompleteTail(data); cut < len(data) {
		f.carry = append([]byte(nil), data[cut:]...)
		data = data[:cut]
	}

	if utf8.Valid(data) {
		return string(data), nil
	}

	text := strings.ToValidUTF8(string(data), "")
	return text, fmt.Errorf("%w: dropped %d of %d bytes", ErrInvalidEncoding, len(data)-len(text), len(data))
}

// Reset discards any held-back partial sequence.
func (f *FrameReader) Reset() {
	f.carry = nil
}

// incompleteTail returns the index where a trailing, still incomplete UTF-8
// sequence starts, or len(data) when there is none.
func incompleteTail(data []byte) int {
	for i := len(data) - 1; i >= 0 && i > len(data)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(data[i]) {
			continue
		}
		if !utf8.FullRune(data[i:]) {
			return i
		}
		break
	}
	return len(data)
}
