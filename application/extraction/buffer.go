package extraction

import (
	"bytes"
	"unicode/utf8"
)

// Buffer accumulates the text of one session
type Buffer struct {
	data    []byte
	ceiling int
	tail    int

	trimmed       int64
	fallbackTrims int
	fallbackBytes int64
}

// NewBuffer creates a buffer with the given hard ceiling and fallback tail
func NewBuffer(ceiling, tail int) *Buffer {
	if tail > ceiling {
		tail = ceiling
	}
	return &Buffer{
		data:    make([]byte, 0, ceiling),
		ceiling: ceiling,
		tail:    tail,
	}
}

// Append adds a fragment to the end of the buffer
func (b *Buffer) Append(fragment string) {
	b.data = append(b.data, fragment...)
}

// Bytes exposes the buffer contents. Callers must not modify the slice.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the current buffer length in bytes
func (b *Buffer) Len() int {
	return len(b.data)
}

// Trim removes the first n bytes
func (b *Buffer) Trim(n int) {
	if n <= 0 {
		return
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	b.data = append(b.data[:0], b.data[n:]...)
	b.trimmed += int64(n)
}

// ValidatedOffset returns the end of the prefix that is safe to trim: the
// offset just past the first closing parenthesis at or after terminalEnd.
// The result never exceeds limit, the point up to which the buffer has been
// scanned; zero means nothing can be trimmed yet.
func (b *Buffer) ValidatedOffset(terminalEnd, limit int) int {
	if terminalEnd < 0 || terminalEnd > len(b.data) {
		return 0
	}
	idx := bytes.IndexByte(b.data[terminalEnd:], ')')
	if idx < 0 {
		return 0
	}
	offset := terminalEnd + idx + 1
	if offset > limit {
		return 0
	}
	return offset
}

// TrimValidated trims the validated prefix and returns the number of bytes removed
func (b *Buffer) TrimValidated(terminalEnd, limit int) int {
	offset := b.ValidatedOffset(terminalEnd, limit)
	b.Trim(offset)
	return offset
}

// ExceedsCeiling reports whether the buffer has grown past its hard ceiling
func (b *Buffer) ExceedsCeiling() bool {
	return len(b.data) > b.ceiling
}

// FallbackTrim drops everything but the last tail bytes, cutting on a rune
// boundary. This is lossy: a field whose marker lies in the dropped prefix
// is never reported. It returns the number of bytes removed.
func (b *Buffer) FallbackTrim() int {
	if len(b.data) <= b.tail {
		return 0
	}

	cut := len(b.data) - b.tail
	for cut < len(b.data) && !utf8.RuneStart(b.data[cut]) {
		cut++
	}

	b.Trim(cut)
	b.fallbackTrims++
	b.fallbackBytes += int64(cut)
	return cut
}

// Reset empties the buffer and its counters
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.trimmed = 0
	b.fallbackTrims = 0
	b.fallbackBytes = 0
}

// FallbackTrims returns how many lossy trims happened
func (b *Buffer) FallbackTrims() int {
	return b.fallbackTrims
}

// FallbackBytes returns how many bytes lossy trims removed
func (b *Buffer) FallbackBytes() int64 {
	return b.fallbackBytes
}

// Trimmed returns the total number of bytes trimmed
func (b *Buffer) Trimmed() int64 {
	return b.trimmed
}
