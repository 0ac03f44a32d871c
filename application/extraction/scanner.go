package extraction

import (
	"bytes"
	"strings"
)

// ScanStatus is the outcome of one scanner step
type ScanStatus int

const (
	// ScanField means a fully delimited field was found
	ScanField ScanStatus = iota
	// ScanNeedMore means a marker or value is cut off by the end of the buffer
	ScanNeedMore
	// ScanEnd means the buffer holds no further markers
	ScanEnd
)

func (s ScanStatus) String() string {
	switch s {
	case ScanField:
		return "field"
	case ScanNeedMore:
		return "need_more"
	default:
		return "end"
	}
}

// Field is a scanned field. Start is the offset of the marker opener and End
// the offset just past the value; both are relative to the buffer the field
// was scanned from.
type Field struct {
	Marker
	Value string
	Start int
	End   int
}

// Scanner is a resumable cursor over a growing buffer. Bytes before the
// cursor have already been scanned and are never looked at again, so a
// value is reported once regardless of how often Next is called.
type Scanner struct {
	pos int
}

// NewScanner creates a scanner positioned at the start of the buffer
func NewScanner() *Scanner {
	return &Scanner{}
}

// Pos returns the cursor offset
func (s *Scanner) Pos() int {
	return s.pos
}

// Next returns the next fully delimited field after the cursor. On
// ScanNeedMore the cursor stays on the incomplete marker.
func (s *Scanner) Next(buf []byte) (Field, ScanStatus) {
	for s.pos < len(buf) {
		idx := bytes.IndexAny(buf[s.pos:], "(,")
		if idx < 0 {
			s.pos = len(buf)
			break
		}
		s.pos += idx

		field, status := matchMarker(buf, s.pos)
		switch status {
		case ScanField:
			s.pos = field.End
			return field, ScanField
		case ScanNeedMore:
			return Field{}, ScanNeedMore
		default:
			s.pos++
		}
	}
	return Field{}, ScanEnd
}

// Rebase shifts the cursor after n bytes were removed from the front of the
// buffer. It reports false when the cursor itself fell inside the removed
// prefix.
func (s *Scanner) Rebase(n int) bool {
	if n <= 0 {
		return true
	}
	if s.pos < n {
		s.pos = 0
		return false
	}
	s.pos -= n
	return true
}

// Reset moves the cursor back to the start
func (s *Scanner) Reset() {
	s.pos = 0
}

// matchMarker tries to read "opener key : value" at start. ScanEnd means no
// marker starts here.
func matchMarker(buf []byte, start int) (Field, ScanStatus) {
	opener := buf[start]

	keyStart := skipSpace(buf, start+1)
	if keyStart == len(buf) {
		return Field{}, ScanNeedMore
	}

	keyEnd := keyStart
	for keyEnd < len(buf) && isKeyByte(buf[keyEnd]) {
		keyEnd++
	}
	key := string(buf[keyStart:keyEnd])
	if key == "" {
		return Field{}, ScanEnd
	}
	if keyEnd == len(buf) {
		if _, ok := lookupMarker(opener, key); ok || couldBecomeMarker(opener, key) {
			return Field{}, ScanNeedMore
		}
		return Field{}, ScanEnd
	}

	marker, ok := lookupMarker(opener, key)
	if !ok {
		return Field{}, ScanEnd
	}

	colon := skipSpace(buf, keyEnd)
	if colon == len(buf) {
		return Field{}, ScanNeedMore
	}
	if buf[colon] != ':' {
		return Field{}, ScanEnd
	}

	valueStart := skipSpace(buf, colon+1)
	if valueStart == len(buf) {
		return Field{}, ScanNeedMore
	}

	value, end, complete := parseValue(buf, valueStart)
	if !complete {
		return Field{}, ScanNeedMore
	}

	return Field{Marker: marker, Value: value, Start: start, End: end}, ScanField
}

// parseValue reads a quoted or unquoted value starting at i. It returns the
// value, the offset just past it and whether the value is fully delimited.
func parseValue(buf []byte, i int) (string, int, bool) {
	quote := buf[i]
	if quote != '"' && quote != '\'' {
		idx := bytes.IndexAny(buf[i:], ",)")
		if idx < 0 {
			return "", 0, false
		}
		return strings.TrimSpace(string(buf[i : i+idx])), i + idx, true
	}

	for j := i + 1; j < len(buf); j++ {
		switch buf[j] {
		case '\\':
			if j+1 == len(buf) {
				return "", 0, false
			}
			j++
		case quote:
			next := skipSpace(buf, j+1)
			if next == len(buf) {
				return "", 0, false
			}
			// A quote only closes the value when a delimiter follows it
			if buf[next] == ',' || buf[next] == ')' {
				return unescape(buf[i+1:j], quote), j + 1, true
			}
		}
	}
	return "", 0, false
}

func unescape(raw []byte, quote byte) string {
	if bytes.IndexByte(raw, '\\') < 0 {
		return string(raw)
	}

	var sb strings.Builder
	sb.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 == len(raw) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case quote, '\\':
			sb.WriteByte(raw[i])
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		default:
			sb.WriteByte('\\')
			sb.WriteByte(raw[i])
		}
	}
	return sb.String()
}

func skipSpace(buf []byte, i int) int {
	for i < len(buf) {
		switch buf[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

func isKeyByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
