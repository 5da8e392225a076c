package netcore

import (
	"bytes"
	"strconv"
	"strings"
)

// HeaderIndex is a (name, value) header record expressed as offset/length
// pairs into the message's single backing Buffer (spec §3: "Additional
// fields are integer indices/lengths into that buffer").
type HeaderIndex struct {
	NameOffset, NameLen   int
	ValueOffset, ValueLen int
}

// Cookie is a single "name=value" pair as parsed from a request's Cookie
// header, in the order it appeared.
type Cookie struct {
	Name, Value string
}

// httpBase is the shared state/behavior of HTTPRequest and HTTPResponse:
// the single backing buffer that is both the parse input and the emit
// output, the header index, and the incremental-scan cursor.
type httpBase struct {
	buf *Buffer

	headers []HeaderIndex

	bodyIndex          int
	bodySize           int
	bodyLength         int
	bodyLengthProvided bool

	headersDone bool
	errorSet    bool

	// cacheSize remembers how much of buf has already been scanned for the
	// CRLFCRLF header terminator, so each incremental call only re-examines
	// the unscanned tail (spec §4.E: "parsing amortizes O(n) across
	// arrivals").
	cacheSize int
}

func newHTTPBase() httpBase {
	return httpBase{buf: NewBuffer(256)}
}

func (m *httpBase) clear() {
	m.buf.Clear()
	m.headers = m.headers[:0]
	m.bodyIndex = 0
	m.bodySize = 0
	m.bodyLength = 0
	m.bodyLengthProvided = false
	m.headersDone = false
	m.errorSet = false
	m.cacheSize = 0
}

func (m *httpBase) IsErrorSet() bool { return m.errorSet }

func (m *httpBase) HeaderCount() int { return len(m.headers) }

func (m *httpBase) Header(i int) (name, value string) {
	h := m.headers[i]
	return m.buf.ExtractString(h.NameOffset, h.NameLen), m.buf.ExtractString(h.ValueOffset, h.ValueLen)
}

// HeaderValue returns the value of the first header matching name
// (case-insensitive), and whether it was found.
func (m *httpBase) HeaderValue(name string) (string, bool) {
	for _, h := range m.headers {
		n := m.buf.ExtractString(h.NameOffset, h.NameLen)
		if strings.EqualFold(n, name) {
			return m.buf.ExtractString(h.ValueOffset, h.ValueLen), true
		}
	}
	return "", false
}

func (m *httpBase) Body() []byte {
	if m.bodyIndex == 0 {
		return nil
	}
	n := m.bodySize
	if m.bodyLengthProvided && m.bodyLength < n {
		n = m.bodyLength
	}
	return m.buf.ExtractBytes(m.bodyIndex, n)
}

func (m *httpBase) Bytes() []byte { return m.buf.Bytes() }

// crlf is the header-line terminator used throughout the wire grammar.
const crlf = "\r\n"

// findHeaderTerminator scans buf[from:] for "\r\n\r\n" and returns the
// index of the byte just after it (i.e. where the body begins), or -1 if
// not yet present. Of buf[:from] it re-scans only the last 3 bytes.
func findHeaderTerminator(buf []byte, from int) int {
	if from > 3 {
		from -= 3 // a terminator could straddle the previous scan boundary
	} else {
		from = 0
	}
	idx := strings.Index(string(buf[from:]), "\r\n\r\n")
	if idx < 0 {
		return -1
	}
	return from + idx + 4
}

// parseHeaderLines parses one header per CRLF-terminated line in
// buf[from:to] (to excludes the trailing blank line). Per spec §4.E: name
// up to the first ':', value from the first non-whitespace byte after
// that to the CR; an empty value is permitted, an empty name is not.
func parseHeaderLines(buf []byte, from, to int) ([]HeaderIndex, error) {
	var headers []HeaderIndex
	pos := from
	for pos < to {
		lineEnd := indexCRLF(buf, pos, to)
		if lineEnd < 0 {
			return nil, errMalformed("header line missing CRLF")
		}
		colon := -1
		for i := pos; i < lineEnd; i++ {
			if buf[i] == ':' {
				colon = i
				break
			}
		}
		if colon < 0 || colon == pos {
			return nil, errMalformed("header missing name")
		}
		valStart := colon + 1
		for valStart < lineEnd && (buf[valStart] == ' ' || buf[valStart] == '\t') {
			valStart++
		}
		headers = append(headers, HeaderIndex{
			NameOffset:  pos,
			NameLen:     colon - pos,
			ValueOffset: valStart,
			ValueLen:    lineEnd - valStart,
		})
		pos = lineEnd + 2
	}
	return headers, nil
}

// indexCRLF returns the absolute index of the next "\r\n" at or after pos,
// within [pos, limit), or -1.
func indexCRLF(buf []byte, pos, limit int) int {
	if pos >= limit || limit > len(buf) {
		return -1
	}
	rel := bytes.Index(buf[pos:limit], []byte(crlf))
	if rel < 0 {
		return -1
	}
	return pos + rel
}

func errMalformed(reason string) error {
	return newError(ErrProtocolMalformed, errStr(reason))
}

type errStr string

func (e errStr) Error() string { return string(e) }

func contentLengthFromHeaders(buf []byte, headers []HeaderIndex) (int, bool) {
	for _, h := range headers {
		name := string(buf[h.NameOffset : h.NameOffset+h.NameLen])
		if strings.EqualFold(name, "Content-Length") {
			v := string(buf[h.ValueOffset : h.ValueOffset+h.ValueLen])
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

func writeHeaderLine(buf *Buffer, name, value string) {
	buf.AppendString(name)
	buf.AppendString(": ")
	buf.AppendString(value)
	buf.AppendString(crlf)
}
