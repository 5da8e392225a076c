package netcore

import (
	"strconv"
	"strings"
)

// HTTPRequest is a request message: a single backing buffer that is both
// the canonical wire form and the target of incremental parsing (spec
// §3/§4.E).
type HTTPRequest struct {
	httpBase

	method, url, protocol string
	Cookies                []Cookie
}

func NewHTTPRequest() *HTTPRequest {
	return &HTTPRequest{httpBase: newHTTPBase()}
}

func (r *HTTPRequest) Clear() {
	r.clear()
	r.method, r.url, r.protocol = "", "", ""
	r.Cookies = r.Cookies[:0]
}

func (r *HTTPRequest) Method() string   { return r.method }
func (r *HTTPRequest) URL() string      { return r.url }
func (r *HTTPRequest) Protocol() string { return r.protocol }

// IsComplete reports whether the full message (headers plus any declared
// or implied body) has arrived.
func (r *HTTPRequest) IsComplete() bool {
	if !r.headersDone {
		return false
	}
	if !r.bodyLengthProvided {
		return true // requests without Content-Length have no body (spec §4.E)
	}
	return r.bodySize >= r.bodyLength
}

// ParseHeader feeds newly-arrived bytes into the request. It appends them
// to the backing buffer and, once the header block is complete, splits
// the start line, parses headers, seeds Content-Length/cookies, and
// accounts for any body bytes that arrived in the same chunk. Returns
// true once the header phase is complete.
func (r *HTTPRequest) ParseHeader(data []byte) (bool, error) {
	if r.errorSet {
		return false, ErrMessagePoisoned
	}
	if r.headersDone {
		return true, nil
	}
	r.buf.Append(data)
	buf := r.buf.Bytes()

	term := findHeaderTerminator(buf, r.cacheSize)
	r.cacheSize = len(buf)
	if term < 0 {
		return false, nil
	}

	if err := r.parseStartAndHeaders(buf, term); err != nil {
		r.errorSet = true
		return false, err
	}

	r.headersDone = true
	r.bodyIndex = term
	r.bodySize = len(buf) - term
	return true, nil
}

func (r *HTTPRequest) parseStartAndHeaders(buf []byte, term int) error {
	lineEnd := indexCRLF(buf, 0, term)
	if lineEnd < 0 {
		return errMalformed("missing request line terminator")
	}
	parts := strings.SplitN(string(buf[:lineEnd]), " ", 3)
	if len(parts) != 3 {
		return errMalformed("malformed request line")
	}
	r.method, r.url, r.protocol = parts[0], parts[1], parts[2]

	headers, err := parseHeaderLines(buf, lineEnd+2, term-2)
	if err != nil {
		return err
	}
	r.headers = headers

	if cl, ok := contentLengthFromHeaders(buf, headers); ok {
		r.bodyLength = cl
		r.bodyLengthProvided = true
	}
	if cookieHeader, ok := r.cookieHeaderValue(buf, headers); ok {
		r.Cookies = parseCookieHeader(cookieHeader)
	}
	return nil
}

func (r *HTTPRequest) cookieHeaderValue(buf []byte, headers []HeaderIndex) (string, bool) {
	for _, h := range headers {
		name := string(buf[h.NameOffset : h.NameOffset+h.NameLen])
		if strings.EqualFold(name, "Cookie") {
			return string(buf[h.ValueOffset : h.ValueOffset+h.ValueLen]), true
		}
	}
	return "", false
}

// parseCookieHeader splits "k1=v1; k2=v2" preserving order (spec §4.E).
func parseCookieHeader(value string) []Cookie {
	var cookies []Cookie
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			cookies = append(cookies, Cookie{Name: kv[0], Value: kv[1]})
		} else {
			cookies = append(cookies, Cookie{Name: kv[0]})
		}
	}
	return cookies
}

// ParseBody appends subsequent body bytes once the header phase is done.
func (r *HTTPRequest) ParseBody(data []byte) bool {
	r.buf.Append(data)
	r.bodySize += len(data)
	return r.IsComplete()
}

// --- emission ---

// SetStartLine begins building a request with the given method/url, HTTP
// protocol version defaulting to "HTTP/1.1".
func (r *HTTPRequest) SetStartLine(method, url string) {
	r.clear()
	r.method, r.url, r.protocol = method, url, "HTTP/1.1"
	r.buf.AppendString(method)
	r.buf.AppendString(" ")
	r.buf.AppendString(url)
	r.buf.AppendString(" HTTP/1.1")
	r.buf.AppendString(crlf)
}

// SetHeader appends a header line. Must be called after SetStartLine and
// before SetBody.
func (r *HTTPRequest) SetHeader(name, value string) {
	writeHeaderLine(r.buf, name, value)
}

// SetBody finalizes the message: writes a Content-Length header sized to
// body, the blank line, then the body itself.
func (r *HTTPRequest) SetBody(body []byte) {
	r.SetHeader("Content-Length", strconv.Itoa(len(body)))
	r.buf.AppendString(crlf)
	r.bodyIndex = r.buf.Size()
	r.buf.Append(body)
	r.bodySize = len(body)
	r.bodyLength = len(body)
	r.bodyLengthProvided = true
}

// SetBodyText is SetBody for UTF-8 text bodies.
func (r *HTTPRequest) SetBodyText(body string) { r.SetBody([]byte(body)) }

// --- convenience constructors (spec §4.E/F) ---

func NewGETRequest(url string) *HTTPRequest {
	r := NewHTTPRequest()
	r.SetStartLine("GET", url)
	r.buf.AppendString(crlf)
	r.bodyIndex = 0
	return r
}

func NewHEADRequest(url string) *HTTPRequest {
	r := NewHTTPRequest()
	r.SetStartLine("HEAD", url)
	r.buf.AppendString(crlf)
	return r
}

func NewPOSTRequest(url string, body []byte) *HTTPRequest {
	r := NewHTTPRequest()
	r.SetStartLine("POST", url)
	r.SetBody(body)
	return r
}

func NewPUTRequest(url string, body []byte) *HTTPRequest {
	r := NewHTTPRequest()
	r.SetStartLine("PUT", url)
	r.SetBody(body)
	return r
}

func NewDELETERequest(url string) *HTTPRequest {
	r := NewHTTPRequest()
	r.SetStartLine("DELETE", url)
	r.buf.AppendString(crlf)
	return r
}

func NewOPTIONSRequest(url string) *HTTPRequest {
	r := NewHTTPRequest()
	r.SetStartLine("OPTIONS", url)
	r.buf.AppendString(crlf)
	return r
}

func NewTRACERequest(url string) *HTTPRequest {
	r := NewHTTPRequest()
	r.SetStartLine("TRACE", url)
	r.buf.AppendString(crlf)
	return r
}
