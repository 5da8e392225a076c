package netcore

import (
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/minio/highwayhash"
)

// HTTPResponse is a response message, using the same single-buffer,
// incremental-index design as HTTPRequest (spec §3/§4.F).
type HTTPResponse struct {
	httpBase

	protocol string
	status   int
	phrase   string
}

func NewHTTPResponse() *HTTPResponse {
	return &HTTPResponse{httpBase: newHTTPBase()}
}

func (r *HTTPResponse) Clear() {
	r.clear()
	r.protocol, r.status, r.phrase = "", 0, ""
}

func (r *HTTPResponse) Protocol() string { return r.protocol }
func (r *HTTPResponse) Status() int      { return r.status }
func (r *HTTPResponse) Phrase() string   { return r.phrase }

// IsComplete implements spec §4.E/F's two completion rules: with a
// declared Content-Length, body_size >= body_length; without one, the
// body completes when the buffer's last four bytes are CRLFCRLF (a
// non-standard but spec-mandated fallback, documented in DESIGN.md).
func (r *HTTPResponse) IsComplete() bool {
	if !r.headersDone {
		return false
	}
	if r.bodyLengthProvided {
		return r.bodySize >= r.bodyLength
	}
	b := r.buf.Bytes()
	return len(b) >= 4 && string(b[len(b)-4:]) == "\r\n\r\n"
}

func (r *HTTPResponse) ParseHeader(data []byte) (bool, error) {
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

func (r *HTTPResponse) parseStartAndHeaders(buf []byte, term int) error {
	lineEnd := indexCRLF(buf, 0, term)
	if lineEnd < 0 {
		return errMalformed("missing status line terminator")
	}
	line := string(buf[:lineEnd])
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return errMalformed("malformed status line")
	}
	r.protocol = parts[0]
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return errMalformed("non-numeric status code")
	}
	r.status = status
	r.phrase = parts[2]

	headers, err := parseHeaderLines(buf, lineEnd+2, term-2)
	if err != nil {
		return err
	}
	r.headers = headers
	if cl, ok := contentLengthFromHeaders(buf, headers); ok {
		r.bodyLength = cl
		r.bodyLengthProvided = true
	}
	return nil
}

func (r *HTTPResponse) ParseBody(data []byte) bool {
	r.buf.Append(data)
	r.bodySize += len(data)
	return r.IsComplete()
}

// --- emission ---

func (r *HTTPResponse) SetStartLine(status int) {
	r.clear()
	r.protocol = "HTTP/1.1"
	r.status = status
	r.phrase = statusPhrase(status)
	r.buf.AppendString("HTTP/1.1 ")
	r.buf.AppendString(strconv.Itoa(status))
	r.buf.AppendString(" ")
	r.buf.AppendString(r.phrase)
	r.buf.AppendString(crlf)
}

func (r *HTTPResponse) SetHeader(name, value string) {
	offset := r.buf.Size()
	writeHeaderLine(r.buf, name, value)
	r.headers = append(r.headers, HeaderIndex{
		NameOffset:  offset,
		NameLen:     len(name),
		ValueOffset: offset + len(name) + 2,
		ValueLen:    len(value),
	})
}

// SetCookie appends a Set-Cookie header per spec §6's grammar.
func (r *HTTPResponse) SetCookie(name, value string, maxAge int, domain, path string, secure, httpOnly bool, sameSite string) {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	if maxAge != 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(maxAge))
	}
	if domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(domain)
	}
	if path != "" {
		b.WriteString("; Path=")
		b.WriteString(path)
	}
	if secure {
		b.WriteString("; Secure")
	}
	if sameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(sameSite)
	}
	if httpOnly {
		b.WriteString("; HttpOnly")
	}
	r.SetHeader("Set-Cookie", b.String())
}

// etagKey is a fixed, process-wide HighwayHash key used purely as a fast
// content fingerprint — not a security boundary, so a constant key is
// fine (unlike e.g. HighwayHash's use as a DoS-resistant hash table seed).
var etagKey = make([]byte, 32)

// SetBody finalizes the response, auto-filling Content-Length and, unless
// the caller already set one, an ETag computed with HighwayHash over the
// body (a fast keyed hash, used here purely as a cheap fingerprint).
func (r *HTTPResponse) SetBody(body []byte) {
	if _, hasETag := r.HeaderValue("ETag"); !hasETag {
		sum, err := highwayhash.New(etagKey)
		if err == nil {
			_, _ = sum.Write(body)
			r.SetHeader("ETag", `"`+base64.RawURLEncoding.EncodeToString(sum.Sum(nil))+`"`)
		}
	}
	r.SetHeader("Content-Length", strconv.Itoa(len(body)))
	r.buf.AppendString(crlf)
	r.bodyIndex = r.buf.Size()
	r.buf.Append(body)
	r.bodySize = len(body)
	r.bodyLength = len(body)
	r.bodyLengthProvided = true
}

func (r *HTTPResponse) SetBodyText(body string) { r.SetBody([]byte(body)) }

// --- convenience constructors (spec §4.F) ---

// NewOKResponse builds an empty 200 OK response.
func NewOKResponse() *HTTPResponse {
	r := NewHTTPResponse()
	r.SetStartLine(200)
	r.SetBody(nil)
	return r
}

// NewErrorResponse builds a 500 response with the given content type and
// body.
func NewErrorResponse(contentType, body string) *HTTPResponse {
	r := NewHTTPResponse()
	r.SetStartLine(500)
	r.SetHeader("Content-Type", contentType)
	r.SetBodyText(body)
	return r
}

// NewContentResponse builds a 200 response carrying body with the given
// content type (spec's "GET with content").
func NewContentResponse(contentType string, body []byte) *HTTPResponse {
	r := NewHTTPResponse()
	r.SetStartLine(200)
	r.SetHeader("Content-Type", contentType)
	r.SetBody(body)
	return r
}

// NewOptionsResponse builds a 200 response advertising the given allowed
// methods.
func NewOptionsResponse(allow string) *HTTPResponse {
	r := NewHTTPResponse()
	r.SetStartLine(200)
	r.SetHeader("Allow", allow)
	r.SetBody(nil)
	return r
}

// NewTraceResponse echoes the given request back as the body of a 200
// response, per the HTTP TRACE method's semantics.
func NewTraceResponse(req *HTTPRequest) *HTTPResponse {
	r := NewHTTPResponse()
	r.SetStartLine(200)
	r.SetHeader("Content-Type", "message/http")
	r.SetBody(req.Bytes())
	return r
}

// NewHeadResponse builds a response with headers as if for body, but with
// no body bytes written (HEAD never carries a body).
func NewHeadResponse(status int, contentLength int) *HTTPResponse {
	r := NewHTTPResponse()
	r.SetStartLine(status)
	r.SetHeader("Content-Length", strconv.Itoa(contentLength))
	r.buf.AppendString(crlf)
	return r
}

// statusPhrases is the fixed, process-wide, immutable status->phrase
// table (spec §4.F), initialized once at package load (spec §9: "static
// mutable state ... treat as process-wide immutable tables").
var statusPhrases = map[int]string{
	100: "Continue", 101: "Switching Protocols", 102: "Processing", 103: "Early Hints",
	200: "OK", 201: "Created", 202: "Accepted", 203: "Non-Authoritative Information",
	204: "No Content", 205: "Reset Content", 206: "Partial Content", 207: "Multi-Status",
	208: "Already Reported", 226: "IM Used",
	300: "Multiple Choices", 301: "Moved Permanently", 302: "Found", 303: "See Other",
	304: "Not Modified", 305: "Use Proxy", 307: "Temporary Redirect", 308: "Permanent Redirect",
	400: "Bad Request", 401: "Unauthorized", 402: "Payment Required", 403: "Forbidden",
	404: "Not Found", 405: "Method Not Allowed", 406: "Not Acceptable",
	407: "Proxy Authentication Required", 408: "Request Timeout", 409: "Conflict",
	410: "Gone", 411: "Length Required", 412: "Precondition Failed",
	413: "Payload Too Large", 414: "URI Too Long", 415: "Unsupported Media Type",
	416: "Range Not Satisfiable", 417: "Expectation Failed",
	421: "Misdirected Request", 422: "Unprocessable Entity", 423: "Locked",
	424: "Failed Dependency", 425: "Too Early", 426: "Upgrade Required",
	428: "Precondition Required", 429: "Too Many Requests",
	431: "Request Header Fields Too Large", 451: "Unavailable For Legal Reasons",
	500: "Internal Server Error", 501: "Not Implemented", 502: "Bad Gateway",
	503: "Service Unavailable", 504: "Gateway Timeout", 505: "HTTP Version Not Supported",
	506: "Variant Also Negotiates", 507: "Insufficient Storage", 508: "Loop Detected",
	510: "Not Extended", 511: "Network Authentication Required",
}

// statusPhrase returns the IANA reason phrase for code, or "Unknown" if
// not in the table.
func statusPhrase(code int) string {
	if p, ok := statusPhrases[code]; ok {
		return p
	}
	return "Unknown"
}

// mimeTypes is the fixed extension->content-type table consulted by
// response builders that take a file extension (spec §6).
var mimeTypes = map[string]string{
	".html": "text/html", ".htm": "text/html", ".css": "text/css",
	".js": "application/javascript", ".json": "application/json",
	".xml": "application/xml", ".txt": "text/plain", ".csv": "text/csv",
	".pdf": "application/pdf", ".zip": "application/zip",
	".gz": "application/gzip", ".tar": "application/x-tar",
	".mp3": "audio/mpeg", ".wav": "audio/wav", ".ogg": "audio/ogg",
	".png": "image/png", ".jpg": "image/jpeg", ".jpeg": "image/jpeg",
	".gif": "image/gif", ".svg": "image/svg+xml", ".ico": "image/x-icon",
	".webp": "image/webp", ".bmp": "image/bmp",
	".mp4": "video/mp4", ".webm": "video/webm", ".avi": "video/x-msvideo",
	".woff": "font/woff", ".woff2": "font/woff2", ".ttf": "font/ttf",
	".wasm": "application/wasm", ".bin": "application/octet-stream",
}

// MIMETypeForExtension looks up a fixed content-type mapping by file
// extension (including the leading dot, e.g. ".png"); returns
// "application/octet-stream" if unknown.
func MIMETypeForExtension(ext string) string {
	if t, ok := mimeTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return "application/octet-stream"
}
