package netcore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPRequestParseEmitRoundTrip(t *testing.T) {
	req := NewHTTPRequest()
	req.SetStartLine("POST", "/x")
	req.SetHeader("Host", "a")
	req.SetHeader("Cookie", "k1=v1; k2=v2")
	req.SetBodyText("payload")

	wire := req.Bytes()

	parsed := NewHTTPRequest()
	complete, err := parsed.ParseHeader(wire)
	require.NoError(t, err)
	require.True(t, complete)
	require.True(t, parsed.IsComplete())

	require.Equal(t, "POST", parsed.Method())
	require.Equal(t, "/x", parsed.URL())
	require.Equal(t, "HTTP/1.1", parsed.Protocol())
	require.Equal(t, "payload", string(parsed.Body()))

	host, ok := parsed.HeaderValue("Host")
	require.True(t, ok)
	require.Equal(t, "a", host)

	require.Equal(t, []Cookie{{Name: "k1", Value: "v1"}, {Name: "k2", Value: "v2"}}, parsed.Cookies)
}

func TestHTTPFragmentedHeaderArrivalMatchesWholeArrival(t *testing.T) {
	whole := NewHTTPRequest()
	_, err := whole.ParseHeader([]byte("GET /x HTTP/1.1\r\nHost: a\r\n\r\n"))
	require.NoError(t, err)

	fragmented := NewHTTPRequest()
	complete, err := fragmented.ParseHeader([]byte("GET /x HTTP/1.1\r\nHo"))
	require.NoError(t, err)
	require.False(t, complete)
	complete, err = fragmented.ParseHeader([]byte("st: a\r\n\r\n"))
	require.NoError(t, err)
	require.True(t, complete)

	require.Equal(t, whole.Method(), fragmented.Method())
	require.Equal(t, whole.URL(), fragmented.URL())
	h1, _ := whole.HeaderValue("Host")
	h2, _ := fragmented.HeaderValue("Host")
	require.Equal(t, h1, h2)
}

func TestHTTPResponseGET200Scenario(t *testing.T) {
	resp := NewHTTPResponse()
	resp.SetStartLine(200)
	resp.SetHeader("ETag", "fixed") // avoid highwayhash noise in this assertion
	resp.SetBodyText("OK")

	parsed := NewHTTPResponse()
	complete, err := parsed.ParseHeader(resp.Bytes())
	require.NoError(t, err)
	require.True(t, complete)
	require.True(t, parsed.IsComplete())
	require.Equal(t, 200, parsed.Status())
	require.Equal(t, "OK", parsed.Phrase())
	require.Equal(t, "OK", string(parsed.Body()))
}

func TestHTTPResponseWithoutContentLengthCompletesOnCRLFCRLF(t *testing.T) {
	resp := NewHTTPResponse()
	wire := "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\nhello\r\n\r\n"
	complete, err := resp.ParseHeader([]byte(wire))
	require.NoError(t, err)
	require.True(t, complete)
	require.True(t, resp.IsComplete())
}

func TestHTTPEmptyBodyContentLengthZero(t *testing.T) {
	req := NewHTTPRequest()
	req.SetStartLine("GET", "/")
	req.SetBody(nil)
	wire := req.Bytes()

	parsed := NewHTTPRequest()
	complete, err := parsed.ParseHeader(wire)
	require.NoError(t, err)
	require.True(t, complete)
	require.True(t, parsed.IsComplete())
	require.Empty(t, parsed.Body())
	cl, ok := parsed.HeaderValue("Content-Length")
	require.True(t, ok)
	require.Equal(t, "0", cl)
}

func TestHTTPHeaderEmptyValueAcceptedEmptyNameRejected(t *testing.T) {
	ok := NewHTTPRequest()
	_, err := ok.ParseHeader([]byte("GET / HTTP/1.1\r\nX-Empty:\r\n\r\n"))
	require.NoError(t, err)
	v, found := ok.HeaderValue("X-Empty")
	require.True(t, found)
	require.Empty(t, v)

	bad := NewHTTPRequest()
	_, err = bad.ParseHeader([]byte("GET / HTTP/1.1\r\n: novalue\r\n\r\n"))
	require.Error(t, err)
	require.True(t, bad.IsErrorSet())
}

func TestHTTPBodyAcrossReceiveBufferCapacityBoundary(t *testing.T) {
	for _, n := range []int{defaultReceiveBufferSize - 1, defaultReceiveBufferSize, defaultReceiveBufferSize + 1} {
		body := make([]byte, n)
		for i := range body {
			body[i] = byte('a' + i%26)
		}
		req := NewHTTPRequest()
		req.SetStartLine("PUT", "/blob")
		req.SetBody(body)

		parsed := NewHTTPRequest()
		complete, err := parsed.ParseHeader(req.Bytes())
		require.NoError(t, err)
		require.True(t, complete)
		require.True(t, parsed.IsComplete())
		require.Equal(t, body, parsed.Body())
	}
}

func TestStatusPhraseTableKnownAndUnknown(t *testing.T) {
	require.Equal(t, "OK", statusPhrase(200))
	require.Equal(t, "Not Found", statusPhrase(404))
	require.Equal(t, "Unknown", statusPhrase(999))
}

func TestMIMETypeForExtension(t *testing.T) {
	require.Equal(t, "text/html", MIMETypeForExtension(".html"))
	require.Equal(t, "image/png", MIMETypeForExtension(".PNG"))
	require.Equal(t, "application/octet-stream", MIMETypeForExtension(".nope"))
}
