package netcore

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWSAcceptKeyRFC6455ReferenceVector(t *testing.T) {
	// From RFC 6455 §1.3.
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", computeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="))
}

func TestWSMaskUnmaskRoundTrip(t *testing.T) {
	key := [4]byte{0x37, 0xFA, 0x21, 0x3D}
	payload := []byte("Hi there, this is a longer payload than 4 bytes")
	masked := append([]byte(nil), payload...)
	maskPayload(masked, key)
	require.NotEqual(t, payload, masked)
	maskPayload(masked, key)
	require.Equal(t, payload, masked)
}

func TestWSMaskedTextFrameOnWireBytes(t *testing.T) {
	// From spec.md scenario 5.
	key := [4]byte{0x37, 0xFA, 0x21, 0x3D}
	payload := []byte("Hi")
	masked := append([]byte(nil), payload...)
	maskPayload(masked, key)

	header := prepareFrameHeader(true, WSText, true, len(payload))
	frame := append(append([]byte(nil), header...), key[:]...)
	frame = append(frame, masked...)

	require.Equal(t, []byte{0x81, 0x82, 0x37, 0xFA, 0x21, 0x3D, 0x7F, 0x93}, frame)
}

func TestWSFrameLengthEncodingBoundaries(t *testing.T) {
	cases := []struct {
		size       int
		headerLen  int
	}{
		{125, 2},
		{126, 4},
		{65535, 4},
		{65536, 10},
	}
	for _, c := range cases {
		h := prepareFrameHeader(true, WSBinary, false, c.size)
		require.Len(t, h, c.headerLen, "size=%d", c.size)
	}
}

func TestWSFragmentedArrivalReassembly(t *testing.T) {
	engine := NewWSEngine(&StreamSession{}, false, nil)
	var gotPayload []byte
	var gotText bool
	engine.Hooks.OnReceived = func(data []byte, isText bool) {
		gotPayload = data
		gotText = isText
	}

	payload := []byte("hello websocket world, a reasonably sized payload")
	frame := engine.PrepareSendFrame(WSText, payload)

	// Split the frame into arbitrary small chunks and feed them one at a
	// time, including splits inside the header and inside the payload.
	for i := 0; i < len(frame); i += 3 {
		end := i + 3
		if end > len(frame) {
			end = len(frame)
		}
		engine.Feed(frame[i:end])
	}

	require.Equal(t, payload, gotPayload)
	require.True(t, gotText)
}

func TestWSCloseFramePayloadEncoding(t *testing.T) {
	status := 1000
	body := make([]byte, 2)
	binary.BigEndian.PutUint16(body, uint16(status))
	require.Equal(t, []byte{0x03, 0xE8}, body)
}

func TestWSControlFrameInterleavedWithFragmentedMessage(t *testing.T) {
	engine := NewWSEngine(&StreamSession{}, false, nil)
	var received [][]byte
	var pings [][]byte
	engine.Hooks.OnReceived = func(data []byte, _ bool) { received = append(received, data) }
	engine.Hooks.OnPing = func(data []byte) { pings = append(pings, data) }

	first := prepareFrameHeaderedFrame(false, WSText, []byte("part1"))
	ping := engine.PrepareSendFrame(WSPing, []byte("ping-mid-message"))
	second := prepareFrameHeaderedFrame(true, WSContinuation, []byte("part2"))

	engine.Feed(first)
	engine.Feed(ping)
	engine.Feed(second)

	require.Equal(t, [][]byte{[]byte("ping-mid-message")}, pings)
	require.Equal(t, [][]byte{[]byte("part1part2")}, received)
}

// prepareFrameHeaderedFrame builds an unmasked frame with the given
// fin/opcode/payload, bypassing the engine's client-masking path (used to
// simulate server-originated or test fixtures directly).
func prepareFrameHeaderedFrame(final bool, opcode WSOpcode, payload []byte) []byte {
	header := prepareFrameHeader(final, opcode, false, len(payload))
	return append(append([]byte(nil), header...), payload...)
}
